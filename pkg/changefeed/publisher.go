package changefeed

import (
	"fmt"
	"sync"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"

	// Register transports
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"github.com/dd0wney/cluso-topology/pkg/logging"
	"github.com/dd0wney/cluso-topology/pkg/metrics"
)

// DefaultBufferSize bounds pending announcements. Announcements beyond it
// are dropped.
const DefaultBufferSize = 256

// Publisher fans changes out to every connected editor
type Publisher struct {
	socket  mangos.Socket
	addr    string
	stream  chan Change
	stopCh  chan struct{}
	wg      sync.WaitGroup
	logger  logging.Logger
	metrics *metrics.Registry

	runningMu sync.Mutex
	running   bool

	errMu   sync.RWMutex
	lastErr error
}

// PublisherConfig configures the publisher
type PublisherConfig struct {
	Address    string
	BufferSize int
	Logger     logging.Logger
	Metrics    *metrics.Registry
}

// NewPublisher creates a PUB socket. Call Start to bind it.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	sock, err := pub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}

	bufSize := cfg.BufferSize
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	reg := cfg.Metrics
	if reg == nil {
		reg = metrics.DefaultRegistry()
	}

	return &Publisher{
		socket:  sock,
		addr:    cfg.Address,
		stream:  make(chan Change, bufSize),
		stopCh:  make(chan struct{}),
		logger:  logging.OrDefault(cfg.Logger).With(logging.Component("changefeed")),
		metrics: reg,
	}, nil
}

// Start binds the socket and begins publishing
func (p *Publisher) Start() error {
	p.runningMu.Lock()
	defer p.runningMu.Unlock()

	if p.running {
		return fmt.Errorf("change publisher already running")
	}
	if err := p.socket.Listen(p.addr); err != nil {
		return fmt.Errorf("failed to bind PUB socket to %s: %w", p.addr, err)
	}

	p.running = true
	p.wg.Add(1)
	go p.publishLoop()

	p.logger.Info("Change feed publishing", logging.String("addr", p.addr))
	return nil
}

// Announce queues a change without blocking
func (p *Publisher) Announce(c Change) {
	if c.At.IsZero() {
		c.At = time.Now()
	}
	select {
	case p.stream <- c:
	default:
		p.logger.Warn("Change dropped, buffer full", logging.String("kind", c.Kind))
	}
}

// LastErr returns the most recent send failure, or nil
func (p *Publisher) LastErr() error {
	p.errMu.RLock()
	defer p.errMu.RUnlock()
	return p.lastErr
}

// Running reports whether Start has succeeded and Close has not been called
func (p *Publisher) Running() bool {
	p.runningMu.Lock()
	defer p.runningMu.Unlock()
	return p.running
}

// Close stops publishing and closes the socket
func (p *Publisher) Close() error {
	p.runningMu.Lock()
	if !p.running {
		p.runningMu.Unlock()
		return p.socket.Close()
	}
	p.running = false
	close(p.stopCh)
	p.runningMu.Unlock()

	p.wg.Wait()
	return p.socket.Close()
}

func (p *Publisher) publishLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case c := <-p.stream:
			p.send(c)
		}
	}
}

func (p *Publisher) send(c Change) {
	msg, err := Encode(c)
	if err == nil {
		err = p.socket.Send(msg)
	}

	p.errMu.Lock()
	p.lastErr = err
	p.errMu.Unlock()

	if err != nil {
		p.logger.Warn("Failed to publish change", logging.String("kind", c.Kind), logging.Error(err))
		return
	}
	p.metrics.RecordChangeFeed("out", c.Kind)
}
