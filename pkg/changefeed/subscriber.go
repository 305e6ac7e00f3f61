package changefeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/sub"

	"github.com/dd0wney/cluso-topology/pkg/logging"
	"github.com/dd0wney/cluso-topology/pkg/metrics"
)

// recvDeadline bounds each receive so that Run notices cancellation
const recvDeadline = 250 * time.Millisecond

// Handler is called for every change of the subscribed calculation
type Handler func(ctx context.Context, c Change)

// Subscriber listens to a publisher
type Subscriber struct {
	socket      mangos.Socket
	addr        string
	calculation int64
	logger      logging.Logger
	metrics     *metrics.Registry
}

// SubscriberConfig configures a subscriber. Calculation 0 accepts changes
// of every calculation.
type SubscriberConfig struct {
	Address     string
	Calculation int64
	Logger      logging.Logger
	Metrics     *metrics.Registry
}

// NewSubscriber creates a SUB socket and dials the publisher. The dial is
// asynchronous: the publisher may start later.
func NewSubscriber(cfg SubscriberConfig) (*Subscriber, error) {
	sock, err := sub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to create SUB socket: %w", err)
	}
	if err := sock.SetOption(mangos.OptionSubscribe, []byte(Prefix)); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	if err := sock.SetOption(mangos.OptionRecvDeadline, recvDeadline); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to set receive deadline: %w", err)
	}
	if err := sock.DialOptions(cfg.Address, map[string]interface{}{mangos.OptionDialAsynch: true}); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.Address, err)
	}

	reg := cfg.Metrics
	if reg == nil {
		reg = metrics.DefaultRegistry()
	}
	return &Subscriber{
		socket:      sock,
		addr:        cfg.Address,
		calculation: cfg.Calculation,
		logger:      logging.OrDefault(cfg.Logger).With(logging.Component("changefeed")),
		metrics:     reg,
	}, nil
}

// Run receives changes until ctx is done, then closes the socket
func (s *Subscriber) Run(ctx context.Context, handle Handler) error {
	defer s.socket.Close()
	s.logger.Info("Change feed subscribed", logging.String("addr", s.addr))

	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, err := s.socket.Recv()
		if err != nil {
			if errors.Is(err, mangos.ErrRecvTimeout) {
				continue
			}
			if errors.Is(err, mangos.ErrClosed) {
				return nil
			}
			return fmt.Errorf("change feed receive: %w", err)
		}

		c, err := Decode(msg)
		if err != nil {
			s.logger.Warn("Ignoring change message", logging.Error(err))
			continue
		}
		if s.calculation != 0 && c.Calculation != s.calculation {
			continue
		}

		s.metrics.RecordChangeFeed("in", c.Kind)
		handle(ctx, c)
	}
}
