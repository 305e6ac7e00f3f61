package pubsub

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Topic names a stream of editor events
type Topic string

const (
	// TopicState carries store and selection changes that require a re-render
	TopicState Topic = "state"
	// TopicNotification carries transient user-facing messages
	TopicNotification Topic = "notification"
)

// EventKind classifies an editor event
type EventKind string

const (
	EventReloaded     EventKind = "reloaded"
	EventLoadFailed   EventKind = "load-failed"
	EventSelection    EventKind = "selection"
	EventPosition     EventKind = "position"
	EventOptimistic   EventKind = "optimistic"
	EventNotification EventKind = "notification"
)

// Event is published on a topic whenever editor state changes
type Event struct {
	Topic   Topic
	Kind    EventKind
	Message string
	Err     error
	At      time.Time
}

// ErrShutdown is returned when subscribing to a closed bus
var ErrShutdown = errors.New("pubsub: shut down")

// SubscriptionBuffer is the per-subscriber queue depth. Events published to
// a full subscriber are dropped.
const SubscriptionBuffer = 64

// PubSub fans editor events out to subscribers
type PubSub struct {
	subscribers map[Topic]map[*Subscription]bool
	mu          sync.RWMutex
	shutdown    chan struct{}
	shutdownMu  sync.Mutex
	isShutdown  bool
}

// Subscription represents a subscription to a topic
type Subscription struct {
	topic     Topic
	channel   chan Event
	ps        *PubSub
	cancel    context.CancelFunc
	closeOnce sync.Once
	dropped   int64
	droppedMu sync.Mutex
}

// NewPubSub creates a new PubSub instance
func NewPubSub() *PubSub {
	return &PubSub{
		subscribers: make(map[Topic]map[*Subscription]bool),
		shutdown:    make(chan struct{}),
	}
}

// Subscribe creates a new subscription to a topic. The subscription ends
// when ctx is cancelled.
func (ps *PubSub) Subscribe(ctx context.Context, topic Topic) (*Subscription, error) {
	ps.shutdownMu.Lock()
	if ps.isShutdown {
		ps.shutdownMu.Unlock()
		return nil, ErrShutdown
	}
	ps.shutdownMu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		topic:   topic,
		channel: make(chan Event, SubscriptionBuffer),
		ps:      ps,
		cancel:  cancel,
	}

	ps.mu.Lock()
	if ps.subscribers[topic] == nil {
		ps.subscribers[topic] = make(map[*Subscription]bool)
	}
	ps.subscribers[topic][sub] = true
	ps.mu.Unlock()

	go func() {
		select {
		case <-subCtx.Done():
			sub.Unsubscribe()
		case <-ps.shutdown:
			sub.close()
		}
	}()

	return sub, nil
}

// Publish sends an event to all subscribers of its topic without blocking.
// A zero At is stamped with the current time.
func (ps *PubSub) Publish(ev Event) {
	ps.shutdownMu.Lock()
	if ps.isShutdown {
		ps.shutdownMu.Unlock()
		return
	}
	ps.shutdownMu.Unlock()

	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	// Snapshot under lock; a concurrent Unsubscribe may modify the map
	ps.mu.RLock()
	topicSubs := ps.subscribers[ev.Topic]
	if len(topicSubs) == 0 {
		ps.mu.RUnlock()
		return
	}
	subs := make([]*Subscription, 0, len(topicSubs))
	for sub := range topicSubs {
		subs = append(subs, sub)
	}
	ps.mu.RUnlock()

	for _, sub := range subs {
		sub.deliver(ev)
	}
}

// GetSubscriberCount returns the number of subscribers for a topic
func (ps *PubSub) GetSubscriberCount(topic Topic) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subscribers[topic])
}

// Shutdown closes all subscriptions and shuts down the PubSub
func (ps *PubSub) Shutdown() {
	ps.shutdownMu.Lock()
	if ps.isShutdown {
		ps.shutdownMu.Unlock()
		return
	}
	ps.isShutdown = true
	ps.shutdownMu.Unlock()

	close(ps.shutdown)

	ps.mu.Lock()
	for topic := range ps.subscribers {
		for sub := range ps.subscribers[topic] {
			sub.close()
		}
		delete(ps.subscribers, topic)
	}
	ps.mu.Unlock()
}

// Channel returns the subscription's event channel. It is closed on
// Unsubscribe or Shutdown.
func (s *Subscription) Channel() <-chan Event {
	return s.channel
}

// Dropped returns how many events were discarded because the buffer was full
func (s *Subscription) Dropped() int64 {
	s.droppedMu.Lock()
	defer s.droppedMu.Unlock()
	return s.dropped
}

// Unsubscribe removes the subscription
func (s *Subscription) Unsubscribe() {
	s.cancel()

	s.ps.mu.Lock()
	defer s.ps.mu.Unlock()

	if s.ps.subscribers[s.topic] != nil {
		delete(s.ps.subscribers[s.topic], s)
		if len(s.ps.subscribers[s.topic]) == 0 {
			delete(s.ps.subscribers, s.topic)
		}
	}

	s.close()
}

func (s *Subscription) deliver(ev Event) {
	// Sending on a closed channel panics; a concurrent Unsubscribe can close
	// it between the snapshot and this send.
	defer func() {
		if recover() != nil {
			s.markDropped()
		}
	}()
	select {
	case s.channel <- ev:
	default:
		s.markDropped()
	}
}

func (s *Subscription) markDropped() {
	s.droppedMu.Lock()
	s.dropped++
	s.droppedMu.Unlock()
}

// close closes the subscription channel safely (idempotent)
func (s *Subscription) close() {
	s.closeOnce.Do(func() {
		close(s.channel)
	})
}
