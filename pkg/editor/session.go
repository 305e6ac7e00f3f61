// Package editor owns one editing session: both stores, the selection and
// drag controllers, and the write policy. Every successful write is followed
// by a full reload of both aggregates.
package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dd0wney/cluso-topology/pkg/drag"
	"github.com/dd0wney/cluso-topology/pkg/graphstore"
	"github.com/dd0wney/cluso-topology/pkg/logging"
	"github.com/dd0wney/cluso-topology/pkg/metrics"
	"github.com/dd0wney/cluso-topology/pkg/pubsub"
	"github.com/dd0wney/cluso-topology/pkg/render"
	"github.com/dd0wney/cluso-topology/pkg/routestore"
	"github.com/dd0wney/cluso-topology/pkg/selection"
	"github.com/dd0wney/cluso-topology/pkg/topology"
)

// Reload triggers, used as a metrics label
const (
	TriggerInitial    = "initial"
	TriggerManual     = "manual"
	TriggerMutation   = "mutation"
	TriggerReconcile  = "reconcile"
	TriggerPosition   = "position"
	TriggerChangeFeed = "changefeed"
)

// API is everything the session sends to the server
type API interface {
	graphstore.API
	routestore.API
}

// Options configures a session
type Options struct {
	Caps    selection.Caps
	Logger  logging.Logger
	Metrics *metrics.Registry
	Bus     *pubsub.PubSub
}

// Session is safe for concurrent use. Network calls block; the terminal UI
// runs them off its event loop.
type Session struct {
	id      string
	caps    selection.Caps
	graph   *graphstore.Store
	routes  *routestore.Store
	drag    *drag.Controller
	palette *render.Palette
	bus     *pubsub.PubSub
	ownsBus bool
	metrics *metrics.Registry
	logger  logging.Logger

	mu      sync.RWMutex
	sel     selection.State
	loadErr error
}

// New creates a session. Nothing is fetched until Load.
func New(api API, opts Options) *Session {
	id := uuid.NewString()
	logger := logging.OrDefault(opts.Logger).With(logging.Component("editor"), logging.String("session", id))

	s := &Session{
		id:      id,
		caps:    opts.Caps,
		graph:   graphstore.New(api, logger),
		routes:  routestore.New(api, logger),
		drag:    drag.NewController(),
		palette: render.NewPalette(),
		bus:     opts.Bus,
		metrics: opts.Metrics,
		logger:  logger,
		sel:     selection.None,
	}
	if s.bus == nil {
		s.bus = pubsub.NewPubSub()
		s.ownsBus = true
	}
	if s.metrics == nil {
		s.metrics = metrics.DefaultRegistry()
	}
	return s
}

// ID identifies the session in logs
func (s *Session) ID() string { return s.id }

// Caps returns the selection capabilities of this editor surface
func (s *Session) Caps() selection.Caps { return s.caps }

// Graph exposes the topology store for read access
func (s *Session) Graph() *graphstore.Store { return s.graph }

// Routes exposes the routes store for read access
func (s *Session) Routes() *routestore.Store { return s.routes }

// Subscribe returns a stream of session events
func (s *Session) Subscribe(ctx context.Context, topic pubsub.Topic) (*pubsub.Subscription, error) {
	return s.bus.Subscribe(ctx, topic)
}

// Close releases the event bus if the session created it
func (s *Session) Close() {
	if s.ownsBus {
		s.bus.Shutdown()
	}
}

// Load performs the initial fetch
func (s *Session) Load(ctx context.Context) error {
	return s.Reload(ctx, TriggerInitial)
}

// Reload fetches both aggregates concurrently and replaces local state.
// Until a reload succeeds after a failure, the scene shows only the load
// error.
func (s *Session) Reload(ctx context.Context, trigger string) error {
	return s.reload(ctx, trigger, false)
}

// reload is Reload with keepRoute passed through to the Reloaded action
func (s *Session) reload(ctx context.Context, trigger string, keepRoute bool) error {
	timer := logging.StartTimer(s.logger, "Reload", logging.String("trigger", trigger))
	start := time.Now()

	var routeLinks []topology.RouteLink
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.graph.Load(gctx)
		return err
	})
	g.Go(func() error {
		snap, err := s.routes.Load(gctx)
		routeLinks = snap.Links
		return err
	})
	err := g.Wait()
	s.metrics.RecordReload(trigger, err, time.Since(start))

	if err != nil {
		timer.EndError(err)
		s.mu.Lock()
		s.loadErr = err
		s.mu.Unlock()
		s.publish(pubsub.EventLoadFailed, err.Error(), err)
		return err
	}

	s.graph.ApplyAssignments(routeLinks)
	s.palette.Reset()

	s.mu.Lock()
	s.loadErr = nil
	next, _ := selection.Dispatch(s.caps, s.sel, selection.Action{Kind: selection.Reloaded, Exists: s.exists, KeepRoute: keepRoute})
	s.sel = next
	s.mu.Unlock()

	s.metrics.RecordSelection(next.Kind.String())
	timer.End(logging.Int("links", len(s.graph.Links())), logging.Int("routes", len(s.routes.Routes())))
	s.publish(pubsub.EventReloaded, trigger, nil)
	return nil
}

// exists reports whether a selection target is still present
func (s *Session) exists(st selection.State) bool {
	switch st.Kind {
	case selection.RouteSelected:
		return s.routes.Exists(st.ID)
	case selection.LinkSelected:
		_, ok := s.graph.Link(st.ID)
		return ok
	case selection.NodeSelected:
		_, ok := s.graph.Entity(topology.EntityRef{Kind: topology.KindNode, ID: st.ID})
		return ok
	case selection.DeviceSelected:
		_, ok := s.graph.Entity(topology.EntityRef{Kind: topology.KindDevice, ID: st.ID})
		return ok
	}
	return false
}

// LoadErr returns the last reload failure, or nil
func (s *Session) LoadErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

// Selection returns the current selection
func (s *Session) Selection() selection.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sel
}

// Dispatch runs a selection action and returns the effects the caller must
// pass to Apply. State changes are published immediately.
func (s *Session) Dispatch(a selection.Action) (selection.State, []selection.Effect) {
	if a.Kind == selection.Reloaded {
		a.Exists = s.exists
	}

	s.mu.Lock()
	next, effects := selection.Dispatch(s.caps, s.sel, a)
	changed := next != s.sel
	s.sel = next
	s.mu.Unlock()

	if changed {
		s.metrics.RecordSelection(next.Kind.String())
		s.publish(pubsub.EventSelection, next.String(), nil)
	}
	return next, effects
}

// Apply performs selection effects in order. Each effect is an independent
// mutation; all failures are joined.
func (s *Session) Apply(ctx context.Context, effects []selection.Effect) error {
	var errs []error
	for _, e := range effects {
		switch e.Kind {
		case selection.AssignLink:
			errs = append(errs, s.AssignLink(ctx, e.RouteID, e.LinkID))
		}
	}
	return errors.Join(errs...)
}

// Click dispatches a selection action and applies its effects
func (s *Session) Click(ctx context.Context, a selection.Action) (selection.State, error) {
	next, effects := s.Dispatch(a)
	return next, s.Apply(ctx, effects)
}

// Scene renders the current state
func (s *Session) Scene() render.Scene {
	s.mu.RLock()
	sel, loadErr := s.sel, s.loadErr
	s.mu.RUnlock()

	scene := render.Render(render.Input{
		Entities:       s.graph.Entities(),
		Links:          s.graph.Links(),
		Routes:         s.routes.Routes(),
		MaterialGroups: s.routes.MaterialGroups(),
		Selection:      sel,
		Palette:        s.palette,
		LoadErr:        loadErr,
	})
	s.metrics.UpdateScene(len(scene.Lines), len(scene.Skipped), len(scene.Markers), len(scene.Routes))
	if len(scene.Skipped) > 0 {
		s.logger.Debug("Links skipped at render", logging.Count(len(scene.Skipped)))
	}
	return scene
}

func (s *Session) publish(kind pubsub.EventKind, msg string, err error) {
	s.bus.Publish(pubsub.Event{Topic: pubsub.TopicState, Kind: kind, Message: msg, Err: err})
}

// notify reports a failed write to the operator
func (s *Session) notify(err error) {
	s.bus.Publish(pubsub.Event{
		Topic:   pubsub.TopicNotification,
		Kind:    pubsub.EventNotification,
		Message: err.Error(),
		Err:     err,
	})
}
