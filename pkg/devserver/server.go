// Package devserver is an in-memory implementation of the calculation API
// the editor consumes, seeded from YAML fixtures. It backs local editing
// sessions and end-to-end tests.
package devserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/dd0wney/cluso-topology/pkg/changefeed"
	"github.com/dd0wney/cluso-topology/pkg/health"
	"github.com/dd0wney/cluso-topology/pkg/logging"
	"github.com/dd0wney/cluso-topology/pkg/metrics"
)

// Announcer receives a change after every successful write
type Announcer interface {
	Announce(c changefeed.Change)
}

// Options configures the server
type Options struct {
	Fixtures     *Fixtures
	FixturesPath string // reread by ReloadFixtures
	CSRFHeader   string
	CSRFToken    string // mutations must carry it when set
	Logger       logging.Logger
	Metrics      *metrics.Registry
	Feed         Announcer
	FeedErr      func() error
}

// Server serves one calculation
type Server struct {
	data            *Dataset
	fixturesPath    string
	csrfHeader      string
	csrfToken       string
	logger          logging.Logger
	metricsRegistry *metrics.Registry
	health          *health.Registry
	feed            Announcer
	startTime       time.Time

	handlerOnce sync.Once
	handler     http.Handler
}

// New creates a server. Fixtures default to the built-in site.
func New(opts Options) (*Server, error) {
	f := opts.Fixtures
	if f == nil {
		var err error
		if f, err = LoadFixtures(opts.FixturesPath); err != nil {
			return nil, err
		}
	}

	s := &Server{
		data:            NewDataset(f),
		fixturesPath:    opts.FixturesPath,
		csrfHeader:      opts.CSRFHeader,
		csrfToken:       opts.CSRFToken,
		logger:          logging.OrDefault(opts.Logger).With(logging.Component("devserver")),
		metricsRegistry: opts.Metrics,
		feed:            opts.Feed,
		startTime:       time.Now(),
	}
	if s.csrfHeader == "" {
		s.csrfHeader = "X-CSRF-TOKEN"
	}
	if s.metricsRegistry == nil {
		s.metricsRegistry = metrics.DefaultRegistry()
	}

	s.health = health.NewRegistry("topology-devserver", s.data.Calculation)
	s.health.Register("dataset", health.Liveness|health.Readiness, health.DatasetCheck(s.data.Counts))
	feedErr := opts.FeedErr
	if feedErr == nil {
		feedErr = func() error { return nil }
	}
	s.health.Register("changefeed", health.Liveness, health.FeedCheck(opts.Feed != nil, feedErr))
	return s, nil
}

// Dataset exposes the in-memory state
func (s *Server) Dataset() *Dataset { return s.data }

// Handler returns the HTTP handler with middleware applied
func (s *Server) Handler() http.Handler {
	s.handlerOnce.Do(func() {
		mux := http.NewServeMux()
		s.registerRoutes(mux)

		var h http.Handler = mux
		h = s.csrfMiddleware(h)
		h = s.loggingMiddleware(h)
		h = s.metricsMiddleware(h)
		h = s.panicRecoveryMiddleware(h)
		s.handler = h
	})
	return s.handler
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	const base = "/api/calculations/{calc}"

	mux.HandleFunc("GET "+base+"/topology", s.handleTopology)
	mux.HandleFunc("GET "+base+"/routes", s.handleRoutes)
	mux.HandleFunc("POST "+base+"/routes", s.handleCreateRoute)
	mux.HandleFunc("PATCH "+base+"/routes/{id}", s.handleUpdateRoute)
	mux.HandleFunc("DELETE "+base+"/routes/{id}", s.handleDeleteRoute)
	mux.HandleFunc("POST "+base+"/routes/{id}/assign-link", s.handleAssignLink)
	mux.HandleFunc("POST "+base+"/routes/{id}/unassign-link", s.handleUnassignLink)
	mux.HandleFunc("POST "+base+"/topology/links", s.handleCreateLink)
	mux.HandleFunc("PATCH "+base+"/topology/links/{id}", s.handleUpdateLink)
	mux.HandleFunc("DELETE "+base+"/topology/links/{id}", s.handleDeleteLink)
	mux.HandleFunc("POST "+base+"/topology/{kind}/{id}/position", s.handleMove)

	s.health.Mount(mux)
	mux.Handle("GET /metrics", s.metricsRegistry.Handler())
}

// ReloadFixtures rereads the fixture file and replaces all state. Connected
// editors are told to reload.
func (s *Server) ReloadFixtures() error {
	f, err := LoadFixtures(s.fixturesPath)
	if err != nil {
		return err
	}
	s.data.Replace(f)
	s.logger.Info("Fixtures reloaded", logging.Calculation(f.CalculationID))
	s.announce(changefeed.KindDatasetReload, 0)
	return nil
}

func (s *Server) announce(kind string, id int64) {
	if s.feed == nil {
		return
	}
	s.feed.Announce(changefeed.Change{Calculation: s.data.Calculation(), Kind: kind, ID: id})
}
