package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for the editor and the fixture server
type Registry struct {
	// Sync client metrics (editor -> API)
	SyncRequestsTotal    *prometheus.CounterVec
	SyncRequestDuration  *prometheus.HistogramVec
	SyncRequestsInFlight prometheus.Gauge

	// Editor metrics
	ReloadsTotal                 *prometheus.CounterVec
	ReloadDuration               prometheus.Histogram
	MutationsTotal               *prometheus.CounterVec
	DragsCompletedTotal          prometheus.Counter
	PositionPersistFailuresTotal prometheus.Counter
	SelectionTransitionsTotal    *prometheus.CounterVec

	// Scene metrics
	SceneLinesRendered prometheus.Gauge
	SceneLinesSkipped  prometheus.Gauge
	SceneMarkers       prometheus.Gauge
	SceneRoutes        prometheus.Gauge

	// Change feed metrics
	ChangeFeedEventsTotal *prometheus.CounterVec

	// HTTP server metrics (fixture server)
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// System metrics
	UptimeSeconds prometheus.Gauge
	GoRoutines    prometheus.Gauge

	registry *prometheus.Registry
	mu       sync.RWMutex
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	r.initSyncMetrics()
	r.initEditorMetrics()
	r.initSceneMetrics()
	r.initChangeFeedMetrics()
	r.initHTTPMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler exposes the registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
