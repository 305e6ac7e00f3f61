package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initChangeFeedMetrics() {
	r.ChangeFeedEventsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "topology_changefeed_events_total",
			Help: "Change notifications published or received",
		},
		[]string{"direction", "kind"},
	)
}
