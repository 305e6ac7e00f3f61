package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initEditorMetrics() {
	r.ReloadsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "topology_reloads_total",
			Help: "Total number of full reloads of both aggregates",
		},
		[]string{"trigger", "result"},
	)

	r.ReloadDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "topology_reload_duration_seconds",
			Help:    "Time to fetch both aggregates in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	r.MutationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "topology_mutations_total",
			Help: "Total number of write operations by outcome",
		},
		[]string{"op", "result"},
	)

	r.DragsCompletedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "topology_drags_completed_total",
			Help: "Total number of completed drag gestures",
		},
	)

	r.PositionPersistFailuresTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "topology_position_persist_failures_total",
			Help: "Total number of position saves rejected or lost",
		},
	)

	r.SelectionTransitionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "topology_selection_transitions_total",
			Help: "Total number of selection state changes by target state",
		},
		[]string{"state"},
	)
}
