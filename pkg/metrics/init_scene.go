package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSceneMetrics() {
	r.SceneLinesRendered = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "topology_scene_lines_rendered",
			Help: "Links drawn in the last rendered scene",
		},
	)

	r.SceneLinesSkipped = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "topology_scene_lines_skipped",
			Help: "Links skipped in the last scene because an endpoint did not resolve",
		},
	)

	r.SceneMarkers = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "topology_scene_markers",
			Help: "Node and device markers in the last rendered scene",
		},
	)

	r.SceneRoutes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "topology_scene_routes",
			Help: "Routes listed in the last rendered scene",
		},
	)
}
