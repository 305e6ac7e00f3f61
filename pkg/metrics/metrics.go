package metrics

import (
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Result labels
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// RecordSyncRequest records one editor API call. Status is the HTTP status
// code, or 0 when no response arrived.
func (r *Registry) RecordSyncRequest(method, route string, status int, duration time.Duration) {
	label := "none"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	r.SyncRequestsTotal.WithLabelValues(method, route, label).Inc()
	r.SyncRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordReload records a full reload and what triggered it
func (r *Registry) RecordReload(trigger string, err error, duration time.Duration) {
	r.ReloadsTotal.WithLabelValues(trigger, resultOf(err)).Inc()
	r.ReloadDuration.Observe(duration.Seconds())
}

// RecordMutation records the outcome of a write operation
func (r *Registry) RecordMutation(op string, err error) {
	r.MutationsTotal.WithLabelValues(op, resultOf(err)).Inc()
}

// RecordDrag records a completed drag and whether its save failed
func (r *Registry) RecordDrag(persistErr error) {
	r.DragsCompletedTotal.Inc()
	if persistErr != nil {
		r.PositionPersistFailuresTotal.Inc()
	}
}

// RecordSelection records a transition into the named selection state
func (r *Registry) RecordSelection(state string) {
	r.SelectionTransitionsTotal.WithLabelValues(state).Inc()
}

// UpdateScene updates the scene gauges after a render
func (r *Registry) UpdateScene(lines, skipped, markers, routes int) {
	r.SceneLinesRendered.Set(float64(lines))
	r.SceneLinesSkipped.Set(float64(skipped))
	r.SceneMarkers.Set(float64(markers))
	r.SceneRoutes.Set(float64(routes))
}

// RecordChangeFeed records a change notification. Direction is "published"
// or "received".
func (r *Registry) RecordChangeFeed(direction, kind string) {
	r.ChangeFeedEventsTotal.WithLabelValues(direction, kind).Inc()
}

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// UpdateSystemMetrics refreshes uptime and goroutine gauges
func (r *Registry) UpdateSystemMetrics(started time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.UptimeSeconds.Set(time.Since(started).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
}

// RouteLabel collapses numeric path segments so that label cardinality
// stays bounded: /routes/12/assign-link becomes /routes/{id}/assign-link.
func RouteLabel(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

func resultOf(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
