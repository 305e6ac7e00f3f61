package health

// LoadCheck reports whether the last load of calculation data succeeded.
// lastErr returns nil once data is loaded.
func LoadCheck(lastErr func() error) CheckFunc {
	return func() Check {
		check := Check{Name: "data"}
		if err := lastErr(); err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
		} else {
			check.Status = StatusHealthy
			check.Message = "Loaded"
		}
		return check
	}
}

// DatasetCheck reports the size of the served dataset. An empty dataset is
// degraded, not unhealthy.
func DatasetCheck(counts func() (nodes, devices, links, routes int)) CheckFunc {
	return func() Check {
		nodes, devices, links, routes := counts()
		check := Check{
			Name:   "dataset",
			Status: StatusHealthy,
			Details: map[string]any{
				"nodes":   nodes,
				"devices": devices,
				"links":   links,
				"routes":  routes,
			},
		}
		if nodes+devices == 0 {
			check.Status = StatusDegraded
			check.Message = "No nodes or devices"
		}
		return check
	}
}

// FeedCheck reports change feed delivery. A failing feed is degraded.
func FeedCheck(enabled bool, lastErr func() error) CheckFunc {
	return func() Check {
		check := Check{Name: "changefeed", Status: StatusHealthy}
		switch {
		case !enabled:
			check.Message = "Disabled"
		case lastErr() != nil:
			check.Status = StatusDegraded
			check.Message = lastErr().Error()
		default:
			check.Message = "Publishing"
		}
		return check
	}
}
