// Package health reports whether the editor or fixture server has usable
// calculation data.
package health

import "time"

// NewRegistry creates a registry for component. calculation, when set,
// supplies the calculation id shown in reports.
func NewRegistry(component string, calculation func() int64) *Registry {
	return &Registry{
		component:   component,
		calculation: calculation,
		started:     time.Now(),
	}
}

// Register adds a check to the given scopes. Registering a name again
// replaces the earlier check in place.
func (r *Registry) Register(name string, scope Scope, fn CheckFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entries {
		if r.entries[i].name == name {
			r.entries[i] = entry{name: name, scope: scope, fn: fn}
			return
		}
	}
	r.entries = append(r.entries, entry{name: name, scope: scope, fn: fn})
}

// Liveness runs the checks registered for /health
func (r *Registry) Liveness() Report {
	return r.run(Liveness)
}

// Readiness runs the checks registered for /ready
func (r *Registry) Readiness() Report {
	return r.run(Readiness)
}

// run evaluates checks outside the lock so a slow check never blocks
// registration
func (r *Registry) run(scope Scope) Report {
	r.mu.RLock()
	entries := make([]entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.scope&scope != 0 {
			entries = append(entries, e)
		}
	}
	r.mu.RUnlock()

	report := Report{
		Status:    StatusHealthy,
		Component: r.component,
		Checks:    make([]Check, 0, len(entries)),
		Timestamp: time.Now(),
		Uptime:    time.Since(r.started),
	}
	if r.calculation != nil {
		report.Calculation = r.calculation()
	}

	for _, e := range entries {
		start := time.Now()
		c := e.fn()
		c.Name = e.name
		c.LastChecked = start
		c.Duration = time.Since(start)
		if c.Status == "" {
			c.Status = StatusHealthy
		}
		if c.Status.rank() > report.Status.rank() {
			report.Status = c.Status
		}
		report.Checks = append(report.Checks, c)
	}
	return report
}
