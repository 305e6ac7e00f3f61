package health

import (
	"sync"
	"time"
)

// Status is the state of one check or of a whole report
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) rank() int {
	switch s {
	case StatusDegraded:
		return 1
	case StatusUnhealthy:
		return 2
	default:
		return 0
	}
}

// Scope selects which endpoints run a check
type Scope uint8

const (
	Liveness Scope = 1 << iota
	Readiness
)

// Check is the result of checking one dependency
type Check struct {
	Name        string         `json:"name"`
	Status      Status         `json:"status"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	LastChecked time.Time      `json:"last_checked"`
	Duration    time.Duration  `json:"duration_ms"`
}

// CheckFunc checks one dependency
type CheckFunc func() Check

type entry struct {
	name  string
	scope Scope
	fn    CheckFunc
}

// Registry holds the checks of one process, in registration order
type Registry struct {
	mu          sync.RWMutex
	component   string
	calculation func() int64
	entries     []entry
	started     time.Time
}

// Report is the JSON body of /health and /ready
type Report struct {
	Status      Status        `json:"status"`
	Component   string        `json:"component"`
	Calculation int64         `json:"calculation_id,omitempty"`
	Checks      []Check       `json:"checks"`
	Timestamp   time.Time     `json:"timestamp"`
	Uptime      time.Duration `json:"uptime_seconds"`
}

// Find returns the named check from a report
func (r Report) Find(name string) (Check, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return Check{}, false
}
