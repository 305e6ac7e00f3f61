package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry("topology-editor", func() int64 { return 7 })

	report := r.Liveness()
	if report.Component != "topology-editor" {
		t.Errorf("expected component topology-editor, got %q", report.Component)
	}
	if report.Calculation != 7 {
		t.Errorf("expected calculation 7, got %d", report.Calculation)
	}
	if report.Status != StatusHealthy || len(report.Checks) != 0 {
		t.Errorf("expected empty healthy report, got %+v", report)
	}
}

func TestRegisterScopes(t *testing.T) {
	r := NewRegistry("test", nil)

	var live, ready int
	r.Register("live", Liveness, func() Check {
		live++
		return Check{Status: StatusHealthy}
	})
	r.Register("ready", Readiness, func() Check {
		ready++
		return Check{Status: StatusHealthy}
	})
	r.Register("both", Liveness|Readiness, func() Check { return Check{} })

	report := r.Liveness()
	if live != 1 || ready != 0 {
		t.Errorf("liveness ran live=%d ready=%d", live, ready)
	}
	if _, ok := report.Find("both"); !ok {
		t.Error("shared check missing from liveness")
	}

	report = r.Readiness()
	if live != 1 || ready != 1 {
		t.Errorf("readiness ran live=%d ready=%d", live, ready)
	}
	if c, ok := report.Find("both"); !ok || c.Status != StatusHealthy {
		t.Errorf("empty status should default to healthy, got %+v", c)
	}
}

func TestRegisterReplacesInPlace(t *testing.T) {
	r := NewRegistry("test", nil)
	r.Register("a", Liveness, func() Check { return Check{Status: StatusUnhealthy} })
	r.Register("b", Liveness, func() Check { return Check{Status: StatusHealthy} })
	r.Register("a", Liveness, func() Check { return Check{Status: StatusHealthy, Name: "ignored"} })

	report := r.Liveness()
	if len(report.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(report.Checks))
	}
	if report.Checks[0].Name != "a" || report.Checks[1].Name != "b" {
		t.Errorf("order not kept: %+v", report.Checks)
	}
	if report.Status != StatusHealthy {
		t.Errorf("replaced check still counted: %s", report.Status)
	}
}

func TestCheckStatusAggregation(t *testing.T) {
	tests := []struct {
		name           string
		checkStatuses  []Status
		expectedStatus Status
	}{
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded, StatusHealthy}, StatusDegraded},
		{"degraded and unhealthy", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
		{"unhealthy first", []Status{StatusUnhealthy, StatusDegraded}, StatusUnhealthy},
		{"no checks", nil, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry("test", nil)
			for i, status := range tt.checkStatuses {
				s := status
				r.Register(string(rune('a'+i)), Liveness, func() Check { return Check{Status: s} })
			}

			if got := r.Liveness().Status; got != tt.expectedStatus {
				t.Errorf("expected status %s, got %s", tt.expectedStatus, got)
			}
		})
	}
}

func TestCheckDuration(t *testing.T) {
	r := NewRegistry("test", nil)

	sleepDuration := 10 * time.Millisecond
	r.Register("slow", Liveness, func() Check {
		time.Sleep(sleepDuration)
		return Check{Status: StatusHealthy}
	})

	report := r.Liveness()
	if c, _ := report.Find("slow"); c.Duration < sleepDuration {
		t.Errorf("duration %v less than sleep time %v", c.Duration, sleepDuration)
	}
	if report.Uptime <= 0 {
		t.Errorf("expected positive uptime, got %v", report.Uptime)
	}
}

func TestLoadCheck(t *testing.T) {
	var lastErr error
	check := LoadCheck(func() error { return lastErr })

	if c := check(); c.Status != StatusHealthy || c.Name != "data" {
		t.Errorf("expected healthy data check, got %+v", c)
	}

	lastErr = errors.New("load topology: connection refused")
	c := check()
	if c.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", c.Status)
	}
	if c.Message != lastErr.Error() {
		t.Errorf("expected message %q, got %q", lastErr.Error(), c.Message)
	}
}

func TestDatasetCheck(t *testing.T) {
	c := DatasetCheck(func() (int, int, int, int) { return 2, 1, 3, 1 })()
	if c.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", c.Status)
	}
	if c.Details["links"] != 3 {
		t.Errorf("expected 3 links in details, got %v", c.Details["links"])
	}

	empty := DatasetCheck(func() (int, int, int, int) { return 0, 0, 0, 0 })()
	if empty.Status != StatusDegraded {
		t.Errorf("expected degraded for empty dataset, got %s", empty.Status)
	}
}

func TestFeedCheck(t *testing.T) {
	tests := []struct {
		name     string
		enabled  bool
		err      error
		expected Status
	}{
		{"disabled", false, errors.New("ignored"), StatusHealthy},
		{"publishing", true, nil, StatusHealthy},
		{"failing", true, errors.New("send failed"), StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := FeedCheck(tt.enabled, func() error { return tt.err })()
			if c.Status != tt.expected {
				t.Errorf("expected %s, got %s (%s)", tt.expected, c.Status, c.Message)
			}
		})
	}
}

func TestLivenessHandler(t *testing.T) {
	tests := []struct {
		name         string
		status       Status
		expectedCode int
	}{
		{"healthy", StatusHealthy, http.StatusOK},
		{"degraded", StatusDegraded, http.StatusOK},
		{"unhealthy", StatusUnhealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry("test", nil)
			r.Register("data", Liveness, func() Check { return Check{Status: tt.status} })

			mux := http.NewServeMux()
			r.Mount(mux)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.expectedCode {
				t.Errorf("expected status %d, got %d", tt.expectedCode, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected JSON content type, got %s", ct)
			}

			var report Report
			if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if report.Status != tt.status {
				t.Errorf("expected body status %s, got %s", tt.status, report.Status)
			}
		})
	}
}

func TestReadinessHandlerDegradedIsNotReady(t *testing.T) {
	r := NewRegistry("test", nil)
	r.Register("dataset", Readiness, func() Check { return Check{Status: StatusDegraded} })

	mux := http.NewServeMux()
	r.Mount(mux)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}
