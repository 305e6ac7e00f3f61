package health

import (
	"encoding/json"
	"net/http"
)

// Mount registers GET /health and GET /ready on mux
func (r *Registry) Mount(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", r.LivenessHandler())
	mux.HandleFunc("GET /ready", r.ReadinessHandler())
}

// LivenessHandler answers 503 only when a check is unhealthy
func (r *Registry) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		report := r.Liveness()
		code := http.StatusOK
		if report.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeReport(w, code, report)
	}
}

// ReadinessHandler answers 503 unless every check is healthy
func (r *Registry) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		report := r.Readiness()
		code := http.StatusOK
		if report.Status != StatusHealthy {
			code = http.StatusServiceUnavailable
		}
		writeReport(w, code, report)
	}
}

func writeReport(w http.ResponseWriter, code int, report Report) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(report)
}
