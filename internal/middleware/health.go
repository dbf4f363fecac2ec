package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthChecker defines interface for health checking
type HealthChecker interface {
	Check(ctx context.Context) error
}

// HealthStatus represents the health status
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
}

// CheckStatus represents individual check status
type CheckStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// runChecks runs every checker with its own deadline and reports whether all passed
func runChecks(ctx context.Context, checkers map[string]HealthChecker, ok, failed string) (map[string]CheckStatus, bool) {
	checks := make(map[string]CheckStatus, len(checkers))
	healthy := true
	for name, checker := range checkers {
		cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := checker.Check(cctx)
		cancel()
		if err != nil {
			healthy = false
			checks[name] = CheckStatus{Status: failed, Message: err.Error()}
		} else {
			checks[name] = CheckStatus{Status: ok}
		}
	}
	return checks, healthy
}

func writeStatus(w http.ResponseWriter, healthy bool, body any) {
	statusCode := http.StatusOK
	if !healthy {
		statusCode = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// HealthHandler reports every dependency of the service, audit store and
// preview bucket included
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks, healthy := runChecks(ctx, checkers, "healthy", "unhealthy")
		health := HealthStatus{Status: "healthy", Timestamp: time.Now(), Checks: checks}
		if !healthy {
			health.Status = "unhealthy"
		}
		writeStatus(w, healthy, health)
	}
}

// ReadinessHandler reports whether a sketch can be served end to end, which
// needs the diagram renderer to be present
func ReadinessHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks, ready := runChecks(ctx, checkers, "ready", "not ready")
		status := HealthStatus{Status: "ready", Timestamp: time.Now(), Checks: checks}
		if !ready {
			status.Status = "not ready"
		}
		writeStatus(w, ready, status)
	}
}

// LivenessHandler answers as long as the process serves HTTP
func LivenessHandler(started time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, true, map[string]any{
			"status": "alive",
			"uptime": time.Since(started).Round(time.Second).String(),
		})
	}
}
