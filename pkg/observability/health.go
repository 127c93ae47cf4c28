package observability

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus represents the health of a long-running job runner
type HealthStatus struct {
	Status    string     `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	Version   string     `json:"version,omitempty"`
	Runs      int        `json:"runs"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// HealthChecker tracks job run outcomes for health probes
type HealthChecker struct {
	mu      sync.RWMutex
	version string
	runs    int
	lastRun time.Time
	lastErr error
	now     func() time.Time
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{version: version, now: time.Now}
}

// RecordRun records the outcome of a job run
func (h *HealthChecker) RecordRun(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs++
	h.lastRun = h.now()
	h.lastErr = err
}

// Check returns the current health status. The runner is unhealthy until a
// run has completed and degraded while the latest run failed.
func (h *HealthChecker) Check() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := HealthStatus{
		Status:    StatusHealthy,
		Timestamp: h.now(),
		Version:   h.version,
		Runs:      h.runs,
	}
	switch {
	case h.runs == 0:
		status.Status = StatusUnhealthy
	case h.lastErr != nil:
		status.Status = StatusDegraded
		status.LastError = h.lastErr.Error()
	}
	if h.runs > 0 {
		lastRun := h.lastRun
		status.LastRun = &lastRun
	}
	return status
}

// Liveness returns a simple liveness probe (always returns 200 if the process is running)
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, HealthStatus{Status: StatusHealthy, Timestamp: h.now(), Version: h.version})
}

// Readiness returns 200 only while the latest run succeeded: 503 before the
// first run and after a failed one
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	status := h.Check()
	code := http.StatusOK
	if status.Status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	writeHealth(w, code, status)
}

// RegisterHealthEndpoints registers /health/live and /health/ready
func (h *HealthChecker) RegisterHealthEndpoints(router *mux.Router) {
	router.HandleFunc("/health/live", h.Liveness).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", h.Readiness).Methods(http.MethodGet)
}

func writeHealth(w http.ResponseWriter, code int, status HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}
