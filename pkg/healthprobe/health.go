// Package healthprobe serves liveness and readiness. Liveness is process-up;
// readiness additionally runs registered dependency probes (hot store,
// durable store) so a broken tier takes the instance out of rotation.
package healthprobe

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
)

// probeTimeout bounds one dependency check.
const probeTimeout = 2 * time.Second

// Probe checks one dependency. A nil error means healthy.
type Probe func(ctx context.Context) error

// HealthChecker provides health and readiness checks.
type HealthChecker struct {
	startTime time.Time
	ready     atomic.Bool

	mu     sync.RWMutex
	probes map[string]Probe
}

// New creates a new HealthChecker.
func New() *HealthChecker {
	return &HealthChecker{
		startTime: time.Now(),
		probes:    make(map[string]Probe),
	}
}

// SetReady marks the application as ready to serve traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// RegisterProbe adds a named dependency check to the readiness handler.
func (h *HealthChecker) RegisterProbe(name string, probe Probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes[name] = probe
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime"`
	Checks  map[string]string `json:"checks,omitempty"`
	Message string            `json:"message,omitempty"`
}

// Health returns an HTTP handler for liveness checks.
// Always returns 200 OK if the application is running.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status: "healthy",
			Uptime: time.Since(h.startTime).String(),
		})
	}
}

// Ready returns an HTTP handler for readiness checks.
// Returns 200 OK when the app is up and every probe passes, 503 otherwise.
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.ready.Load() {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:  "not_ready",
				Message: "application is starting",
			})
			return
		}

		checks, healthy := h.runProbes(r.Context())

		resp := HealthResponse{
			Status: "ready",
			Uptime: time.Since(h.startTime).String(),
			Checks: checks,
		}

		if !healthy {
			resp.Status = "not_ready"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *HealthChecker) runProbes(ctx context.Context) (map[string]string, bool) {
	h.mu.RLock()
	probes := make(map[string]Probe, len(h.probes))
	for name, p := range h.probes {
		probes[name] = p
	}
	h.mu.RUnlock()

	if len(probes) == 0 {
		return nil, true
	}

	checks := make(map[string]string, len(probes))
	healthy := true

	for name, probe := range probes {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := probe(pctx)
		cancel()

		if err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}

		checks[name] = "ok"
	}

	return checks, healthy
}

func writeJSON(w http.ResponseWriter, status int, resp HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
