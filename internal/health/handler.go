// AngelaMos | 2026
// handler.go

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
)

const checkTimeout = 5 * time.Second

type Checker interface {
	Ping(ctx context.Context) error
}

type dependency struct {
	name    string
	checker Checker
}

// Handler serves liveness and readiness probes. Readiness pings every
// registered dependency in parallel.
type Handler struct {
	deps     []dependency
	ready    atomic.Bool
	shutdown atomic.Bool
}

func NewHandler(db, redis Checker) *Handler {
	h := &Handler{
		deps: []dependency{
			{name: "database", checker: db},
			{name: "redis", checker: redis},
		},
	}
	h.ready.Store(true)
	return h
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Liveness)
	r.Get("/readyz", h.Readiness)
}

func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	if h.shutdown.Load() {
		h.write(w, http.StatusServiceUnavailable, probeResponse{
			Status: "shutting_down",
		})
		return
	}

	h.write(w, http.StatusOK, probeResponse{Status: "ok"})
}

func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.shutdown.Load() || !h.ready.Load() {
		h.write(w, http.StatusServiceUnavailable, probeResponse{
			Status: "not_ready",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	checks := h.runChecks(ctx)

	status := "ok"
	code := http.StatusOK
	for _, c := range checks {
		if !c.Healthy {
			status = "degraded"
			code = http.StatusServiceUnavailable
			break
		}
	}

	h.write(w, code, probeResponse{Status: status, Checks: checks})
}

func (h *Handler) runChecks(ctx context.Context) []CheckResult {
	results := make([]CheckResult, len(h.deps))

	var wg sync.WaitGroup
	for i, dep := range h.deps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = runCheck(ctx, dep)
		}()
	}
	wg.Wait()

	return results
}

func runCheck(ctx context.Context, dep dependency) CheckResult {
	result := CheckResult{Name: dep.name, Healthy: true}

	if dep.checker == nil {
		result.Healthy = false
		result.Message = "checker not configured"
		return result
	}

	start := time.Now()
	if err := dep.checker.Ping(ctx); err != nil {
		result.Healthy = false
		result.Message = "ping failed"
	}
	result.Latency = time.Since(start).String()

	return result
}

func (h *Handler) SetReady(ready bool) {
	h.ready.Store(ready)
}

func (h *Handler) SetShutdown(shutdown bool) {
	h.shutdown.Store(shutdown)
}

func (h *Handler) write(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	//nolint:errcheck // best-effort response
	_ = json.NewEncoder(w).Encode(data)
}

type probeResponse struct {
	Status string        `json:"status"`
	Checks []CheckResult `json:"checks,omitempty"`
}

type CheckResult struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}
