// Package health provides HTTP liveness and readiness handlers for the
// long-running shard orchestrator, served next to the Prometheus /metrics
// endpoint.
//
//   - /healthz — liveness probe; always returns 200 OK.
//   - /readyz  — readiness probe; returns 200 only when all registered
//     [Checker] functions pass.
//
// Responses are JSON objects with a top-level "status" field ("ok" or "fail")
// and a "checks" map carrying each checker's detail line, so an operator
// polling /readyz during a sharded run sees both the dataset state and the
// validation progress.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"
)

// checkTimeout is the maximum time a single readiness check may take before
// the context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named health check. Check returns a human-readable detail for
// the JSON response ("" reads as "ok") and a non-nil error when the probed
// dependency is unhealthy. It must respect context cancellation.
type Checker struct {
	// Name is a short label for this check (e.g. "dataset", "workdir",
	// "shards"). It appears as a key in the JSON response.
	Name string

	Check func(ctx context.Context) (detail string, err error)
}

// DirExists returns a [Checker] that passes once path exists and is a
// directory. A sharded run registers its scratch directory here, so /readyz
// flips to ok only after the shard datasets have been materialized.
func DirExists(name, path string) Checker {
	return Checker{
		Name: name,
		Check: func(_ context.Context) (string, error) {
			info, err := os.Stat(path)
			if err != nil {
				return "", err
			}
			if !info.IsDir() {
				return "", fmt.Errorf("%s is not a directory", path)
			}
			return "", nil
		},
	}
}

// Progress tracks how many shard workers have finished. It never fails a
// readiness check; it exists to surface run progress in the /readyz body.
// Safe for concurrent use.
type Progress struct {
	done  atomic.Int64
	total atomic.Int64
}

// SetTotal records the number of shards the run will validate.
func (p *Progress) SetTotal(n int) { p.total.Store(int64(n)) }

// MarkDone records one finished shard worker.
func (p *Progress) MarkDone() { p.done.Add(1) }

// Checker exposes the progress as a named readiness check.
func (p *Progress) Checker() Checker {
	return Checker{
		Name: "shards",
		Check: func(_ context.Context) (string, error) {
			return fmt.Sprintf("%d/%d shards validated", p.done.Load(), p.total.Load()), nil
		},
	}
}

// result is the JSON response body for health endpoints.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz endpoints. It is safe for concurrent
// use; the checker list is fixed at construction time.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that evaluates the given checkers on each /readyz
// request. The checkers are evaluated sequentially in the order provided.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz is a liveness probe that always returns 200 OK. A running process
// that can serve HTTP is considered alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz is a readiness probe that returns 200 only when every registered
// [Checker] passes. Each checker is given a context with a [checkTimeout]
// deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	allOK := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		detail, err := c.Check(ctx)
		cancel()

		switch {
		case err != nil:
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		case detail != "":
			checks[c.Name] = detail
		default:
			checks[c.Name] = "ok"
		}
	}

	res := result{
		Status: "ok",
		Checks: checks,
	}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
