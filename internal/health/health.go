// Package health serves the liveness and readiness probes of serve mode.
//
// GET /healthz always answers 200. GET /readyz runs every [Checker]
// concurrently and answers 503 when any of them fails. Both respond with a
// JSON [Report].
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"
)

// checkTimeout bounds a single check.
const checkTimeout = 5 * time.Second

// Checker is one named readiness check. Check returns nil when healthy and
// must honour ctx.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Report is the body of both endpoints.
type Report struct {
	Status string        `json:"status"`
	Checks []CheckResult `json:"checks,omitempty"`
}

// OK reports whether every check passed.
func (r Report) OK() bool { return r.Status == "ok" }

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name       string `json:"name"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Handler evaluates a fixed set of checkers. Safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New returns a Handler over checkers. Results keep the order given here.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: slices.Clone(checkers)}
}

// Check runs every checker concurrently, each with its own timeout derived
// from ctx.
func (h *Handler) Check(ctx context.Context) Report {
	results := make([]CheckResult, len(h.checkers))
	var wg sync.WaitGroup
	for i, c := range h.checkers {
		wg.Go(func() {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			start := time.Now()
			err := c.Check(cctx)
			results[i] = CheckResult{
				Name:       c.Name,
				OK:         err == nil,
				DurationMs: time.Since(start).Milliseconds(),
			}
			if err != nil {
				results[i].Error = err.Error()
			}
		})
	}
	wg.Wait()

	rep := Report{Status: "ok", Checks: results}
	for _, r := range results {
		if !r.OK {
			rep.Status = "fail"
			break
		}
	}
	return rep
}

// Register mounts /healthz and /readyz on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		respond(w, Report{Status: "ok"})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		respond(w, h.Check(r.Context()))
	})
}

func respond(w http.ResponseWriter, rep Report) {
	status := http.StatusOK
	if !rep.OK() {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rep)
}
