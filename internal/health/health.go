// Package health serves the liveness and readiness probes of the ops server.
//
//   - /healthz: liveness; always 200 while the process serves HTTP.
//   - /readyz: readiness; 200 only when every registered [Checker] passes.
//
// Responses are JSON objects with a top-level "status" field ("ok" or "fail")
// and a "checks" map holding the result of each named checker.
package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/MrWong99/humint/internal/resilience"
	"github.com/MrWong99/humint/pkg/events"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named readiness check. Check returns nil when the dependency
// is usable.
type Checker struct {
	// Name appears as a key in the JSON response (e.g. "sink:sqlite").
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// PingChecker reports whether p answers a ping.
func PingChecker(name string, p events.Pinger) Checker {
	return Checker{Name: name, Check: p.Ping}
}

// BreakerChecker fails while cb is open.
func BreakerChecker(cb *resilience.CircuitBreaker) Checker {
	return Checker{
		Name: "breaker:" + cb.Name(),
		Check: func(context.Context) error {
			if s := cb.State(); s == resilience.StateOpen {
				return fmt.Errorf("circuit %s", s)
			}
			return nil
		},
	}
}

type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction time.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that runs checkers on each /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz returns 200 only when every [Checker] passes. Checks run
// concurrently, each with a [checkTimeout] deadline derived from the request
// context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	errs := make([]error, len(h.checkers))
	var wg sync.WaitGroup
	for i, c := range h.checkers {
		wg.Go(func() {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			errs[i] = c.Check(ctx)
		})
	}
	wg.Wait()

	res := result{Status: "ok", Checks: make(map[string]string, len(h.checkers))}
	status := http.StatusOK
	for i, c := range h.checkers {
		if errs[i] != nil {
			res.Checks[c.Name] = "fail: " + errs[i].Error()
			res.Status = "fail"
			status = http.StatusServiceUnavailable
			continue
		}
		res.Checks[c.Name] = "ok"
	}
	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
