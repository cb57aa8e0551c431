package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const readyCheckTimeout = 2 * time.Second

// ReadyCheck is a named dependency probe.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

// Readiness answers /readyz. It fails while any probe fails and, after
// Drain, for good so load balancers stop routing before the listener closes.
type Readiness struct {
	checks   []ReadyCheck
	draining atomic.Bool
}

func NewReadiness(checks ...ReadyCheck) *Readiness {
	return &Readiness{checks: checks}
}

func (r *Readiness) Drain() { r.draining.Store(true) }

type readyReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (r *Readiness) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	report := readyReport{Status: "ok", Checks: r.probe(req.Context())}
	code := http.StatusOK
	for _, result := range report.Checks {
		if result != "ok" {
			report.Status, code = "unavailable", http.StatusServiceUnavailable
		}
	}
	if r.draining.Load() {
		report.Status, code = "draining", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}

// probe runs every check at once, each under its own deadline.
func (r *Readiness) probe(ctx context.Context) map[string]string {
	results := make(map[string]string, len(r.checks))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i, c := range r.checks {
		if c.Check == nil {
			continue
		}
		name := c.Name
		if name == "" {
			name = "check-" + strconv.Itoa(i)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, readyCheckTimeout)
			defer cancel()
			result := "ok"
			if err := c.Check(checkCtx); err != nil {
				result = err.Error()
			}
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// NewBaseMux serves /healthz (the process is up) and /readyz (ready).
func NewBaseMux(ready *Readiness) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/readyz", ready)
	return mux
}
