package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/bryanwahyu/csvask/internal/domain/relay"
)

const readinessTimeout = 5 * time.Second

// HealthChecker is one dependency probed by the readiness endpoint.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to HealthChecker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

// CatalogHealthChecker reports whether the CSV catalog can be listed.
type CatalogHealthChecker struct {
	Catalog relay.Catalog
}

func (c *CatalogHealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := c.Catalog.List(ctx)
	return err
}

type readiness struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]checkResult `json:"checks"`
}

type checkResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthHandler probes every checker in parallel and answers 503 if any fails.
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		out := readiness{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
			Checks:    make(map[string]checkResult, len(checkers)),
		}

		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)
		for name, checker := range checkers {
			name, checker := name, checker
			wg.Add(1)
			go func() {
				defer wg.Done()
				res := checkResult{Status: "healthy"}
				if err := checker.Check(ctx); err != nil {
					res = checkResult{Status: "unhealthy", Message: err.Error()}
				}
				mu.Lock()
				out.Checks[name] = res
				if res.Status != "healthy" {
					out.Status = "unhealthy"
				}
				mu.Unlock()
			}()
		}
		wg.Wait()

		code := http.StatusOK
		if out.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(out)
	}
}

// LivenessHandler answers 200 "ok" while the process is serving.
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
