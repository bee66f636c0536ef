package health

import (
	"context"
	"sync"
	"time"
)

type CheckResult struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

type Checker interface {
	Check(ctx context.Context) CheckResult
}

type CheckerFunc func(ctx context.Context) CheckResult

func (f CheckerFunc) Check(ctx context.Context) CheckResult { return f(ctx) }

// ProbeRunner runs readiness checks with a per-check timeout and caches the
// combined result briefly so probe storms don't hammer the dependencies.
type ProbeRunner struct {
	timeout  time.Duration
	cacheTTL time.Duration
	checkers []Checker

	mu          sync.Mutex
	lastRun     time.Time
	lastReady   bool
	lastResults []CheckResult
}

func NewProbeRunner(timeout, cacheTTL time.Duration, checkers ...Checker) *ProbeRunner {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &ProbeRunner{timeout: timeout, cacheTTL: cacheTTL, checkers: checkers}
}

func (p *ProbeRunner) Ready(ctx context.Context) (bool, []CheckResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if p.cacheTTL > 0 && now.Sub(p.lastRun) < p.cacheTTL && p.lastResults != nil {
		return p.lastReady, p.lastResults
	}

	ready := true
	results := make([]CheckResult, 0, len(p.checkers))
	for _, checker := range p.checkers {
		checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
		result := checker.Check(checkCtx)
		cancel()
		if !result.Healthy {
			ready = false
		}
		results = append(results, result)
	}

	p.lastRun = now
	p.lastReady = ready
	p.lastResults = results
	return ready, results
}

// DatabasePing adapts a ping func into a named checker.
func DatabasePing(name string, ping func(ctx context.Context) error) Checker {
	return CheckerFunc(func(ctx context.Context) CheckResult {
		if err := ping(ctx); err != nil {
			return CheckResult{Name: name, Healthy: false, Error: err.Error()}
		}
		return CheckResult{Name: name, Healthy: true}
	})
}
