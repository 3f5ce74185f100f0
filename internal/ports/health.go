package ports

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultCheckTimeout bounds a single dependency check.
const DefaultCheckTimeout = 2 * time.Second

// ErrDuplicateChecker is returned by Register when the name is taken.
var ErrDuplicateChecker = errors.New("duplicate health checker")

// HealthChecker is a dependency the service cannot serve quotes without:
// the store backend, and the event broker when enabled.
type HealthChecker interface {
	// Name identifies the dependency in readiness reports.
	Name() string

	// Check returns nil when the dependency answers. It must honor ctx.
	Check(ctx context.Context) error
}

// HealthRegistry runs every registered check on demand.
type HealthRegistry interface {
	Register(checker HealthChecker) error
	CheckAll(ctx context.Context) *HealthResult
}

// HealthStatus is healthy or unhealthy.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthResult is the readiness report. Any failing check makes it unhealthy.
type HealthResult struct {
	Status    HealthStatus            `json:"status"`
	Checks    map[string]*CheckResult `json:"checks"`
	Timestamp time.Time               `json:"timestamp"`
}

// CheckResult is the outcome of one dependency check.
type CheckResult struct {
	Status   HealthStatus  `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Registry is the HealthRegistry used by the service. Checks run concurrently,
// each under its own timeout.
type Registry struct {
	mu       sync.RWMutex
	checkers []HealthChecker
	names    map[string]struct{}
	timeout  time.Duration
	now      func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCheckTimeout overrides DefaultCheckTimeout. Non-positive values are ignored.
func WithCheckTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func NewHealthRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		names:   make(map[string]struct{}),
		timeout: DefaultCheckTimeout,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds checker. Names must be unique.
func (r *Registry) Register(checker HealthChecker) error {
	name := checker.Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.names[name]; taken {
		return fmt.Errorf("%w: %s", ErrDuplicateChecker, name)
	}

	r.names[name] = struct{}{}
	r.checkers = append(r.checkers, checker)

	return nil
}

// Len reports the number of registered checks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.checkers)
}

// CheckAll runs every check and waits for all of them.
func (r *Registry) CheckAll(ctx context.Context) *HealthResult {
	r.mu.RLock()
	checkers := append([]HealthChecker(nil), r.checkers...)
	r.mu.RUnlock()

	results := make([]*CheckResult, len(checkers))

	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Go(func() {
			results[i] = r.run(ctx, c)
		})
	}

	wg.Wait()

	report := &HealthResult{
		Status:    HealthStatusHealthy,
		Checks:    make(map[string]*CheckResult, len(checkers)),
		Timestamp: r.now(),
	}

	for i, c := range checkers {
		report.Checks[c.Name()] = results[i]
		if results[i].Status != HealthStatusHealthy {
			report.Status = HealthStatusUnhealthy
		}
	}

	return report
}

func (r *Registry) run(ctx context.Context, c HealthChecker) *CheckResult {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	started := r.now()
	err := c.Check(ctx)

	res := &CheckResult{Status: HealthStatusHealthy, Duration: r.now().Sub(started)}
	if err != nil {
		res.Status = HealthStatusUnhealthy
		res.Message = err.Error()
	}

	return res
}
