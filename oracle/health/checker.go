// Package health tracks the reachability of the oracle's collaborators and
// serves it over HTTP together with the process metrics.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/armon/go-metrics"

	"github.com/GPTx-global/sun-network-oracle/oracle/log"
)

// Check verifies one dependency
type Check interface {
	Check(ctx context.Context) error
	Name() string
}

// CheckFunc adapts a ping function to a Check
type CheckFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func NewCheck(name string, fn func(ctx context.Context) error) *CheckFunc {
	return &CheckFunc{name: name, fn: fn}
}

func (c *CheckFunc) Check(ctx context.Context) error {
	return c.fn(ctx)
}

func (c *CheckFunc) Name() string {
	return c.name
}

type Status struct {
	Healthy   bool      `json:"healthy"`
	LastCheck time.Time `json:"last_check"`
	LastError string    `json:"last_error,omitempty"`
}

// Checker runs every registered check on an interval
type Checker struct {
	mu       sync.RWMutex
	checks   map[string]Check
	status   map[string]Status
	interval time.Duration
	timeout  time.Duration
	logger   log.Logger
}

func NewChecker(interval time.Duration, logger log.Logger) *Checker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = log.NewNop()
	}

	return &Checker{
		checks:   make(map[string]Check),
		status:   make(map[string]Status),
		interval: interval,
		timeout:  10 * time.Second,
		logger:   logger.With("module", "health"),
	}
}

// AddCheck registers a check; it counts as healthy until it first runs
func (hc *Checker) AddCheck(check Check) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	name := check.Name()
	hc.checks[name] = check
	hc.status[name] = Status{Healthy: true, LastCheck: time.Now()}
}

// Start runs the checks until ctx is done
func (hc *Checker) Start(ctx context.Context) error {
	ticker := time.NewTicker(hc.interval)
	defer ticker.Stop()

	hc.RunChecks(ctx)

	for {
		select {
		case <-ticker.C:
			hc.RunChecks(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// RunChecks runs every check once, concurrently, and waits for them
func (hc *Checker) RunChecks(ctx context.Context) {
	hc.mu.RLock()
	checks := make([]Check, 0, len(hc.checks))
	for _, c := range hc.checks {
		checks = append(checks, c)
	}
	hc.mu.RUnlock()

	var wg sync.WaitGroup
	for _, c := range checks {
		wg.Add(1)
		go func(c Check) {
			defer wg.Done()

			cctx, cancel := context.WithTimeout(ctx, hc.timeout)
			defer cancel()

			err := c.Check(cctx)
			status := Status{Healthy: err == nil, LastCheck: time.Now()}
			if err != nil {
				status.LastError = err.Error()
				hc.logger.Error("health check failed", "check", c.Name(), "err", err)
			}

			gauge := float32(0)
			if status.Healthy {
				gauge = 1
			}
			metrics.SetGauge([]string{"oracle", "health", c.Name()}, gauge)

			hc.mu.Lock()
			hc.status[c.Name()] = status
			hc.mu.Unlock()
		}(c)
	}
	wg.Wait()
}

func (hc *Checker) Status() map[string]Status {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	result := make(map[string]Status, len(hc.status))
	for name, status := range hc.status {
		result[name] = status
	}

	return result
}

func (hc *Checker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	for _, status := range hc.status {
		if !status.Healthy {
			return false
		}
	}

	return true
}
