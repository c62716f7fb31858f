package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/GPTx-global/sun-network-oracle/oracle/log"
	"github.com/GPTx-global/sun-network-oracle/oracle/types"
)

// ErrCircuitOpen is returned by CircuitBreaker.Execute while the circuit is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config controls the backoff schedule
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 5,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
	}
}

// NetworkConfig is used for single node API calls. It only rides out a
// blip; the scheduler retries whole actuations on top of it.
func NetworkConfig() *Config {
	return &Config{
		MaxAttempts: 2,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Multiplier:  2.0,
	}
}

// BroadcastConfig is used for transaction broadcast
func BroadcastConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
	}
}

type Func func() error

// IsRetryable decides whether an error is worth another attempt
type IsRetryable func(error) bool

var transientErrors = []string{
	"connection refused",
	"timeout",
	"temporary failure",
	"network is unreachable",
	"no such host",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"too many requests",
	"server busy",
}

// DefaultIsRetryable accepts gateway errors and well known transport failures.
// Invalid event data is never retried, whatever its message says.
func DefaultIsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if types.IsPermanent(err) {
		return false
	}

	if types.IsRetryable(err) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, transient := range transientErrors {
		if strings.Contains(msg, transient) {
			return true
		}
	}

	return false
}

// BroadcastIsRetryable is DefaultIsRetryable minus the errors that mean the
// transaction already reached the node.
func BroadcastIsRetryable(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "dup_transaction_error") || strings.Contains(msg, "transaction_expiration_error") {
		return false
	}

	return DefaultIsRetryable(err)
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts
// are exhausted or ctx is done.
func Do(ctx context.Context, logger log.Logger, config *Config, fn Func, isRetryable IsRetryable) error {
	if logger == nil {
		logger = log.NewNop()
	}
	if config == nil {
		config = DefaultConfig()
	}
	if isRetryable == nil {
		isRetryable = DefaultIsRetryable
	}

	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Debug("retry succeeded", "attempt", attempt)
			}
			return nil
		}

		lastErr = err

		if attempt == config.MaxAttempts {
			break
		}

		if !isRetryable(err) {
			return err
		}

		delay := calculateDelay(config, attempt)
		logger.Info("attempt failed, backing off", "attempt", attempt, "max", config.MaxAttempts, "delay", delay, "err", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("all %d attempts failed, last error: %w", config.MaxAttempts, lastErr)
}

func calculateDelay(config *Config, attempt int) time.Duration {
	delay := float64(config.BaseDelay) * math.Pow(config.Multiplier, float64(attempt-1))

	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	return time.Duration(delay)
}

type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops calling a failing endpoint until resetTimeout passes
type CircuitBreaker struct {
	mu           sync.Mutex
	maxFailures  int
	resetTimeout time.Duration
	failures     int
	lastFailTime time.Time
	state        CircuitState
}

func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        StateClosed,
	}
}

func (cb *CircuitBreaker) Execute(fn Func) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailTime = time.Now()
		if cb.failures >= cb.maxFailures || cb.state == StateHalfOpen {
			cb.state = StateOpen
		}
		return err
	}

	cb.state = StateClosed
	cb.failures = 0

	return nil
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return true
	}

	if time.Since(cb.lastFailTime) > cb.resetTimeout {
		cb.state = StateHalfOpen
		return true
	}

	return false
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}
