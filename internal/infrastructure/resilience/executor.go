package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// ErrorClassification says what a failed attempt means: whether another
// attempt may succeed, and whether the breaker should count it.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

// RetryObserver is told about every retry the executor schedules.
type RetryObserver func(operation string, attempt int)

// Executor runs collaborator calls through an optional rate limiter, a
// per-operation circuit breaker and a bounded exponential retry loop.
type Executor struct {
	cfg     Config
	limiter *rate.Limiter
	onRetry RetryObserver

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(cfg Config) *Executor {
	cfg = cfg.normalize()
	e := &Executor{cfg: cfg, breakers: map[string]*gobreaker.CircuitBreaker[struct{}]{}}
	if cfg.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}
	return e
}

// OnRetry installs an observer, typically a metrics counter.
func (e *Executor) OnRetry(observer RetryObserver) *Executor {
	e.onRetry = observer
	return e
}

// Execute runs fn until it succeeds, fails permanently or runs out of
// attempts. A whole retry loop counts as one breaker request.
func (e *Executor) Execute(ctx context.Context, operation string, fn func(context.Context) error, classifier ErrorClassifier) error {
	if fn == nil {
		return errors.New("resilience: operation callback is nil")
	}
	if operation = strings.TrimSpace(operation); operation == "" {
		operation = "unknown"
	}
	if classifier == nil {
		classifier = defaultClassifier
	}

	run := func() error { return e.retry(ctx, operation, fn, classifier) }
	if !e.cfg.BreakerEnabled {
		return run()
	}
	_, err := e.breakerFor(operation, classifier).Execute(func() (struct{}, error) {
		return struct{}{}, run()
	})
	return err
}

// Call is Execute for callbacks that produce a value.
func Call[T any](ctx context.Context, e *Executor, operation string, fn func(context.Context) (T, error), classifier ErrorClassifier) (T, error) {
	var out T
	err := e.Execute(ctx, operation, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err == nil {
			out = v
		}
		return err
	}, classifier)
	return out, err
}

func (e *Executor) retry(ctx context.Context, operation string, fn func(context.Context) error, classifier ErrorClassifier) error {
	delay := e.cfg.RetryInitialBackoff
	for attempt := 1; ; attempt++ {
		if err := e.admit(ctx, operation); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= e.cfg.RetryMaxAttempts || !classifier(err).Retryable {
			return err
		}

		delay = min(delay, e.cfg.RetryMaxBackoff)
		slog.Warn("retry_attempt",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", e.cfg.RetryMaxAttempts,
			"backoff_ms", delay.Milliseconds(),
			"error", err,
		)
		if e.onRetry != nil {
			e.onRetry(operation, attempt)
		}
		if !sleep(ctx, delay) {
			return err
		}
		delay = time.Duration(float64(delay) * e.cfg.RetryMultiplier)
	}
}

// admit blocks on the rate limiter when one is configured.
func (e *Executor) admit(ctx context.Context, operation string) error {
	if e.limiter == nil {
		return ctx.Err()
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limit wait: %w", operation, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (e *Executor) breakerFor(operation string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cb, ok := e.breakers[operation]; ok {
		return cb
	}

	cfg := e.cfg
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        operation,
		MaxRequests: cfg.BreakerHalfOpenMaxCalls,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= cfg.BreakerMinRequests &&
				float64(c.TotalFailures)/float64(c.Requests) >= cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[operation] = cb
	return cb
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func defaultClassifier(error) ErrorClassification {
	return ErrorClassification{RecordFailure: true}
}
