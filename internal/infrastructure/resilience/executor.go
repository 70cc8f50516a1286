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
)

type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

// ErrCallTimeout marks an attempt that ran out of its per-call budget while
// the caller's context was still alive.
var ErrCallTimeout = errors.New("call timed out")

type TimeoutError struct {
	Operation string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no result within %s", e.Operation, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return ErrCallTimeout
}

func IsCallTimeout(err error) bool {
	return errors.Is(err, ErrCallTimeout)
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Observer is told about retries and breaker transitions per operation
// (ollama.generate, crossencoder.rerank, web.fetch, ...).
type Observer interface {
	ObserveRetry(operation string)
	ObserveBreakerState(operation, state string)
}

type Option func(*Executor)

func WithObserver(observer Observer) Option {
	return func(e *Executor) {
		e.observer = observer
	}
}

// Executor runs upstream calls with a per-attempt timeout, bounded
// exponential retries and one circuit breaker per operation name.
type Executor struct {
	cfg      Config
	observer Observer

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(cfg Config, opts ...Option) *Executor {
	e := &Executor{
		cfg:      cfg.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Execute(ctx context.Context, operation string, fn func(context.Context) error, classifier ErrorClassifier) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	classify := withCallTimeout(classifier)

	if !e.cfg.BreakerEnabled {
		return e.retry(ctx, op, fn, classify)
	}
	_, err := e.breaker(op, classify).Execute(func() (struct{}, error) {
		return struct{}{}, e.retry(ctx, op, fn, classify)
	})
	return err
}

// withCallTimeout makes per-attempt timeouts retryable failures whatever the
// adapter classifier says.
func withCallTimeout(classifier ErrorClassifier) ErrorClassifier {
	if classifier == nil {
		classifier = defaultClassifier
	}
	return func(err error) ErrorClassification {
		if IsCallTimeout(err) {
			return ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return classifier(err)
	}
}

func (e *Executor) retry(ctx context.Context, operation string, fn func(context.Context) error, classify ErrorClassifier) error {
	delay := e.cfg.RetryInitialBackoff
	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		err = e.attempt(ctx, operation, fn)
		if err == nil || !classify(err).Retryable || attempt >= e.cfg.RetryMaxAttempts {
			return err
		}

		wait := min(delay, e.cfg.RetryMaxBackoff)
		slog.Warn("retry_attempt",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", e.cfg.RetryMaxAttempts,
			"backoff_ms", wait.Milliseconds(),
			"error", err,
		)
		if e.observer != nil {
			e.observer.ObserveRetry(operation)
		}
		if !sleep(ctx, wait) {
			return err
		}
		delay = min(time.Duration(float64(delay)*e.cfg.RetryMultiplier), e.cfg.RetryMaxBackoff)
	}
}

func (e *Executor) attempt(ctx context.Context, operation string, fn func(context.Context) error) error {
	if e.cfg.CallTimeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	err := fn(callCtx)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Operation: operation, Timeout: e.cfg.CallTimeout}
	}
	return err
}

// sleep waits d unless ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (e *Executor) breaker(operation string, classify ErrorClassifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[operation]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        operation,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classify(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
			if e.observer != nil {
				e.observer.ObserveBreakerState(name, to.String())
			}
		},
	})
	e.breakers[operation] = cb
	return cb
}

func defaultClassifier(error) ErrorClassification {
	return ErrorClassification{Retryable: false, RecordFailure: true}
}
