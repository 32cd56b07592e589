package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/donaldgifford/ebay-connector/internal/metrics"
)

// ErrUnknownTask is returned for tasks with no registered handler.
var ErrUnknownTask = errors.New("unknown task")

// Handler executes one task.
type Handler func(ctx context.Context, t Task) error

// FailureHook runs once a task has failed for good, either with a
// non-retryable error or after its retries ran out.
type FailureHook func(ctx context.Context, t Task, err error)

// RetryPolicy bounds how often and how fast a retryable failure is retried.
type RetryPolicy struct {
	MaxRetries  int
	Delay       time.Duration
	Exponential bool
}

// DefaultRetryPolicy is the publish policy: five retries, thirty seconds apart.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 5, Delay: 30 * time.Second}

// NoRetry fails on the first error.
var NoRetry = RetryPolicy{}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff
	if p.Exponential {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = p.Delay
		eb.MaxElapsedTime = 0
		b = eb
	} else {
		b = backoff.NewConstantBackOff(p.Delay)
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(p.MaxRetries, 0))), ctx)
}

type registration struct {
	handler   Handler
	policy    RetryPolicy
	onFailure FailureHook
}

// RegisterOption configures a handler registration.
type RegisterOption func(*registration)

// WithPolicy overrides the retry policy of a handler.
func WithPolicy(p RetryPolicy) RegisterOption {
	return func(r *registration) {
		r.policy = p
	}
}

// OnFailure sets the hook run when the task fails for good.
func OnFailure(h FailureHook) RegisterOption {
	return func(r *registration) {
		r.onFailure = h
	}
}

// Executor dispatches tasks to their registered handlers.
type Executor struct {
	mu       sync.RWMutex
	handlers map[string]registration
	log      *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger sets a custom logger.
func WithExecutorLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.log = l
	}
}

// NewExecutor creates an Executor with no handlers.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		handlers: make(map[string]registration),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register binds a handler to a task name. Handlers default to NoRetry.
func (e *Executor) Register(name string, h Handler, opts ...RegisterOption) {
	r := registration{handler: h, policy: NoRetry}
	for _, opt := range opts {
		opt(&r)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[name] = r
}

// Execute runs t to completion: success, a non-retryable failure, or
// exhausted retries. Only errors marked Retryable are retried.
func (e *Executor) Execute(ctx context.Context, t Task) error {
	e.mu.RLock()
	r, ok := e.handlers[t.Name]
	e.mu.RUnlock()
	if !ok {
		metrics.TaskFailuresTotal.WithLabelValues(t.Name).Inc()
		return fmt.Errorf("%w: %s", ErrUnknownTask, t.Name)
	}

	attempt := 0
	op := func() error {
		attempt++
		err := r.handler(ctx, t)
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		metrics.TaskRetriesTotal.WithLabelValues(t.Name).Inc()
		e.log.Warn("task failed, retrying",
			"task", t.Name,
			"task_id", t.ID,
			"attempt", attempt,
			"retry_in", wait,
			"error", err,
		)
	}

	err := backoff.RetryNotify(op, r.policy.backOff(ctx), notify)
	if err == nil {
		return nil
	}

	metrics.TaskFailuresTotal.WithLabelValues(t.Name).Inc()
	e.log.Error("task failed",
		"task", t.Name,
		"task_id", t.ID,
		"attempts", attempt,
		"error", err,
	)
	if r.onFailure != nil {
		r.onFailure(context.WithoutCancel(ctx), t, err)
	}
	return fmt.Errorf("task %s: %w", t.Name, err)
}
