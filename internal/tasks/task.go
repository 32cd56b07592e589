// Package tasks runs background work (publishing, order pushes, syncs
// triggered by notifications) outside the request path. A Task is a named,
// keyed JSON payload; an Executor maps names to handlers and applies the
// handler's retry policy; a Queue moves tasks from producers to the executor
// either in-process or through Kafka.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrQueueClosed is returned by Enqueue after the queue has been stopped.
var ErrQueueClosed = errors.New("task queue closed")

// Task is one unit of background work.
type Task struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Key        string          `json:"key,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// New builds a task with a fresh id. Key groups tasks that must not run
// concurrently (e.g. a listing id); both queues run them in order.
func New(name, key string, payload any) (Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Task{}, fmt.Errorf("encoding %s payload: %w", name, err)
	}
	return Task{
		ID:         uuid.NewString(),
		Name:       name,
		Key:        key,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the task payload into v.
func (t Task) Decode(v any) error {
	if err := json.Unmarshal(t.Payload, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", t.Name, err)
	}
	return nil
}

// Queue accepts tasks for asynchronous execution.
type Queue interface {
	Enqueue(ctx context.Context, t Task) error
}

// Retryable is implemented by errors that may succeed when tried again.
type Retryable interface {
	Retryable() bool
}

// IsRetryable reports whether err, or any error it wraps, is marked retryable.
func IsRetryable(err error) bool {
	var r Retryable
	return errors.As(err, &r) && r.Retryable()
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string   { return e.err.Error() }
func (e *retryableError) Unwrap() error   { return e.err }
func (e *retryableError) Retryable() bool { return true }

// MarkRetryable wraps err so the executor retries it.
func MarkRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}
