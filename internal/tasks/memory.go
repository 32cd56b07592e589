package tasks

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
)

const (
	defaultWorkers  = 4
	defaultCapacity = 256
)

// MemoryQueue runs tasks on an in-process worker pool. Each worker owns a
// lane and tasks are routed to lanes by key, so tasks sharing a key run one
// at a time in enqueue order, the way a Kafka partition would. Tasks still
// queued when the process exits are lost; use KafkaQueue when that matters.
type MemoryQueue struct {
	exec     *Executor
	workers  int
	capacity int
	log      *slog.Logger

	mu     sync.RWMutex
	lanes  []chan Task
	closed bool
	wg     sync.WaitGroup
}

// MemoryOption configures a MemoryQueue.
type MemoryOption func(*MemoryQueue)

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) MemoryOption {
	return func(q *MemoryQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithCapacity sets the buffer size of each worker lane.
func WithCapacity(n int) MemoryOption {
	return func(q *MemoryQueue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// WithMemoryLogger sets a custom logger.
func WithMemoryLogger(l *slog.Logger) MemoryOption {
	return func(q *MemoryQueue) {
		q.log = l
	}
}

// NewMemoryQueue creates a stopped in-process queue.
func NewMemoryQueue(exec *Executor, opts ...MemoryOption) *MemoryQueue {
	q := &MemoryQueue{
		exec:     exec,
		workers:  defaultWorkers,
		capacity: defaultCapacity,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.lanes = make([]chan Task, q.workers)
	for i := range q.lanes {
		q.lanes[i] = make(chan Task, q.capacity)
	}
	return q
}

// lane picks the worker for t. Tasks without a key fall back to their id,
// matching the partition key KafkaQueue writes.
func (q *MemoryQueue) lane(t Task) chan Task {
	key := t.Key
	if key == "" {
		key = t.ID
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return q.lanes[h.Sum32()%uint32(len(q.lanes))]
}

// Start launches the workers. They run until Stop is called; ctx is the
// parent context of every task execution.
func (q *MemoryQueue) Start(ctx context.Context) {
	for _, ch := range q.lanes {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for t := range ch {
				if err := q.exec.Execute(ctx, t); err != nil {
					q.log.Debug("task finished with error", "task", t.Name, "error", err)
				}
			}
		}()
	}
}

// Enqueue hands t to its worker lane, blocking while that lane is full.
func (q *MemoryQueue) Enqueue(ctx context.Context, t Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.lane(t) <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes the queue and waits for queued tasks to drain.
func (q *MemoryQueue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for _, ch := range q.lanes {
		close(ch)
	}
	q.mu.Unlock()

	q.wg.Wait()
}
