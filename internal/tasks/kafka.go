package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaQueue publishes tasks to a topic and consumes them through a consumer
// group, so tasks survive restarts and are shared between replicas. Tasks
// with the same key land on the same partition and run in order.
type KafkaQueue struct {
	writer *kafka.Writer
	reader *kafka.Reader
	exec   *Executor
	log    *slog.Logger
}

// KafkaOption configures a KafkaQueue.
type KafkaOption func(*KafkaQueue)

// WithKafkaLogger sets a custom logger.
func WithKafkaLogger(l *slog.Logger) KafkaOption {
	return func(q *KafkaQueue) {
		q.log = l
	}
}

// NewKafkaQueue creates a queue over topic. The consumer side only runs
// once Run is called.
func NewKafkaQueue(
	brokers []string,
	topic, groupID string,
	exec *Executor,
	opts ...KafkaOption,
) (*KafkaQueue, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka task queue requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka task queue requires a topic")
	}
	if groupID == "" {
		return nil, fmt.Errorf("kafka task queue requires a group id")
	}

	q := &KafkaQueue{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  groupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
			MaxWait:  500 * time.Millisecond,
		}),
		exec: exec,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Enqueue writes t to the topic.
func (q *KafkaQueue) Enqueue(ctx context.Context, t Task) error {
	msg, err := toMessage(t)
	if err != nil {
		return err
	}
	if err := q.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing task %s: %w", t.Name, err)
	}
	return nil
}

// Run consumes tasks until ctx is cancelled. Offsets are committed after
// execution, so a crash mid-task re-delivers it.
func (q *KafkaQueue) Run(ctx context.Context) error {
	for {
		msg, err := q.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("fetching task: %w", err)
		}

		t, err := fromMessage(msg)
		if err != nil {
			q.log.Error("dropping undecodable task", "offset", msg.Offset, "error", err)
		} else if err := q.exec.Execute(ctx, t); err != nil {
			q.log.Debug("task finished with error", "task", t.Name, "error", err)
		}

		if err := q.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("committing task offset: %w", err)
		}
	}
}

// Close shuts down the writer and the reader.
func (q *KafkaQueue) Close() error {
	return errors.Join(q.writer.Close(), q.reader.Close())
}

func toMessage(t Task) (kafka.Message, error) {
	value, err := json.Marshal(t)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding task %s: %w", t.Name, err)
	}
	key := t.Key
	if key == "" {
		key = t.ID
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  t.EnqueuedAt,
		Headers: []kafka.Header{
			{Key: "task", Value: []byte(t.Name)},
		},
	}, nil
}

func fromMessage(msg kafka.Message) (Task, error) {
	var t Task
	if err := json.Unmarshal(msg.Value, &t); err != nil {
		return Task{}, fmt.Errorf("decoding task: %w", err)
	}
	if t.Name == "" {
		return Task{}, fmt.Errorf("decoding task: missing name")
	}
	return t, nil
}
