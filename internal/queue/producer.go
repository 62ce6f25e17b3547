package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// TaskMessage is the wake-up notification published after a task row is
// committed. It carries identifiers for logging and trace propagation only;
// workers always read task state from Postgres.
type TaskMessage struct {
	TaskID   string
	TaskType string
	TraceID  *string
}

type Producer interface {
	Notify(ctx context.Context, msg TaskMessage) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Notify(ctx context.Context, msg TaskMessage) error {
	fields := map[string]any{
		"task_id":   msg.TaskID,
		"task_type": msg.TaskType,
	}

	if msg.TraceID != nil && *msg.TraceID != "" {
		fields["trace_id"] = *msg.TraceID
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("notify task: %w", err)
	}

	p.logger.DebugContext(ctx, "published task notification", "task_id", msg.TaskID, "task_type", msg.TaskType)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}

// nopProducer backs deployments without Redis: enqueued tasks are picked up
// by the worker poll interval instead of a wake-up.
type nopProducer struct{}

func NewNopProducer() Producer {
	return nopProducer{}
}

func (nopProducer) Notify(context.Context, TaskMessage) error { return nil }

func (nopProducer) Close() error { return nil }
