package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type NotifierConfig struct {
	Stream   string
	Group    string
	Consumer string
	Block    time.Duration
}

// Notifier consumes task notifications and collapses them into a wake
// channel for worker loops. Messages are acked immediately on read: losing
// one only costs poll-interval latency, never a task, because the queue of
// record is Postgres.
type Notifier struct {
	client    *redis.Client
	cfg       NotifierConfig
	logger    *slog.Logger
	wake      chan struct{}
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewNotifier(client *redis.Client, cfg NotifierConfig, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	return &Notifier{
		client:    client,
		cfg:       cfg,
		logger:    logger,
		wake:      make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Wake signals whenever at least one task notification arrived.
// The channel is buffered and coalescing: one signal may stand for many
// notifications, so receivers should claim in batches until empty.
func (n *Notifier) Wake() <-chan struct{} {
	return n.wake
}

func (n *Notifier) Run(ctx context.Context) error {
	defer close(n.stoppedCh)

	if err := n.ensureGroup(ctx); err != nil {
		return err
	}

	n.logger.InfoContext(ctx, "notifier started", "stream", n.cfg.Stream, "group", n.cfg.Group, "consumer", n.cfg.Consumer)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-n.stopCh:
			return nil
		default:
		}

		streams, err := n.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    n.cfg.Group,
			Consumer: n.cfg.Consumer,
			Streams:  []string{n.cfg.Stream, ">"},
			Count:    64,
			Block:    n.cfg.Block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			n.logger.WarnContext(ctx, "reading task notifications failed", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				if err := n.client.XAck(ctx, n.cfg.Stream, n.cfg.Group, msg.ID).Err(); err != nil {
					n.logger.WarnContext(ctx, "acking notification failed", "message_id", msg.ID, "error", err)
				}
				if taskID, ok := msg.Values["task_id"].(string); ok {
					n.logger.DebugContext(ctx, "task notification received", "task_id", taskID)
				}
			}
		}

		// Coalesce: a single pending signal is enough to drain the queue.
		select {
		case n.wake <- struct{}{}:
		default:
		}
	}
}

// Stop signals the run loop to exit and waits for it to finish.
func (n *Notifier) Stop() {
	close(n.stopCh)
	<-n.stoppedCh
}

func (n *Notifier) ensureGroup(ctx context.Context) error {
	err := n.client.XGroupCreateMkStream(ctx, n.cfg.Stream, n.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP Consumer Group name already exists") {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}
