package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"leadhub.app/aggregator/common/logger"
	"leadhub.app/aggregator/internal/store"
)

type ReclaimerConfig struct {
	StaleAfter time.Duration
	Interval   time.Duration
}

// Reclaimer periodically returns stuck processing tasks to the queue.
// This handles the crash recovery scenario where a worker dies after
// claiming a task but before recording its outcome.
type Reclaimer struct {
	tasks store.TaskStore
	cfg   ReclaimerConfig

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewReclaimer(tasks store.TaskStore, cfg ReclaimerConfig) *Reclaimer {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Reclaimer{
		tasks:     tasks,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run starts the reclaimer loop. Blocks until Stop() is called.
func (r *Reclaimer) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "aggregator.worker.reclaimer",
	})

	defer close(r.stoppedCh)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "reclaimer started",
		"interval", r.cfg.Interval,
		"stale_after", r.cfg.StaleAfter)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			slog.InfoContext(ctx, "reclaimer stopping")
			return
		case <-ticker.C:
			if err := r.reclaimOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "reclaim cycle error", "error", err)
			}
		}
	}
}

// Stop signals the reclaimer to stop gracefully.
func (r *Reclaimer) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

func (r *Reclaimer) reclaimOnce(ctx context.Context) error {
	requeued, failed, err := r.tasks.ReclaimStale(ctx, r.cfg.StaleAfter)
	if err != nil {
		return fmt.Errorf("reclaiming stale tasks: %w", err)
	}

	if requeued > 0 || failed > 0 {
		slog.InfoContext(ctx, "reclaimed stale tasks",
			"requeued", requeued,
			"failed", failed)
	}

	return nil
}
