package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"leadhub.app/aggregator/common/logger"
	"leadhub.app/aggregator/internal/model"
	"leadhub.app/aggregator/internal/store"
)

// errorBackoff is the pause after a claim failure, e.g. when the database is
// briefly unreachable.
const errorBackoff = 5 * time.Second

type Config struct {
	Concurrency  int
	BatchSize    int32
	PollInterval time.Duration
	Pacing       time.Duration
	RetryBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.BatchSize < 1 {
		c.BatchSize = 5
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.Pacing < 0 {
		c.Pacing = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = time.Second
	}
	return c
}

// Worker claims ready tasks from the Postgres queue and hands them to the
// processor. The wake channel (optional) short-circuits the poll interval
// when the producer signals fresh work.
type Worker struct {
	tasks     store.TaskStore
	processor TaskProcessor
	wake      <-chan struct{}
	cfg       Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(tasks store.TaskStore, processor TaskProcessor, wake <-chan struct{}, cfg Config) *Worker {
	return &Worker{
		tasks:     tasks,
		processor: processor,
		wake:      wake,
		cfg:       cfg.withDefaults(),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "aggregator.worker"})

	slog.InfoContext(ctx, "worker started",
		"concurrency", w.cfg.Concurrency,
		"batch_size", w.cfg.BatchSize,
		"poll_interval", w.cfg.PollInterval)

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(loop int) {
			defer wg.Done()
			w.runLoop(ctx, loop)
		}(i)
	}
	wg.Wait()

	slog.InfoContext(ctx, "worker stopped")
	return nil
}

// Stop signals all loops to finish their current task and waits for them.
func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) runLoop(ctx context.Context, loop int) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		processed, err := w.processOneBatch(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "batch processing error", "loop", loop, "error", err)
			w.wait(ctx, errorBackoff)
			continue
		}

		if processed == 0 {
			w.idle(ctx)
		}
	}
}

func (w *Worker) processOneBatch(ctx context.Context) (int, error) {
	tasks, err := w.tasks.ClaimReady(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("claiming tasks: %w", err)
	}

	for i := range tasks {
		if i > 0 {
			w.wait(ctx, w.cfg.Pacing)
		}
		w.processTask(ctx, &tasks[i])
	}

	return len(tasks), nil
}

func (w *Worker) processTask(ctx context.Context, task *model.Task) {
	traceID := ""
	if task.TraceID != nil {
		traceID = *task.TraceID
	}
	sc := logger.StartSpanFromTraceID(ctx, traceID, "worker.process_task",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer sc.End()

	taskType := string(task.TaskType)
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{
		TaskID:   &task.TaskID,
		TaskType: &taskType,
	})

	slog.InfoContext(ctx, "processing task", "attempt", task.Attempts, "max_attempts", task.MaxAttempts)

	start := time.Now()
	result, err := w.dispatchSafe(ctx, task)
	if err != nil {
		sc.RecordError(err)
	}

	w.finalize(ctx, task, result, err)

	slog.DebugContext(ctx, "task finished", "duration_ms", time.Since(start).Milliseconds())
}

func (w *Worker) dispatchSafe(ctx context.Context, task *model.Task) (result []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in task handler", "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.processor.Dispatch(ctx, task)
}

// finalize applies the queue bookkeeping for one executed task. Transition
// calls can race the stale reclaimer, in which case the row is no longer in
// processing and the store reports ErrNotFound; that is logged, not retried.
func (w *Worker) finalize(ctx context.Context, task *model.Task, result []byte, taskErr error) {
	switch classify(taskErr) {
	case dispositionSuccess:
		if _, err := w.tasks.Complete(ctx, task.TaskID, result); err != nil {
			w.logTransitionError(ctx, "complete", err)
			return
		}
		slog.InfoContext(ctx, "task completed")

	case dispositionFail:
		w.fail(ctx, task, taskErr)

	case dispositionRetry:
		if task.Attempts >= task.MaxAttempts {
			w.fail(ctx, task, taskErr)
			return
		}

		delay := backoffDelay(w.cfg.RetryBackoff, task.Attempts)
		nextAt := time.Now().UTC().Add(delay)
		if _, err := w.tasks.Requeue(ctx, task.TaskID, nextAt, taskErr.Error()); err != nil {
			w.logTransitionError(ctx, "requeue", err)
			return
		}
		slog.WarnContext(ctx, "task scheduled for retry",
			"error", taskErr,
			"attempt", task.Attempts,
			"max_attempts", task.MaxAttempts,
			"delay", delay)
	}
}

func (w *Worker) fail(ctx context.Context, task *model.Task, taskErr error) {
	if _, err := w.tasks.Fail(ctx, task.TaskID, taskErr.Error()); err != nil {
		w.logTransitionError(ctx, "fail", err)
		return
	}
	slog.ErrorContext(ctx, "task failed",
		"error", taskErr,
		"attempt", task.Attempts,
		"max_attempts", task.MaxAttempts)
}

func (w *Worker) logTransitionError(ctx context.Context, transition string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		slog.WarnContext(ctx, "task no longer in processing, skipping transition", "transition", transition)
		return
	}
	slog.ErrorContext(ctx, "task transition failed", "transition", transition, "error", err)
}

// idle blocks until new work is likely: a wake-up notification, the poll
// interval elapsing, or shutdown. A nil wake channel simply never fires.
func (w *Worker) idle(ctx context.Context) {
	timer := time.NewTimer(w.cfg.PollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-w.stopCh:
	case <-w.wake:
	case <-timer.C:
	}
}

func (w *Worker) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-w.stopCh:
	case <-timer.C:
	}
}
