package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"leadhub.app/aggregator/common/id"
	"leadhub.app/aggregator/common/logger"
	"leadhub.app/aggregator/common/otel"
	"leadhub.app/aggregator/core/config"
	"leadhub.app/aggregator/core/db"
	"leadhub.app/aggregator/internal/integration"
	"leadhub.app/aggregator/internal/queue"
	"leadhub.app/aggregator/internal/store"
	"leadhub.app/aggregator/internal/worker"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "aggregator worker starting",
		"env", cfg.Env,
		"concurrency", cfg.Worker.Concurrency,
		"batch_size", cfg.Worker.BatchSize)

	// Different node ID than the server so snowflake IDs never collide
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	integrations, err := config.LoadIntegrations(cfg.Integrations.ConfigPath)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load integrations config", "error", err)
		os.Exit(1)
	}

	registry, err := integration.NewRegistry(integrations, integration.NewHTTPClient(cfg.Integrations.HTTPTimeout))
	if err != nil {
		slog.ErrorContext(ctx, "failed to build integration registry", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "integrations loaded", "crm_configs", len(integrations.CRMConfigs))

	// The wake channel is optional: without Redis the worker falls back to
	// polling at WORKER_POLL_INTERVAL.
	var notifier *queue.Notifier
	var wake <-chan struct{}
	if cfg.Queue.Enabled() {
		redisOpts, err := redis.ParseURL(cfg.Queue.RedisURL)
		if err != nil {
			slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
			os.Exit(1)
		}

		redisClient := redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		slog.InfoContext(ctx, "redis connected", "stream", cfg.Queue.RedisStream)

		notifier = queue.NewNotifier(redisClient, queue.NotifierConfig{
			Stream:   cfg.Queue.RedisStream,
			Group:    cfg.Queue.RedisGroup,
			Consumer: cfg.Queue.RedisConsumer,
			Block:    5 * time.Second,
		}, slog.Default())
		wake = notifier.Wake()
	} else {
		slog.InfoContext(ctx, "redis disabled, polling only")
	}

	stores := store.NewStores(database.Querier())

	runner := worker.NewTaskRunner(worker.TaskRunnerConfig{
		Leads:    stores.Leads(),
		Events:   stores.Events(),
		Tasks:    stores.Tasks(),
		TxRunner: &workerTxRunnerAdapter{db: database},
		Registry: registry,
	})

	w := worker.New(stores.Tasks(), runner, wake, worker.Config{
		Concurrency:  cfg.Worker.Concurrency,
		BatchSize:    cfg.Worker.BatchSize,
		PollInterval: cfg.Worker.PollInterval,
		Pacing:       cfg.Worker.Pacing,
		RetryBackoff: cfg.Worker.RetryBackoff,
	})

	reclaimer := worker.NewReclaimer(stores.Tasks(), worker.ReclaimerConfig{
		StaleAfter: cfg.Worker.StaleAfter,
		Interval:   cfg.Worker.ReclaimInterval,
	})

	errCh := make(chan error, 3)
	go func() {
		errCh <- w.Run(ctx)
	}()
	go func() {
		reclaimer.Run(ctx)
		errCh <- nil
	}()
	if notifier != nil {
		go func() {
			if err := notifier.Run(ctx); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "notifier stopped", "error", err)
			}
			errCh <- nil
		}()
	}

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	reclaimer.Stop()
	if notifier != nil {
		notifier.Stop()
	}
	w.Stop()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

// workerTxRunnerAdapter bridges db.DB to worker.TxRunner.
type workerTxRunnerAdapter struct {
	db *db.DB
}

func (a *workerTxRunnerAdapter) WithTx(ctx context.Context, fn func(stores worker.StoreProvider) error) error {
	return a.db.WithTx(ctx, func(q db.Querier) error {
		stores := store.NewStores(q)
		return fn(stores)
	})
}

const banner = `
██╗     ███████╗ █████╗ ██████╗ ██╗  ██╗██╗   ██╗██████╗ 
██║     ██╔════╝██╔══██╗██╔══██╗██║  ██║██║   ██║██╔══██╗
██║     █████╗  ███████║██║  ██║███████║██║   ██║██████╔╝
██║     ██╔══╝  ██╔══██║██║  ██║██╔══██║██║   ██║██╔══██╗
███████╗███████╗██║  ██║██████╔╝██║  ██║╚██████╔╝██████╔╝
╚══════╝╚══════╝╚═╝  ╚═╝╚═════╝ ╚═╝  ╚═╝ ╚═════╝ ╚═════╝  worker
`
