package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"leadhub.app/aggregator/common/id"
	"leadhub.app/aggregator/common/logger"
	"leadhub.app/aggregator/common/otel"
	"leadhub.app/aggregator/core/config"
	"leadhub.app/aggregator/core/db"
	"leadhub.app/aggregator/internal/http/middleware"
	httprouter "leadhub.app/aggregator/internal/http/router"
	"leadhub.app/aggregator/internal/integration"
	"leadhub.app/aggregator/internal/queue"
	"leadhub.app/aggregator/internal/service"
	"leadhub.app/aggregator/internal/store"
	"leadhub.app/aggregator/internal/worker"
)

// Combined single-process mode: the HTTP API and the background worker share
// one process, one DB pool, and one integration registry. Smaller deployments
// run this instead of separate cmd/server and cmd/worker binaries.
func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeAggregator)
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

	slog.InfoContext(ctx, "aggregator starting (combined mode)", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(3); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
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

	taskProducer := queue.NewNopProducer()
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
		slog.InfoContext(ctx, "redis connected", "stream", cfg.Queue.RedisStream)

		taskProducer = queue.NewRedisProducer(redisClient, cfg.Queue.RedisStream, slog.Default())
		notifier = queue.NewNotifier(redisClient, queue.NotifierConfig{
			Stream:   cfg.Queue.RedisStream,
			Group:    cfg.Queue.RedisGroup,
			Consumer: cfg.Queue.RedisConsumer,
			Block:    5 * time.Second,
		}, slog.Default())
		wake = notifier.Wake()
	} else {
		slog.InfoContext(ctx, "redis disabled, worker relies on the poll interval")
	}

	stores := store.NewStores(database.Querier())
	txRunner := service.NewTxRunner(database)

	services := service.NewServices(
		stores,
		txRunner,
		registry,
		taskProducer,
		cfg.Worker.MaxAttempts,
		slog.Default(),
	)

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

	go func() {
		if err := w.Run(ctx); err != nil {
			slog.ErrorContext(ctx, "worker stopped", "error", err)
		}
	}()
	go reclaimer.Run(ctx)
	if notifier != nil {
		go func() {
			if err := notifier.Run(ctx); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "notifier stopped", "error", err)
			}
		}()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, database, httprouter.RouterConfig{
		TraceHeaderName: cfg.Queue.TraceHeaderName,
		IsProduction:    cfg.IsProduction(),
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	reclaimer.Stop()
	if notifier != nil {
		notifier.Stop()
	}
	w.Stop()

	if err := taskProducer.Close(); err != nil {
		slog.ErrorContext(shutdownCtx, "producer close error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
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
╚══════╝╚══════╝╚═╝  ╚═╝╚═════╝ ╚═╝  ╚═╝ ╚═════╝ ╚═════╝ 
`
