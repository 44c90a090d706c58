package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/vantage-wms/vantage/internal/app"
	jobmetrics "github.com/vantage-wms/vantage/internal/jobs"
	"github.com/vantage-wms/vantage/internal/outbox"
	"github.com/vantage-wms/vantage/internal/platform/cache"
	"github.com/vantage-wms/vantage/internal/platform/db"
	"github.com/vantage-wms/vantage/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping relay startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init asynq client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()

	store := outbox.NewStore(pool)
	lease := outbox.NewLease(redisClient, cfg.RelayLockTTL)
	metrics := jobmetrics.NewMetrics(nil)
	relay := outbox.NewRelay(store, jobs.NewPublisher(client), lease, logger, metrics, outbox.RelayConfig{
		Interval: cfg.RelayInterval,
		Jitter:   cfg.RelayJitter,
		Batch:    cfg.RelayBatch,
	})

	router := app.NewRouter(app.RouterParams{
		Logger: logger,
		Config: cfg,
		Pool:   pool,
		Outbox: store,
	})
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	router.Route("/jobs", jobs.NewHandler(inspector, logger).MountRoutes)
	server := &http.Server{
		Addr:         cfg.OpsAddr,
		Handler:      router,
		ReadTimeout:  cfg.OpsReadTimeout,
		WriteTimeout: cfg.OpsWriteTimeout,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("relay starting",
			slog.Duration("interval", cfg.RelayInterval),
			slog.Int("batch", cfg.RelayBatch))
		return relay.Run(ctx)
	})
	group.Go(func() error {
		logger.Info("ops server listening", slog.String("addr", cfg.OpsAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.OpsWriteTimeout)
		defer cancel()
		_ = lease.Release(shutdownCtx)
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("relay stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("relay shut down")
}
