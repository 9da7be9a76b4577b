package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/fire-data-etl/internal/adapter/cache"
	httpadapter "github.com/couchcryptid/fire-data-etl/internal/adapter/http"
	"github.com/couchcryptid/fire-data-etl/internal/adapter/inpe"
	kafkaadapter "github.com/couchcryptid/fire-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/fire-data-etl/internal/adapter/memory"
	"github.com/couchcryptid/fire-data-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/fire-data-etl/internal/config"
	"github.com/couchcryptid/fire-data-etl/internal/mapquery"
	"github.com/couchcryptid/fire-data-etl/internal/observability"
	"github.com/couchcryptid/fire-data-etl/internal/pipeline"
	"github.com/couchcryptid/fire-data-etl/internal/scheduler"
	"github.com/couchcryptid/fire-data-etl/internal/stats"
)

type store interface {
	pipeline.Store
	mapquery.Reader
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var st store
	switch cfg.StoreDriver {
	case config.StoreMemory:
		st = memory.New()
		logger.Info("using in-memory store")
	default:
		db, err := sqlite.Open(ctx, cfg.StorePath, logger)
		if err != nil {
			logger.Error("failed to open store", "path", cfg.StorePath, "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("store close error", "error", err)
			}
		}()
		st = db
		logger.Info("using sqlite store", "path", cfg.StorePath)
	}

	source := inpe.NewClient(cfg.SourceBaseURL, cfg.SourceTimeout, metrics, logger)
	opts := []pipeline.Option{
		pipeline.WithCache(cache.New(cfg.CacheSize, metrics)),
		pipeline.WithMaxConcurrency(cfg.SourceMaxConcurrency),
		pipeline.WithCommitBatchSize(cfg.CommitBatchSize),
	}

	var writer *kafkaadapter.Writer
	if cfg.PublishEnabled() {
		writer = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		opts = append(opts, pipeline.WithPublisher(writer))
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	orchestrator := pipeline.New(source, st, logger, metrics, opts...)
	services := httpadapter.Services{
		Focuses: orchestrator,
		Map:     mapquery.NewService(st, metrics, logger),
		Stats:   stats.NewService(orchestrator, clock, logger),
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, services, orchestrator, logger)

	var sched *scheduler.Scheduler
	if cfg.RefreshSchedule != "" {
		sched = scheduler.New(orchestrator, clock, cfg.RefreshDays, cfg.SourceTimeout*2, logger)
		if err := sched.Start(cfg.RefreshSchedule); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
