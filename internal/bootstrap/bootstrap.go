package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/document-sorter/internal/config"
	"github.com/kirillkom/document-sorter/internal/core/usecase"
	"github.com/kirillkom/document-sorter/internal/infrastructure/queue/nats"
	"github.com/kirillkom/document-sorter/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/document-sorter/internal/infrastructure/resilience"
	"github.com/kirillkom/document-sorter/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/document-sorter/internal/observability/metrics"
)

// App wires the pipeline with the run infrastructure used by cmd/api and
// cmd/worker.
type App struct {
	Config   config.Config
	Pipeline *Pipeline

	Queue     *nats.Queue
	Repo      *postgres.RunRepository
	Storage   *localfs.Storage
	SubmitUC  *usecase.SubmitRunUseCase
	ProcessUC *usecase.ProcessRunUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, pipelineMetrics *metrics.PipelineMetrics) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	repo := postgres.NewRunRepository(db)

	pipeline, err := NewPipeline(cfg, PipelineDeps{Logger: logger, Metrics: pipelineMetrics, DB: db})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init pipeline: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queueExecutor := resilience.NewExecutor(cfg.Resilience(), logger)
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.RunsSubject, nats.Options{
		ResilienceExecutor: queueExecutor,
		HandlerTimeout:     cfg.RunTimeout,
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	submitUC := usecase.NewSubmitRunUseCase(repo, storage, queue)
	processUC := usecase.NewProcessRunUseCase(repo, storage, pipeline.Organizer, pipeline.Packager)

	return &App{
		Config:   cfg,
		Pipeline: pipeline,

		Queue:     queue,
		Repo:      repo,
		Storage:   storage,
		SubmitUC:  submitUC,
		ProcessUC: processUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
