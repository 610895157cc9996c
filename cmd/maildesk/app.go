package main

import (
	"context"
	"fmt"
	"os"

	"github.com/maildeskhq/maildesk/internal/agent"
	"github.com/maildeskhq/maildesk/internal/agent/providers"
	"github.com/maildeskhq/maildesk/internal/config"
	"github.com/maildeskhq/maildesk/internal/crm"
	"github.com/maildeskhq/maildesk/internal/events"
	"github.com/maildeskhq/maildesk/internal/locks"
	"github.com/maildeskhq/maildesk/internal/observability"
	"github.com/maildeskhq/maildesk/internal/pipeline"
	"github.com/maildeskhq/maildesk/internal/prompts"
	"github.com/maildeskhq/maildesk/internal/store"
	"github.com/maildeskhq/maildesk/internal/tools"
	"github.com/maildeskhq/maildesk/internal/usage"
)

// app bundles the assembled components shared by serve and run.
type app struct {
	cfg     *config.Config
	logger  *observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer

	store     store.Store
	directory crm.Directory
	bus       *events.Bus
	usage     *usage.Tracker
	prompts   *prompts.Manager
	locks     *locks.Manager
	pipeline  *pipeline.Orchestrator

	tracerShutdown func(context.Context) error
}

// loadConfig reads the config file, falling back to built-in defaults when
// no path is given and ./maildesk.yaml does not exist.
func loadConfig(path string) (*config.Config, error) {
	path = configPath(path)
	if path == "" {
		if _, err := os.Stat("maildesk.yaml"); err == nil {
			path = "maildesk.yaml"
		} else {
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

// buildApp assembles the full processing stack from configuration.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	metrics := observability.NewMetrics()
	tracer, tracerShutdown := observability.NewTracer(observability.TraceConfig{
		ServiceName:    "maildesk",
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		EnableInsecure: cfg.Tracing.Insecure,
	})

	itemStore, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}
	directory, err := buildDirectory(cfg)
	if err != nil {
		itemStore.Close()
		return nil, err
	}

	if cfg.Seed.Path != "" {
		if err := loadSeed(ctx, cfg.Seed.Path, itemStore, directory, logger); err != nil {
			itemStore.Close()
			directory.Close()
			return nil, fmt.Errorf("load seed data: %w", err)
		}
	}

	promptMgr, err := prompts.NewManager(cfg.Prompts.Path, logger)
	if err != nil {
		itemStore.Close()
		directory.Close()
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	if cfg.Prompts.Watch && cfg.Prompts.Path != "" {
		if err := promptMgr.Watch(ctx); err != nil {
			logger.Warn(ctx, "prompt hot reload unavailable", "error", err)
		}
	}

	provider, err := providers.New(ctx, cfg.Provider)
	if err != nil {
		itemStore.Close()
		directory.Close()
		return nil, fmt.Errorf("build provider: %w", err)
	}

	tracker := usage.NewTracker(usage.TrackerConfig{MaxCount: cfg.Usage.Limit})
	bus := events.NewBus(logger, metrics)

	inboxAgent := agent.New(agent.Config{
		Provider:      provider,
		Registry:      agent.NewRegistry(tools.All(directory)...),
		System:        promptMgr.System,
		Model:         cfg.Provider.Model,
		MaxTokens:     cfg.Provider.MaxTokens,
		MaxIterations: cfg.Pipeline.MaxIterations,
		CallTimeout:   cfg.Provider.Timeout,
		Logger:        logger,
		Metrics:       metrics,
		Tracer:        tracer,
		Usage:         tracker,
	})

	orchestrator := pipeline.New(pipeline.Config{
		Store:      itemStore,
		Runner:     inboxAgent,
		Bus:        bus,
		BatchLimit: cfg.Pipeline.BatchLimit,
		Logger:     logger,
		Metrics:    metrics,
		Tracer:     tracer,
	})

	return &app{
		cfg:            cfg,
		logger:         logger,
		metrics:        metrics,
		tracer:         tracer,
		store:          itemStore,
		directory:      directory,
		bus:            bus,
		usage:          tracker,
		prompts:        promptMgr,
		locks:          locks.NewManager(cfg.Locks.TTL, metrics),
		pipeline:       orchestrator,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Close releases everything buildApp opened.
func (a *app) Close(ctx context.Context) {
	if a.prompts != nil {
		if err := a.prompts.Close(); err != nil {
			a.logger.Warn(ctx, "closing prompt manager", "error", err)
		}
	}
	if a.directory != nil {
		if err := a.directory.Close(); err != nil {
			a.logger.Warn(ctx, "closing crm directory", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn(ctx, "closing item store", "error", err)
		}
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn(ctx, "shutting down tracer", "error", err)
		}
	}
}

func buildStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Database.Driver {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "postgres":
		pgCfg := store.DefaultPostgresConfig(cfg.Database.URL)
		if cfg.Database.MaxConnections > 0 {
			pgCfg.MaxOpenConns = cfg.Database.MaxConnections
		}
		if cfg.Database.ConnMaxLifetime > 0 {
			pgCfg.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
		}
		return store.NewPostgresStore(pgCfg)
	case "sqlite":
		return store.NewSQLiteStore(cfg.Database.Path)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func buildDirectory(cfg *config.Config) (crm.Directory, error) {
	switch cfg.CRM.Driver {
	case "", "memory":
		return crm.NewMemoryDirectory(), nil
	case "postgres":
		return crm.NewPostgresDirectory(cfg.CRM.URL)
	default:
		return nil, fmt.Errorf("unknown crm driver %q", cfg.CRM.Driver)
	}
}
