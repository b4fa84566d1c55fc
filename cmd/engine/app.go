package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"fincrime_engine/internal/config"
	"fincrime_engine/internal/health"
	"fincrime_engine/internal/logging"
	"fincrime_engine/internal/processor"
	"fincrime_engine/internal/repository"
	"fincrime_engine/internal/repository/memory"
	"fincrime_engine/internal/repository/neo4j"
	"fincrime_engine/internal/repository/postgres"
	"fincrime_engine/internal/repository/redis"
	"fincrime_engine/pkg/metrics"
)

// app holds the wired components shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	graph   repository.GraphStore
	cache   repository.CacheStore
	metrics *metrics.MetricsCollector
	engine  *processor.Engine
}

func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat).With(slog.String("app", appName))
	slog.SetDefault(logger)

	graph, err := openGraphStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	cache, err := openCacheStore(ctx, cfg, logger)
	if err != nil {
		_ = graph.Close()
		return nil, err
	}

	collector := metrics.NewMetricsCollector(logger)
	engine := processor.NewEngine(graph, cache, collector, processor.Options{
		TTL: processor.TTLPolicy{
			Patterns:  cfg.PatternTTL,
			Metrics:   cfg.MetricsTTL,
			RiskScore: cfg.RiskScoreTTL,
		},
		SingleFlight:     cfg.CacheSingleFlight,
		PatternMinAmount: cfg.PatternMinAmount,
	}, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		graph:   graph,
		cache:   cache,
		metrics: collector,
		engine:  engine,
	}, nil
}

func openGraphStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.GraphStore, error) {
	switch cfg.GraphBackend {
	case config.BackendPostgres:
		store, err := postgres.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	case config.BackendNeo4j:
		store, err := neo4j.Open(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase, logger)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	default:
		logger.Warn("Using in-memory graph store; data is lost on exit")
		return memory.NewGraphStore(), nil
	}
}

func openCacheStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.CacheStore, error) {
	if cfg.CacheBackend == config.BackendRedis {
		store, err := redis.Open(ctx, cfg.RedisURL, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return memory.NewCacheStore(), nil
}

func (a *app) healthRegistry() *health.Registry {
	r := health.NewRegistry()
	r.RegisterPing("graph_store", a.graph.Ping)
	r.RegisterPing("cache_store", a.cache.Ping)
	return r
}

func (a *app) Close() error {
	return errors.Join(a.cache.Close(), a.graph.Close())
}
