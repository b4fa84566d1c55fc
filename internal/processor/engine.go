package processor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"fincrime_engine/internal/domain"
	"fincrime_engine/internal/repository"
	"fincrime_engine/internal/traces"
	"fincrime_engine/pkg/metrics"
)

// Options tune an Engine. The zero value is usable.
type Options struct {
	TTL TTLPolicy
	// SingleFlight collapses concurrent cache misses on one key.
	SingleFlight bool
	// PatternMinAmount is the minimum transfer amount of cycles counted by
	// the risk scorer.
	PatternMinAmount float64
	Now              func() time.Time
}

// Engine is the query surface of the detection core. Every analytical
// query goes through the query cache.
type Engine struct {
	graph      repository.GraphStore
	cache      *QueryCache
	cycles     *CycleFinder
	aggregator *MetricsAggregator
	scorer     *RiskScorer
	blacklist  *BlacklistRegistry
	transfers  *TransferProcessor
	metrics    *metrics.MetricsCollector
	logger     *slog.Logger
}

func NewEngine(
	graph repository.GraphStore,
	cache repository.CacheStore,
	collector *metrics.MetricsCollector,
	opts Options,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TTL == (TTLPolicy{}) {
		opts.TTL = DefaultTTLPolicy()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	cycles := NewCycleFinder(graph, logger)
	return &Engine{
		graph:      graph,
		cache:      NewQueryCache(cache, opts.TTL, opts.SingleFlight, collector, logger),
		cycles:     cycles,
		aggregator: NewMetricsAggregator(graph, opts.Now, logger),
		scorer:     NewRiskScorer(graph, cycles, opts.PatternMinAmount, opts.Now, logger),
		blacklist:  NewBlacklistRegistry(cache, opts.Now, logger),
		transfers:  NewTransferProcessor(graph, cache, collector, opts.Now, logger),
		metrics:    collector,
		logger:     logger,
	}
}

// Transfers exposes transfer ingestion and search.
func (e *Engine) Transfers() *TransferProcessor {
	return e.transfers
}

func observe[T any](ctx context.Context, e *Engine, op string, attrs []attribute.KeyValue, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := traces.StartSpan(ctx, "engine."+op, attrs...)
	start := time.Now()

	v, err := fn(ctx)

	traces.EndSpan(span, err)
	if e.metrics != nil {
		e.metrics.ObserveQuery(op, time.Since(start), err)
	}
	if err != nil {
		e.logger.DebugContext(ctx, "Query failed",
			slog.String("operation", op),
			slog.Any("error", err))
	}
	return v, err
}

// CircularPatterns returns cached or freshly computed cycles. Invalid
// parameters are rejected before the cache is consulted.
func (e *Engine) CircularPatterns(ctx context.Context, minAmount float64, maxDepth, limit int) ([]domain.Pattern, error) {
	attrs := []attribute.KeyValue{traces.MinAmount(minAmount), traces.MaxDepth(maxDepth)}
	return observe(ctx, e, "circular_patterns", attrs, func(ctx context.Context) ([]domain.Pattern, error) {
		if err := validatePatternQuery(minAmount, maxDepth); err != nil {
			return nil, err
		}
		if limit == 0 {
			limit = MaxPatternLimit
		}

		key := Key(OpPatterns,
			Param{"min_amount", minAmount},
			Param{"max_depth", maxDepth},
			Param{"limit", limit})
		return Remember(ctx, e.cache, OpPatterns, key, func(ctx context.Context) ([]domain.Pattern, error) {
			return e.cycles.FindCircularPatterns(ctx, minAmount, maxDepth, limit)
		})
	})
}

func (e *Engine) WindowMetrics(ctx context.Context, timeframeHours int) (*domain.WindowMetrics, error) {
	attrs := []attribute.KeyValue{traces.TimeframeHours(timeframeHours)}
	return observe(ctx, e, "window_metrics", attrs, func(ctx context.Context) (*domain.WindowMetrics, error) {
		key := Key(OpMetrics, Param{"timeframe_hours", timeframeHours})
		return Remember(ctx, e.cache, OpMetrics, key, func(ctx context.Context) (*domain.WindowMetrics, error) {
			return e.aggregator.WindowMetrics(ctx, timeframeHours)
		})
	})
}

// LiveWindowMetrics aggregates the window straight from the graph store,
// bypassing the query cache.
func (e *Engine) LiveWindowMetrics(ctx context.Context, timeframeHours int) (*domain.WindowMetrics, error) {
	attrs := []attribute.KeyValue{traces.TimeframeHours(timeframeHours)}
	return observe(ctx, e, "window_metrics_live", attrs, func(ctx context.Context) (*domain.WindowMetrics, error) {
		return e.aggregator.WindowMetrics(ctx, timeframeHours)
	})
}

// RiskScore returns the cached assessment of entityID or scores it. The
// cached assessments feed RiskMetrics. An entity with no transfers scores 0
// and is not cached, so it never counts in the rollup.
func (e *Engine) RiskScore(ctx context.Context, entityID string) (*domain.RiskAssessment, error) {
	attrs := []attribute.KeyValue{traces.EntityID(entityID)}
	return observe(ctx, e, "risk_score", attrs, func(ctx context.Context) (*domain.RiskAssessment, error) {
		fresh := false
		a, err := Remember(ctx, e.cache, OpRiskScore, RiskScoreKey(entityID), func(ctx context.Context) (*domain.RiskAssessment, error) {
			fresh = true
			return e.scorer.Score(ctx, entityID)
		})
		if errors.Is(err, ErrNoHistory) {
			e.logger.DebugContext(ctx, "Scoring unknown entity", slog.String("entity_id", entityID))
			return e.scorer.Unscored(entityID), nil
		}
		if err == nil && fresh && e.metrics != nil {
			e.metrics.ObserveRiskScore(a.Score)
		}
		return a, err
	})
}

// RiskMetrics summarises every cached risk score. It returns ErrNoData
// when nothing has been scored.
func (e *Engine) RiskMetrics(ctx context.Context) (*domain.RiskRollup, error) {
	return observe(ctx, e, "risk_metrics", nil, func(ctx context.Context) (*domain.RiskRollup, error) {
		return RiskRollup(ctx, e.cache.Store(), e.logger)
	})
}

func (e *Engine) Network(ctx context.Context, minAmount float64) (*domain.Network, error) {
	attrs := []attribute.KeyValue{traces.MinAmount(minAmount)}
	return observe(ctx, e, "network", attrs, func(ctx context.Context) (*domain.Network, error) {
		return e.transfers.BuildNetwork(ctx, minAmount)
	})
}

func (e *Engine) AddToBlacklist(ctx context.Context, entityID, reason string, riskScore float64) (*domain.BlacklistEntry, error) {
	attrs := []attribute.KeyValue{traces.EntityID(entityID)}
	return observe(ctx, e, "blacklist_add", attrs, func(ctx context.Context) (*domain.BlacklistEntry, error) {
		entry, err := e.blacklist.Add(ctx, entityID, reason, riskScore)
		if err != nil {
			return nil, err
		}
		e.refreshBlacklistGauge(ctx)
		return entry, nil
	})
}

func (e *Engine) IsBlacklisted(ctx context.Context, entityID string) (bool, error) {
	attrs := []attribute.KeyValue{traces.EntityID(entityID)}
	return observe(ctx, e, "blacklist_check", attrs, func(ctx context.Context) (bool, error) {
		return e.blacklist.IsBlacklisted(ctx, entityID)
	})
}

func (e *Engine) Blacklist(ctx context.Context) ([]string, error) {
	return observe(ctx, e, "blacklist_list", nil, e.blacklist.List)
}

func (e *Engine) BlacklistEntry(ctx context.Context, entityID string) (*domain.BlacklistEntry, error) {
	attrs := []attribute.KeyValue{traces.EntityID(entityID)}
	return observe(ctx, e, "blacklist_get", attrs, func(ctx context.Context) (*domain.BlacklistEntry, error) {
		return e.blacklist.Get(ctx, entityID)
	})
}

func (e *Engine) refreshBlacklistGauge(ctx context.Context) {
	if e.metrics == nil {
		return
	}
	members, err := e.blacklist.List(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to refresh blacklist gauge", slog.Any("error", err))
		return
	}
	e.metrics.SetBlacklistSize(len(members))
}

// Ping checks both backing stores.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.graph.Ping(ctx); err != nil {
		return err
	}
	return e.cache.Store().Ping(ctx)
}

// SearchTransfers returns matching transfers, newest first.
func (e *Engine) SearchTransfers(ctx context.Context, filter domain.TransferFilter) ([]*domain.Transfer, error) {
	return observe(ctx, e, "search_transfers", nil, func(ctx context.Context) ([]*domain.Transfer, error) {
		return e.transfers.SearchTransfers(ctx, filter)
	})
}
