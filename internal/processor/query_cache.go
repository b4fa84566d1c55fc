package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"fincrime_engine/internal/repository"
	"fincrime_engine/pkg/metrics"
)

type Operation string

const (
	OpPatterns  Operation = "patterns"
	OpMetrics   Operation = "metrics"
	OpRiskScore Operation = "risk_score"
)

// RiskScorePrefix is the key prefix of every cached risk assessment.
const RiskScorePrefix = string(OpRiskScore) + ":"

// TTLPolicy holds the lifetime of each cached result family.
type TTLPolicy struct {
	Patterns  time.Duration
	Metrics   time.Duration
	RiskScore time.Duration
}

func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		Patterns:  3600 * time.Second,
		Metrics:   300 * time.Second,
		RiskScore: 3600 * time.Second,
	}
}

func (p TTLPolicy) For(op Operation) time.Duration {
	switch op {
	case OpPatterns:
		return p.Patterns
	case OpMetrics:
		return p.Metrics
	case OpRiskScore:
		return p.RiskScore
	default:
		return 0
	}
}

type Param struct {
	Name  string
	Value any
}

// Key derives the cache key of op for params: "op:name=value:..." with
// parameters sorted by name and numbers in shortest canonical form, so that
// 10000, 10000.0 and 1e4 share a key.
func Key(op Operation, params ...Param) string {
	sorted := slices.Clone(params)
	slices.SortFunc(sorted, func(a, b Param) int { return strings.Compare(a.Name, b.Name) })

	var b strings.Builder
	b.WriteString(string(op))
	for _, p := range sorted {
		b.WriteByte(':')
		b.WriteString(p.Name)
		b.WriteByte('=')
		b.WriteString(normalize(p.Value))
	}
	return b.String()
}

func normalize(v any) string {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x).String()
	case float32:
		return decimal.NewFromFloat32(x).String()
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// RiskScoreKey is the key of one entity's cached assessment.
func RiskScoreKey(entityID string) string {
	return RiskScorePrefix + entityID
}

// QueryCache is a read-through cache of expensive analytical results.
type QueryCache struct {
	store   repository.CacheStore
	ttl     TTLPolicy
	group   *singleflight.Group
	metrics *metrics.MetricsCollector
	logger  *slog.Logger
}

// NewQueryCache builds a cache over store. With singleFlight set, concurrent
// misses on one key share a single computation.
func NewQueryCache(store repository.CacheStore, ttl TTLPolicy, singleFlight bool, collector *metrics.MetricsCollector, logger *slog.Logger) *QueryCache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &QueryCache{store: store, ttl: ttl, metrics: collector, logger: logger}
	if singleFlight {
		c.group = &singleflight.Group{}
	}
	return c
}

func (c *QueryCache) Store() repository.CacheStore {
	return c.store
}

func (c *QueryCache) recordLookup(op Operation, hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(string(op), hit)
	}
}

// Remember returns the cached value of key or computes, stores and returns
// it. A computation error is returned as is and nothing is cached. Cache
// store failures are surfaced, not bypassed.
func Remember[T any](ctx context.Context, c *QueryCache, op Operation, key string, compute func(context.Context) (T, error)) (T, error) {
	var zero T

	raw, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return zero, fmt.Errorf("%w: decode %s: %w", repository.ErrCache, key, err)
		}
		c.recordLookup(op, true)
		return v, nil
	case !errors.Is(err, repository.ErrCacheMiss):
		return zero, err
	}

	c.recordLookup(op, false)
	c.logger.DebugContext(ctx, "Cache miss", slog.String("cache_key", key))

	load := func() (T, error) {
		v, err := compute(ctx)
		if err != nil {
			return zero, err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return zero, fmt.Errorf("encode %s: %w", key, err)
		}
		if err := c.store.Set(ctx, key, b, c.ttl.For(op)); err != nil {
			return zero, err
		}
		return v, nil
	}

	if c.group == nil {
		return load()
	}

	v, err, shared := c.group.Do(key, func() (any, error) { return load() })
	if err != nil {
		return zero, err
	}
	if shared {
		c.logger.DebugContext(ctx, "Cache fill shared", slog.String("cache_key", key))
	}
	return v.(T), nil
}
