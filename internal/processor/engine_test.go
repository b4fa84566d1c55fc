package processor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fincrime_engine/internal/domain"
	"fincrime_engine/internal/repository"
	"fincrime_engine/internal/repository/memory"
	"fincrime_engine/pkg/metrics"
	"fincrime_engine/pkg/validator"
)

func newTestEngine(t *testing.T) (*Engine, *memory.GraphStore, *memory.CacheStore) {
	t.Helper()
	g := memory.NewGraphStore()
	c := memory.NewCacheStore()
	e := NewEngine(g, c, metrics.NewMetricsCollector(nil), Options{Now: fixedNow}, nil)
	return e, g, c
}

func TestEngine_CircularPatternsAreCached(t *testing.T) {
	e, g, _ := newTestEngine(t)
	ctx := context.Background()
	triangle(t, g, 20000)

	first, err := e.CircularPatterns(ctx, 10000, 4, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 pattern, got %d", len(first))
	}

	// A new cycle is not visible until the cached entry expires.
	addTransfer(t, g, "ACC_0004", "ACC_0005", 20000, baseTime.Add(-time.Minute))
	addTransfer(t, g, "ACC_0005", "ACC_0004", 20000, baseTime.Add(-time.Second))

	second, err := e.CircularPatterns(ctx, 10000.0, 4, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("expected cached result with 1 pattern, got %d", len(second))
	}

	fresh, err := e.CircularPatterns(ctx, 5000, 4, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fresh) != 2 {
		t.Fatalf("expected a different key to see both cycles, got %d", len(fresh))
	}
}

func TestEngine_InvalidParametersBypassCache(t *testing.T) {
	e, _, c := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.CircularPatterns(ctx, -1, 4, 10); !errors.Is(err, validator.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if _, err := e.WindowMetrics(ctx, 0); !errors.Is(err, validator.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}

	keys, err := c.Scan(ctx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected nothing cached, got %v", keys)
	}
}

func TestEngine_RiskScoreFeedsRollup(t *testing.T) {
	e, g, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.RiskMetrics(ctx); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData before any scoring, got %v", err)
	}

	triangle(t, g, 20000)
	for _, id := range []string{"ACC_0001", "ACC_0002", "ACC_0099"} {
		if _, err := e.RiskScore(ctx, id); err != nil {
			t.Fatalf("unexpected error scoring %s: %v", id, err)
		}
	}

	r, err := e.RiskMetrics(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.TotalScored != 2 || r.LowRisk != 2 {
		t.Fatalf("expected 2 low risk entities, got %+v", r)
	}
	if r.Distribution.Min == 0 {
		t.Fatalf("expected only entities with history in the rollup, got min %v", r.Distribution.Min)
	}
}

func TestEngine_UnknownEntityNotCached(t *testing.T) {
	e, _, cache := newTestEngine(t)
	ctx := context.Background()

	a, err := e.RiskScore(ctx, "ACC_9999")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Score != 0 || a.Level != domain.RiskLow {
		t.Fatalf("expected 0/LOW, got %v/%s", a.Score, a.Level)
	}

	if _, err := cache.Get(ctx, RiskScoreKey("ACC_9999")); !errors.Is(err, repository.ErrCacheMiss) {
		t.Fatalf("expected no cached score, got %v", err)
	}
	if _, err := e.RiskMetrics(ctx); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestEngine_Blacklist(t *testing.T) {
	g := memory.NewGraphStore()
	collector := metrics.NewMetricsCollector(nil)
	e := NewEngine(g, memory.NewCacheStore(), collector, Options{Now: fixedNow}, nil)
	ctx := context.Background()

	if _, err := e.AddToBlacklist(ctx, "ACC_0010", "mule account", 88); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok, err := e.IsBlacklisted(ctx, "ACC_0010")
	if err != nil || !ok {
		t.Fatalf("expected blacklisted, got %v err=%v", ok, err)
	}
	list, err := e.Blacklist(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one entry, got %v err=%v", list, err)
	}
	entry, err := e.BlacklistEntry(ctx, "ACC_0010")
	if err != nil || entry.Reason != "mule account" {
		t.Fatalf("unexpected entry %+v err=%v", entry, err)
	}
	rec := httptest.NewRecorder()
	collector.GetHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "fincrime_blacklist_entities 1") {
		t.Fatal("expected blacklist gauge to be exported as 1")
	}
}

func TestEngine_Network(t *testing.T) {
	e, g, _ := newTestEngine(t)
	addTransfer(t, g, "ACC_0001", "ACC_0002", 60000, baseTime.Add(-time.Hour))

	n, err := e.Network(context.Background(), DefaultNetworkMinAmount)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(n.Edges) != 1 || n.Edges[0].TargetID != "ACC_0002" {
		t.Fatalf("unexpected network %+v", n)
	}
	if n.MinAmount != DefaultNetworkMinAmount {
		t.Fatalf("expected min amount echoed, got %v", n.MinAmount)
	}
}

func TestEngine_Ping(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if err := e.Ping(context.Background()); err != nil {
		t.Fatalf("expected healthy stores, got %v", err)
	}
}
