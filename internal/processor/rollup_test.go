package processor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"fincrime_engine/internal/domain"
	"fincrime_engine/internal/repository/memory"
)

func cacheScore(t *testing.T, store *memory.CacheStore, id string, score float64) {
	t.Helper()
	raw, err := json.Marshal(domain.RiskAssessment{EntityID: id, Score: score, Level: domain.LevelFor(score)})
	if err != nil {
		t.Fatalf("failed to encode assessment: %v", err)
	}
	if err := store.Set(context.Background(), RiskScoreKey(id), raw, 0); err != nil {
		t.Fatalf("failed to cache assessment: %v", err)
	}
}

func TestRiskRollup(t *testing.T) {
	store := memory.NewCacheStore()
	cacheScore(t, store, "ACC_0001", 10)
	cacheScore(t, store, "ACC_0002", 60)
	cacheScore(t, store, "ACC_0003", 90)
	// Unrelated keys are ignored.
	if err := store.Set(context.Background(), "metrics:timeframe_hours=24", []byte(`{}`), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r, err := RiskRollup(context.Background(), store, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.TotalScored != 3 {
		t.Errorf("expected 3 scored, got %d", r.TotalScored)
	}
	if !approx(r.AverageScore, 160.0/3) {
		t.Errorf("expected average 53.33, got %v", r.AverageScore)
	}
	if r.HighRisk != 1 || r.MediumRisk != 1 || r.LowRisk != 1 {
		t.Errorf("expected 1/1/1 tiers, got %d/%d/%d", r.HighRisk, r.MediumRisk, r.LowRisk)
	}
	if r.Distribution.Percentiles["50"] != 60 {
		t.Errorf("expected median 60, got %v", r.Distribution.Percentiles["50"])
	}
	if r.Distribution.Min != 10 || r.Distribution.Max != 90 {
		t.Errorf("expected min 10 max 90, got %v %v", r.Distribution.Min, r.Distribution.Max)
	}
}

func TestRiskRollup_TierBoundaries(t *testing.T) {
	store := memory.NewCacheStore()
	cacheScore(t, store, "ACC_0001", 75)
	cacheScore(t, store, "ACC_0002", 50)
	cacheScore(t, store, "ACC_0003", 49.99)

	r, err := RiskRollup(context.Background(), store, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.HighRisk != 1 || r.MediumRisk != 1 || r.LowRisk != 1 {
		t.Fatalf("expected 1/1/1 tiers, got %d/%d/%d", r.HighRisk, r.MediumRisk, r.LowRisk)
	}
}

func TestRiskRollup_NoData(t *testing.T) {
	store := memory.NewCacheStore()
	if _, err := RiskRollup(context.Background(), store, nil); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}

	if err := store.Set(context.Background(), RiskScoreKey("ACC_0001"), []byte("garbage"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := RiskRollup(context.Background(), store, nil); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData when only undecodable entries exist, got %v", err)
	}
}
