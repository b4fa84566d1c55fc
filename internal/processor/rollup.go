package processor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	"fincrime_engine/internal/domain"
	"fincrime_engine/internal/repository"
	"fincrime_engine/pkg/stats"
)

// RiskRollup summarises every risk assessment currently held in the cache.
// Keys that expire between the scan and the read are skipped.
func RiskRollup(ctx context.Context, store repository.CacheStore, logger *slog.Logger) (*domain.RiskRollup, error) {
	if logger == nil {
		logger = slog.Default()
	}

	keys, err := store.Scan(ctx, RiskScorePrefix)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, 0, len(keys))
	for _, key := range keys {
		raw, err := store.Get(ctx, key)
		if errors.Is(err, repository.ErrCacheMiss) {
			continue
		}
		if err != nil {
			return nil, err
		}

		var a domain.RiskAssessment
		if err := json.Unmarshal(raw, &a); err != nil {
			logger.WarnContext(ctx, "Skipping undecodable risk score",
				slog.String("cache_key", key),
				slog.Any("error", err))
			continue
		}
		scores = append(scores, a.Score)
	}

	if len(scores) == 0 {
		return nil, ErrNoData
	}

	return summariseScores(scores), nil
}

func summariseScores(scores []float64) *domain.RiskRollup {
	r := &domain.RiskRollup{
		TotalScored:  len(scores),
		AverageScore: stats.Mean(scores),
	}
	for _, s := range scores {
		switch domain.LevelFor(s) {
		case domain.RiskHigh:
			r.HighRisk++
		case domain.RiskMedium:
			r.MediumRisk++
		default:
			r.LowRisk++
		}
	}
	r.Distribution = domain.RiskDistribution{
		Min:         slices.Min(scores),
		Max:         slices.Max(scores),
		Percentiles: stats.Percentiles(scores),
	}
	return r
}
