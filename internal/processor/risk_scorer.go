package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fincrime_engine/internal/domain"
	"fincrime_engine/internal/repository"
	"fincrime_engine/pkg/stats"
	"fincrime_engine/pkg/validator"
)

const (
	// volumeSaturation is the transfer count at which volume risk reaches 100.
	volumeSaturation = 1000.0
	// patternWeight is the risk added per cycle through the entity.
	patternWeight = 25.0
	patternDepth  = 4
)

// balanceBand scores a closed in/out ratio interval; bands are checked in order.
type balanceBand struct {
	low, high float64
	risk      float64
}

var balanceBands = []balanceBand{
	{0.95, 1.05, 100},
	{0.90, 1.10, 75},
	{0.80, 1.20, 50},
}

const balanceFallbackRisk = 25.0

// riskFactor is one equally weighted component of the entity score.
type riskFactor struct {
	Name   string
	Weight float64
	Score  func(in *factorInput) float64
	Assign func(f *domain.RiskFactors, v float64)
}

type factorInput struct {
	summary *domain.TransferSummary
	cycles  int
}

// RiskScorer combines four sub-scores into a 0-100 entity risk score.
type RiskScorer struct {
	graph            repository.GraphStore
	cycles           *CycleFinder
	validator        *validator.TransferValidator
	patternMinAmount float64
	factors          []riskFactor
	now              func() time.Time
	logger           *slog.Logger
}

func NewRiskScorer(graph repository.GraphStore, cycles *CycleFinder, patternMinAmount float64, now func() time.Time, logger *slog.Logger) *RiskScorer {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}

	return &RiskScorer{
		graph:            graph,
		cycles:           cycles,
		validator:        validator.NewTransferValidator(),
		patternMinAmount: patternMinAmount,
		now:              now,
		logger:           logger,
		factors: []riskFactor{
			{
				Name:   "transaction_volume",
				Weight: 0.25,
				Score:  func(in *factorInput) float64 { return VolumeRisk(in.summary.Count()) },
				Assign: func(f *domain.RiskFactors, v float64) { f.TransactionVolume = v },
			},
			{
				Name:   "amount_variance",
				Weight: 0.25,
				Score:  func(in *factorInput) float64 { return VarianceRisk(in.summary.Amounts()) },
				Assign: func(f *domain.RiskFactors, v float64) { f.AmountVariance = v },
			},
			{
				Name:   "balance_ratio",
				Weight: 0.25,
				Score: func(in *factorInput) float64 {
					return BalanceRisk(in.summary.TotalOutgoing(), in.summary.TotalIncoming())
				},
				Assign: func(f *domain.RiskFactors, v float64) { f.BalanceRatio = v },
			},
			{
				Name:   "circular_patterns",
				Weight: 0.25,
				Score:  func(in *factorInput) float64 { return PatternRisk(in.cycles) },
				Assign: func(f *domain.RiskFactors, v float64) { f.CircularPatterns = v },
			},
		},
	}
}

// Unscored is the zero assessment reported for an entity with no history.
func (s *RiskScorer) Unscored(entityID string) *domain.RiskAssessment {
	return &domain.RiskAssessment{
		EntityID:    entityID,
		Level:       domain.RiskLow,
		EvaluatedAt: s.now().UTC(),
	}
}

// Score evaluates entityID. An entity absent from the graph yields
// ErrNoHistory.
func (s *RiskScorer) Score(ctx context.Context, entityID string) (*domain.RiskAssessment, error) {
	if err := s.validator.ValidateAccountID(entityID); err != nil {
		return nil, err
	}

	summary, err := s.graph.AccountTransferSummary(ctx, entityID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoHistory, entityID)
	}
	if err != nil {
		return nil, err
	}

	assessment := s.Unscored(entityID)

	cycles, err := s.cycles.CountCyclesThrough(ctx, entityID, s.patternMinAmount, patternDepth)
	if err != nil {
		return nil, err
	}

	in := &factorInput{summary: summary, cycles: cycles}
	var score float64
	for _, f := range s.factors {
		v := stats.Clamp(f.Score(in), 0, 100)
		f.Assign(&assessment.Factors, v)
		score += v * f.Weight
	}

	assessment.Score = stats.Clamp(score, 0, 100)
	assessment.Level = domain.LevelFor(assessment.Score)

	s.logger.InfoContext(ctx, "Entity risk scored",
		slog.String("entity_id", entityID),
		slog.Float64("risk_score", assessment.Score),
		slog.String("risk_level", string(assessment.Level)))

	return assessment, nil
}

// VolumeRisk grows linearly with the number of transfers, saturating at 1000.
func VolumeRisk(count int) float64 {
	return stats.Clamp(float64(count)/volumeSaturation*100, 0, 100)
}

// VarianceRisk is the coefficient of variation of amounts times 50. Fewer
// than two amounts carry no variance risk.
func VarianceRisk(amounts []float64) float64 {
	if len(amounts) < 2 {
		return 0
	}
	return stats.Clamp(stats.CoefficientOfVariation(amounts)*50, 0, 100)
}

// BalanceRisk scores totalOut/totalIn. It is highest when money out roughly
// equals money in, the signature of a pass-through account.
func BalanceRisk(totalOut, totalIn float64) float64 {
	if totalIn == 0 || totalOut == 0 {
		return 0
	}
	ratio := totalOut / totalIn
	for _, b := range balanceBands {
		if ratio >= b.low && ratio <= b.high {
			return b.risk
		}
	}
	return balanceFallbackRisk
}

func PatternRisk(cycles int) float64 {
	return stats.Clamp(float64(cycles)*patternWeight, 0, 100)
}
