package processor

import (
	"context"
	"log/slog"
	"time"

	"fincrime_engine/internal/domain"
	"fincrime_engine/internal/repository"
	"fincrime_engine/pkg/validator"
)

const (
	DefaultPatternMinAmount = 10000.0
	DefaultPatternDepth     = 4
	MaxPatternDepth         = 10
	MaxPatternLimit         = 10
)

// CycleFinder discovers circular flows of funds in the transfer graph.
type CycleFinder struct {
	graph  repository.GraphStore
	logger *slog.Logger
}

func NewCycleFinder(graph repository.GraphStore, logger *slog.Logger) *CycleFinder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CycleFinder{graph: graph, logger: logger}
}

func validatePatternQuery(minAmount float64, maxDepth int) error {
	if err := validator.NonNegative("min_amount", minAmount); err != nil {
		return err
	}
	return validator.IntRange("max_depth", maxDepth, 1, MaxPatternDepth)
}

// FindCircularPatterns returns at most limit cycles (limit 0 means
// MaxPatternLimit) of length 1..maxDepth in which every transfer is at least
// minAmount, shortest first.
func (f *CycleFinder) FindCircularPatterns(ctx context.Context, minAmount float64, maxDepth, limit int) ([]domain.Pattern, error) {
	if err := validatePatternQuery(minAmount, maxDepth); err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = MaxPatternLimit
	}
	if err := validator.IntRange("limit", limit, 1, MaxPatternLimit); err != nil {
		return nil, err
	}

	paths, err := f.graph.FindCycles(ctx, repository.CycleQuery{
		MinAmount: minAmount,
		MaxDepth:  maxDepth,
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}

	patterns := make([]domain.Pattern, 0, len(paths))
	for _, p := range paths {
		if !f.wellFormed(ctx, p, minAmount, maxDepth) {
			continue
		}
		patterns = append(patterns, toPattern(p))
		if len(patterns) == limit {
			break
		}
	}

	return patterns, nil
}

// CountCyclesThrough counts cycles that start and end at entityID, up to
// MaxPatternLimit.
func (f *CycleFinder) CountCyclesThrough(ctx context.Context, entityID string, minAmount float64, maxDepth int) (int, error) {
	if err := validatePatternQuery(minAmount, maxDepth); err != nil {
		return 0, err
	}

	paths, err := f.graph.FindCycles(ctx, repository.CycleQuery{
		MinAmount: minAmount,
		MaxDepth:  maxDepth,
		Limit:     MaxPatternLimit,
		Through:   entityID,
	})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, p := range paths {
		if f.wellFormed(ctx, p, minAmount, maxDepth) && p.Accounts[0] == entityID {
			count++
		}
	}
	return count, nil
}

// wellFormed rejects store output that is not a closed path within bounds.
func (f *CycleFinder) wellFormed(ctx context.Context, p domain.CyclePath, minAmount float64, maxDepth int) bool {
	n := p.Len()
	ok := n >= 1 && n <= maxDepth &&
		len(p.Accounts) == n+1 &&
		p.Accounts[0] == p.Accounts[n]
	for i := 0; ok && i < n; i++ {
		t := p.Transfers[i]
		ok = t.Amount >= minAmount && t.SourceID == p.Accounts[i] && t.TargetID == p.Accounts[i+1]
	}
	if !ok {
		f.logger.WarnContext(ctx, "Dropping malformed cycle from graph store",
			slog.Any("accounts", p.Accounts),
			slog.Int("transfers", n))
	}
	return ok
}

func toPattern(p domain.CyclePath) domain.Pattern {
	pattern := domain.Pattern{
		Accounts:     p.Accounts,
		Transactions: make([]domain.TransferLeg, 0, len(p.Transfers)),
		CycleLength:  len(p.Transfers),
	}
	for _, t := range p.Transfers {
		pattern.Transactions = append(pattern.Transactions, domain.TransferLeg{
			ID:        t.ID,
			Amount:    t.Amount,
			Currency:  t.Currency,
			Timestamp: t.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return pattern
}
