package processor

import (
	"context"
	"log/slog"
	"time"

	"fincrime_engine/internal/domain"
	"fincrime_engine/internal/repository"
	"fincrime_engine/pkg/stats"
	"fincrime_engine/pkg/validator"
)

const (
	DefaultTimeframeHours = 24
	MaxTimeframeHours     = 24 * 365
)

// MetricsAggregator computes summary statistics over a trailing window.
type MetricsAggregator struct {
	graph  repository.GraphStore
	now    func() time.Time
	logger *slog.Logger
}

func NewMetricsAggregator(graph repository.GraphStore, now func() time.Time, logger *slog.Logger) *MetricsAggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &MetricsAggregator{graph: graph, now: now, logger: logger}
}

// WindowMetrics covers transfers with now-hours <= timestamp < now. An empty
// window yields zeroed statistics.
func (a *MetricsAggregator) WindowMetrics(ctx context.Context, timeframeHours int) (*domain.WindowMetrics, error) {
	if err := validator.IntRange("timeframe_hours", timeframeHours, 1, MaxTimeframeHours); err != nil {
		return nil, err
	}

	end := a.now()
	start := end.Add(-time.Duration(timeframeHours) * time.Hour)

	agg, err := a.graph.AggregateWindow(ctx, start, end)
	if err != nil {
		return nil, err
	}

	m := &domain.WindowMetrics{
		TimeframeHours:    timeframeHours,
		TotalTransactions: agg.Count,
		TotalAmount:       agg.Total,
		AvgAmount:         agg.Mean,
		StdDev:            stats.PopStdDev(agg.Amounts),
		Percentiles:       stats.Percentiles(agg.Amounts),
	}

	a.logger.DebugContext(ctx, "Window metrics computed",
		slog.Int("timeframe_hours", timeframeHours),
		slog.Int("total_transactions", m.TotalTransactions))

	return m, nil
}
