package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"fincrime_engine/internal/domain"
	"fincrime_engine/internal/processor"
	"fincrime_engine/pkg/metrics"
)

const (
	monitorPatternMinAmount = 50000.0
	monitorPatternDepth     = processor.DefaultPatternDepth
	largeTransferAmount     = 1000000.0
	velocityWindowHours     = 1

	DefaultMonitorInterval = 300 * time.Second
)

// SignalSource is the slice of the engine the monitor reads.
type SignalSource interface {
	RiskMetrics(ctx context.Context) (*domain.RiskRollup, error)
	CircularPatterns(ctx context.Context, minAmount float64, maxDepth, limit int) ([]domain.Pattern, error)
	LiveWindowMetrics(ctx context.Context, timeframeHours int) (*domain.WindowMetrics, error)
	SearchTransfers(ctx context.Context, filter domain.TransferFilter) ([]*domain.Transfer, error)
}

type AlertNotifier interface {
	SendAlert(ctx context.Context, alert domain.Alert) error
}

// Monitor periodically collects signals and raises alerts for the rules
// they satisfy.
type Monitor struct {
	source   SignalSource
	rules    []AlertRule
	notifier AlertNotifier
	metrics  *metrics.MetricsCollector
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewMonitor(
	source SignalSource,
	rules []AlertRule,
	notifier AlertNotifier,
	collector *metrics.MetricsCollector,
	interval time.Duration,
	logger *slog.Logger,
) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if len(rules) == 0 {
		rules = DefaultAlertRules()
	}
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	return &Monitor{
		source:   source,
		rules:    rules,
		notifier: notifier,
		metrics:  collector,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// Run executes a cycle immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.InfoContext(ctx, "Starting monitor", slog.Duration("interval", m.interval))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.RunCycle(ctx)
		select {
		case <-ctx.Done():
			m.logger.Info("Monitor stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunCycle collects signals once and dispatches every fired alert.
func (m *Monitor) RunCycle(ctx context.Context) []domain.Alert {
	m.logger.DebugContext(ctx, "Starting monitoring cycle")

	signals, details := m.CollectSignals(ctx)
	alerts := m.Evaluate(signals, details)

	for _, alert := range alerts {
		if m.metrics != nil {
			m.metrics.RecordAlert(alert.Type, string(alert.Severity))
		}
		if m.notifier == nil {
			continue
		}
		if err := m.notifier.SendAlert(ctx, alert); err != nil {
			m.logger.ErrorContext(ctx, "Failed to dispatch alert",
				slog.String("alert_type", alert.Type),
				slog.String("error", err.Error()))
		}
	}

	m.logger.DebugContext(ctx, "Monitoring cycle completed", slog.Int("alerts", len(alerts)))
	return alerts
}

// CollectSignals reads every signal it can. A failed check is logged and
// its signal is left out of the result.
func (m *Monitor) CollectSignals(ctx context.Context) (map[string]float64, map[string]map[string]string) {
	signals := make(map[string]float64)
	details := make(map[string]map[string]string)

	rollup, err := m.source.RiskMetrics(ctx)
	switch {
	case errors.Is(err, processor.ErrNoData):
	case err != nil:
		m.checkFailed(ctx, SignalHighRiskRatio, err)
	case rollup.TotalScored > 0:
		signals[SignalHighRiskRatio] = float64(rollup.HighRisk) / float64(rollup.TotalScored)
		details[SignalHighRiskRatio] = map[string]string{
			"high_risk_entities":    strconv.Itoa(rollup.HighRisk),
			"total_entities_scored": strconv.Itoa(rollup.TotalScored),
		}
	}

	patterns, err := m.source.CircularPatterns(ctx, monitorPatternMinAmount, monitorPatternDepth, processor.MaxPatternLimit)
	if err != nil {
		m.checkFailed(ctx, SignalCircularPatterns, err)
	} else {
		signals[SignalCircularPatterns] = float64(len(patterns))
		for _, p := range patterns {
			m.logger.InfoContext(ctx, "Circular pattern observed",
				slog.Any("accounts", p.Accounts),
				slog.Int("cycle_length", p.CycleLength))
		}
	}

	now := m.now()
	large, err := m.source.SearchTransfers(ctx, domain.TransferFilter{
		Start:     now.Add(-m.interval),
		End:       now,
		MinAmount: largeTransferAmount,
	})
	if err != nil {
		m.checkFailed(ctx, SignalLargeTransfers, err)
	} else {
		signals[SignalLargeTransfers] = float64(len(large))
		if len(large) > 0 {
			details[SignalLargeTransfers] = map[string]string{"newest_transfer_id": large[0].ID}
		}
	}

	window, err := m.source.LiveWindowMetrics(ctx, velocityWindowHours)
	if err != nil {
		m.checkFailed(ctx, SignalVelocity, err)
	} else {
		signals[SignalVelocity] = float64(window.TotalTransactions)
	}

	return signals, details
}

func (m *Monitor) checkFailed(ctx context.Context, signal string, err error) {
	m.logger.ErrorContext(ctx, "Monitoring check failed",
		slog.String("signal", signal),
		slog.String("error", err.Error()))
}

// Evaluate applies every rule to the collected signals. Rules whose signal
// is missing do not fire.
func (m *Monitor) Evaluate(signals map[string]float64, details map[string]map[string]string) []domain.Alert {
	var alerts []domain.Alert

	for _, rule := range m.rules {
		value, ok := signals[rule.Signal]
		if !ok {
			continue
		}
		fired, err := rule.Evaluate(value)
		if err != nil {
			m.logger.Error("Failed to evaluate rule",
				slog.String("rule", rule.Name),
				slog.String("error", err.Error()))
			continue
		}
		if !fired {
			continue
		}

		alerts = append(alerts, domain.Alert{
			Type:      rule.Name,
			Severity:  rule.Severity,
			Message:   fmt.Sprintf("%s: %g %s %g", rule.Message, value, rule.Operator, rule.Threshold),
			Value:     value,
			Threshold: rule.Threshold,
			Details:   details[rule.Signal],
			RaisedAt:  m.now().UTC(),
		})
	}

	return alerts
}
