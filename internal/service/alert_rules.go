package service

import (
	"encoding/json"
	"fmt"
	"os"

	"fincrime_engine/internal/domain"
)

// Signals collected by the monitor.
const (
	SignalHighRiskRatio    = "high_risk_ratio"
	SignalCircularPatterns = "circular_patterns"
	SignalLargeTransfers   = "large_transfers"
	SignalVelocity         = "transfer_velocity"
)

// AlertRule raises an alert when Signal compares true against Threshold.
type AlertRule struct {
	Name      string               `json:"name"`
	Signal    string               `json:"signal"`
	Operator  string               `json:"operator"`
	Threshold float64              `json:"threshold"`
	Severity  domain.AlertSeverity `json:"severity"`
	Message   string               `json:"message"`
}

func DefaultAlertRules() []AlertRule {
	return []AlertRule{
		{
			Name:      "high_risk_ratio",
			Signal:    SignalHighRiskRatio,
			Operator:  ">",
			Threshold: 0.1,
			Severity:  domain.SeverityHigh,
			Message:   "High risk entity ratio exceeds threshold",
		},
		{
			Name:      "circular_patterns",
			Signal:    SignalCircularPatterns,
			Operator:  ">=",
			Threshold: 3,
			Severity:  domain.SeverityHigh,
			Message:   "Circular transfer patterns detected",
		},
		{
			Name:      "large_transfers",
			Signal:    SignalLargeTransfers,
			Operator:  ">=",
			Threshold: 1,
			Severity:  domain.SeverityMedium,
			Message:   "Transfers above the large amount threshold",
		},
		{
			Name:      "transfer_velocity",
			Signal:    SignalVelocity,
			Operator:  ">",
			Threshold: 100,
			Severity:  domain.SeverityMedium,
			Message:   "High transfer velocity in the last hour",
		},
	}
}

// LoadAlertRules reads a JSON array of rules from path.
func LoadAlertRules(path string) ([]AlertRule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alert rules: %w", err)
	}

	var rules []AlertRule
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("invalid alert rules JSON: %w", err)
	}
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if r.Severity == "" {
			rules[i].Severity = domain.SeverityMedium
		}
	}
	return rules, nil
}

func (r AlertRule) Validate() error {
	if r.Name == "" || r.Signal == "" {
		return fmt.Errorf("name and signal are required")
	}
	if _, err := compare(r.Operator, 0, 0); err != nil {
		return err
	}
	switch r.Severity {
	case "", domain.SeverityHigh, domain.SeverityMedium, domain.SeverityLow:
		return nil
	default:
		return fmt.Errorf("unknown severity: %s", r.Severity)
	}
}

// Evaluate reports whether the rule fires for value.
func (r AlertRule) Evaluate(value float64) (bool, error) {
	return compare(r.Operator, value, r.Threshold)
}

func compare(operator string, value, target float64) (bool, error) {
	switch operator {
	case ">":
		return value > target, nil
	case ">=":
		return value >= target, nil
	case "<":
		return value < target, nil
	case "<=":
		return value <= target, nil
	case "==":
		return value == target, nil
	case "!=":
		return value != target, nil
	default:
		return false, fmt.Errorf("unknown operator: %s", operator)
	}
}
