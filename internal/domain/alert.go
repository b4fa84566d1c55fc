package domain

import (
	"time"
)

type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert is raised by the monitor when a signal crosses its threshold.
type Alert struct {
	Type      string            `json:"type"`
	Severity  AlertSeverity     `json:"severity"`
	Message   string            `json:"message"`
	Value     float64           `json:"value"`
	Threshold float64           `json:"threshold"`
	Details   map[string]string `json:"details,omitempty"`
	RaisedAt  time.Time         `json:"raised_at"`
}
