package domain

import (
	"time"
)

type RiskLevel string

const (
	RiskHigh   RiskLevel = "HIGH"
	RiskMedium RiskLevel = "MEDIUM"
	RiskLow    RiskLevel = "LOW"
)

const (
	HighRiskThreshold   = 75.0
	MediumRiskThreshold = 50.0
)

// LevelFor maps a 0-100 score onto a risk tier.
func LevelFor(score float64) RiskLevel {
	switch {
	case score >= HighRiskThreshold:
		return RiskHigh
	case score >= MediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// RiskFactors are the four sub-scores, each within [0, 100].
type RiskFactors struct {
	TransactionVolume float64 `json:"transaction_volume"`
	AmountVariance    float64 `json:"amount_variance"`
	BalanceRatio      float64 `json:"balance_ratio"`
	CircularPatterns  float64 `json:"circular_patterns"`
}

// RiskAssessment is the scored view of one entity.
type RiskAssessment struct {
	EntityID    string      `json:"entity_id"`
	Score       float64     `json:"risk_score"`
	Level       RiskLevel   `json:"risk_level"`
	Factors     RiskFactors `json:"risk_factors"`
	EvaluatedAt time.Time   `json:"evaluated_at"`
}

// RiskRollup summarises every cached risk score.
type RiskRollup struct {
	TotalScored  int              `json:"total_entities_scored"`
	AverageScore float64          `json:"avg_risk_score"`
	HighRisk     int              `json:"high_risk_count"`
	MediumRisk   int              `json:"medium_risk_count"`
	LowRisk      int              `json:"low_risk_count"`
	Distribution RiskDistribution `json:"risk_score_distribution"`
}

type RiskDistribution struct {
	Min         float64            `json:"min"`
	Max         float64            `json:"max"`
	Percentiles map[string]float64 `json:"percentiles"`
}
