package domain

import (
	"time"
)

const DefaultBlacklistReason = "Not specified"

// BlacklistEntry records why and when an entity was flagged.
type BlacklistEntry struct {
	EntityID  string    `json:"entity_id"`
	Reason    string    `json:"reason"`
	RiskScore float64   `json:"risk_score"`
	FlaggedAt time.Time `json:"timestamp"`
}
