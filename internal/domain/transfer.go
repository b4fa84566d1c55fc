package domain

import (
	"time"

	"github.com/google/uuid"
)

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

// Currencies lists the accepted transfer currencies.
var Currencies = []Currency{CurrencyUSD, CurrencyEUR, CurrencyGBP}

// Transfer is a directed, timestamped money movement between two accounts.
type Transfer struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	Amount    float64   `json:"amount"`
	Currency  Currency  `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransfer builds a transfer with a fresh identifier. A zero timestamp
// is replaced with the current time.
func NewTransfer(sourceID, targetID string, amount float64, currency Currency, ts time.Time) *Transfer {
	if ts.IsZero() {
		ts = time.Now()
	}
	return &Transfer{
		ID:        uuid.NewString(),
		SourceID:  sourceID,
		TargetID:  targetID,
		Amount:    amount,
		Currency:  currency,
		Timestamp: ts.UTC(),
	}
}

// TransferFilter narrows a transfer search. Zero values disable a bound.
type TransferFilter struct {
	Start     time.Time
	End       time.Time
	MinAmount float64
	Limit     int
}

// WindowAggregate is the raw material of window metrics: every amount of
// the transfers whose timestamp falls in [start, end).
type WindowAggregate struct {
	Count   int       `json:"count"`
	Total   float64   `json:"total"`
	Mean    float64   `json:"mean"`
	Amounts []float64 `json:"amounts"`
}

func NewWindowAggregate(amounts []float64) *WindowAggregate {
	agg := &WindowAggregate{Count: len(amounts), Amounts: amounts}
	if agg.Amounts == nil {
		agg.Amounts = []float64{}
	}
	agg.Total = sum(amounts)
	if agg.Count > 0 {
		agg.Mean = agg.Total / float64(agg.Count)
	}
	return agg
}

// WindowMetrics summarises transfer activity inside a trailing window.
type WindowMetrics struct {
	TimeframeHours    int                `json:"timeframe_hours"`
	TotalTransactions int                `json:"total_transactions"`
	TotalAmount       float64            `json:"total_amount"`
	AvgAmount         float64            `json:"avg_amount"`
	StdDev            float64            `json:"std_dev"`
	Percentiles       map[string]float64 `json:"percentiles"`
}
