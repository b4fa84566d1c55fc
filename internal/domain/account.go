package domain

import (
	"time"
)

// Account is a node of the transfer graph. Accounts are created implicitly
// the first time a transfer references them.
type Account struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// TransferSummary holds the amounts of every transfer touching one account.
type TransferSummary struct {
	AccountID string    `json:"account_id"`
	Outgoing  []float64 `json:"outgoing"`
	Incoming  []float64 `json:"incoming"`
}

func (s *TransferSummary) TotalOutgoing() float64 {
	return sum(s.Outgoing)
}

func (s *TransferSummary) TotalIncoming() float64 {
	return sum(s.Incoming)
}

// Amounts returns outgoing and incoming amounts in one slice.
func (s *TransferSummary) Amounts() []float64 {
	all := make([]float64, 0, len(s.Outgoing)+len(s.Incoming))
	all = append(all, s.Outgoing...)
	return append(all, s.Incoming...)
}

func (s *TransferSummary) Count() int {
	return len(s.Outgoing) + len(s.Incoming)
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
