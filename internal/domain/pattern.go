package domain

// CyclePath is a closed walk returned by a graph store: Accounts[0] is the
// origin and is repeated as the final element, Transfers[i] moves money
// from Accounts[i] to Accounts[i+1].
type CyclePath struct {
	Accounts  []string
	Transfers []*Transfer
}

func (p CyclePath) Len() int {
	return len(p.Transfers)
}

// TransferLeg is the projection of one transfer inside a pattern.
type TransferLeg struct {
	ID        string   `json:"id"`
	Amount    float64  `json:"amount"`
	Currency  Currency `json:"currency"`
	Timestamp string   `json:"timestamp"`
}

// Pattern is a circular flow of funds.
type Pattern struct {
	Accounts     []string      `json:"accounts"`
	Transactions []TransferLeg `json:"transactions"`
	CycleLength  int           `json:"cycle_length"`
}

// NetworkEdge is a weighted edge of the network view.
type NetworkEdge struct {
	SourceID  string  `json:"source_id"`
	TargetID  string  `json:"target_id"`
	Amount    float64 `json:"amount"`
	Transfers int     `json:"transfers"`
}

// Network is the subgraph of large transfers, as plain data.
type Network struct {
	MinAmount float64       `json:"min_amount"`
	Nodes     []string      `json:"nodes"`
	Edges     []NetworkEdge `json:"edges"`
}
