package processor

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"fincrime_engine/internal/domain"
	"fincrime_engine/pkg/validator"
)

const (
	DefaultNetworkMinAmount = 50000.0
	networkTransferCap      = 100
)

// BuildNetwork folds the newest large transfers into a weighted graph.
// Parallel transfers between the same ordered pair become one edge.
func (p *TransferProcessor) BuildNetwork(ctx context.Context, minAmount float64) (*domain.Network, error) {
	if err := validator.NonNegative("min_amount", minAmount); err != nil {
		return nil, err
	}

	transfers, err := p.graph.SearchTransfers(ctx, domain.TransferFilter{
		MinAmount: minAmount,
		Limit:     networkTransferCap,
	})
	if err != nil {
		return nil, err
	}

	type pair struct{ src, dst string }
	nodes := make(map[string]struct{})
	index := make(map[pair]int)
	network := &domain.Network{
		MinAmount: minAmount,
		Nodes:     []string{},
		Edges:     []domain.NetworkEdge{},
	}

	for _, t := range transfers {
		nodes[t.SourceID] = struct{}{}
		nodes[t.TargetID] = struct{}{}

		k := pair{t.SourceID, t.TargetID}
		i, ok := index[k]
		if !ok {
			i = len(network.Edges)
			index[k] = i
			network.Edges = append(network.Edges, domain.NetworkEdge{SourceID: t.SourceID, TargetID: t.TargetID})
		}
		network.Edges[i].Amount += t.Amount
		network.Edges[i].Transfers++
	}

	for n := range nodes {
		network.Nodes = append(network.Nodes, n)
	}
	slices.Sort(network.Nodes)
	slices.SortFunc(network.Edges, func(a, b domain.NetworkEdge) int {
		return cmp.Or(strings.Compare(a.SourceID, b.SourceID), strings.Compare(a.TargetID, b.TargetID))
	})

	return network, nil
}
