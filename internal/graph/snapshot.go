// Package graph holds an in-process view of the transfer graph and the
// bounded cycle search that runs over it.
package graph

import "sort"

// EdgeInfo is a transfer reduced to what the search needs. Index is the
// insertion order of the transfer and breaks ties between parallel edges.
type EdgeInfo struct {
	ID     string
	Source string
	Target string
	Amount float64
	Index  int
}

// Snapshot is a directed multigraph with precomputed outgoing adjacency.
type Snapshot struct {
	Nodes  []string // sorted
	OutAdj map[string][]EdgeInfo
}

// NewSnapshot builds a Snapshot from edges. Edges keep their relative order
// inside each adjacency list.
func NewSnapshot(edges []EdgeInfo) *Snapshot {
	outAdj := make(map[string][]EdgeInfo)
	seen := make(map[string]struct{})

	for _, e := range edges {
		outAdj[e.Source] = append(outAdj[e.Source], e)
		seen[e.Source] = struct{}{}
		seen[e.Target] = struct{}{}
	}

	nodes := make([]string, 0, len(seen))
	for id := range seen {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)

	for id := range outAdj {
		adj := outAdj[id]
		sort.SliceStable(adj, func(i, j int) bool { return adj[i].Index < adj[j].Index })
	}

	return &Snapshot{Nodes: nodes, OutAdj: outAdj}
}
