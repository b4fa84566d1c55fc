package graph

// Cycle is a closed path. Accounts starts and ends with the origin; Edges[i]
// leads from Accounts[i] to Accounts[i+1].
type Cycle struct {
	Accounts []string
	Edges    []EdgeInfo
}

// CycleOptions bound a search. Through pins the origin to one node; without
// it every cycle is reported once, rooted at its smallest node.
type CycleOptions struct {
	MinAmount float64
	MaxDepth  int
	Limit     int
	Through   string
}

// Cycles enumerates simple directed cycles of length 1..MaxDepth whose every
// edge carries at least MinAmount. Results are ordered by length, then by
// origin, then by edge insertion order, and truncated to Limit when Limit > 0.
func (s *Snapshot) Cycles(opts CycleOptions) []Cycle {
	origins := s.Nodes
	if opts.Through != "" {
		if _, ok := s.OutAdj[opts.Through]; !ok {
			return nil
		}
		origins = []string{opts.Through}
	}

	search := &cycleSearch{
		snapshot: s,
		opts:     opts,
		visited:  make(map[string]bool),
	}

	// Iterative deepening yields cycles already ordered by length and lets
	// the search stop as soon as the limit is reached.
	for length := 1; length <= opts.MaxDepth; length++ {
		for _, origin := range origins {
			search.origin = origin
			search.length = length
			clear(search.visited)
			search.visited[origin] = true
			search.walk(origin, []string{origin}, nil)
			if search.full() {
				return search.found
			}
		}
	}

	return search.found
}

type cycleSearch struct {
	snapshot *Snapshot
	opts     CycleOptions
	origin   string
	length   int
	visited  map[string]bool
	found    []Cycle
}

func (c *cycleSearch) full() bool {
	return c.opts.Limit > 0 && len(c.found) >= c.opts.Limit
}

func (c *cycleSearch) walk(node string, accounts []string, edges []EdgeInfo) {
	for _, e := range c.snapshot.OutAdj[node] {
		if c.full() {
			return
		}
		if e.Amount < c.opts.MinAmount {
			continue
		}

		depth := len(edges) + 1
		if e.Target == c.origin {
			if depth == c.length {
				c.record(accounts, edges, e)
			}
			continue
		}
		if depth >= c.length || c.visited[e.Target] {
			continue
		}
		if c.opts.Through == "" && e.Target < c.origin {
			continue
		}

		c.visited[e.Target] = true
		c.walk(e.Target, append(accounts, e.Target), append(edges, e))
		c.visited[e.Target] = false
	}
}

func (c *cycleSearch) record(accounts []string, edges []EdgeInfo, closing EdgeInfo) {
	cycle := Cycle{
		Accounts: make([]string, 0, len(accounts)+1),
		Edges:    make([]EdgeInfo, 0, len(edges)+1),
	}
	cycle.Accounts = append(append(cycle.Accounts, accounts...), c.origin)
	cycle.Edges = append(append(cycle.Edges, edges...), closing)
	c.found = append(c.found, cycle)
}
