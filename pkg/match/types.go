package match

import "fmt"

// NodeID is the store-assigned identifier of a node. The matcher never owns
// nodes, it only borrows ids from the graph store.
type NodeID uint64

// EdgeID is the store-assigned identifier of an edge.
type EdgeID uint64

// Direction selects which side of a node's adjacency is enumerated.
type Direction int

const (
	Incoming Direction = iota
	Outgoing
)

func (d Direction) String() string {
	switch d {
	case Incoming:
		return "incoming"
	case Outgoing:
		return "outgoing"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// EdgeRef is one adjacency entry: the edge and the node on its other end.
type EdgeRef struct {
	Edge  EdgeID
	Other NodeID
}

// Pair is a single node correspondence inside a matched subgraph.
type Pair struct {
	Small  NodeID  `json:"small"`
	Large  NodeID  `json:"large"`
	Rating float64 `json:"rating"`
}

// Subgraph is one maximal mapping grown from a single seed pair.
// Pairs are kept in claim order; the first pair is the seed.
type Subgraph struct {
	Index int    `json:"index"`
	Pairs []Pair `json:"pairs"`
}

// Mapping returns the small-side to large-side dictionary of the subgraph.
func (s Subgraph) Mapping() map[NodeID]NodeID {
	m := make(map[NodeID]NodeID, len(s.Pairs))
	for _, p := range s.Pairs {
		m[p.Small] = p.Large
	}
	return m
}

// Result is the outcome of one matching run.
type Result struct {
	// Swapped is true when the caller's second sequence was the smaller one
	// and therefore plays the "small" role in every Pair.
	Swapped bool `json:"swapped"`

	// Layers is the number of connectivity layers used for this run.
	Layers int `json:"layers"`

	// Subgraphs in discovery order; Subgraphs[k].Index == k+1.
	Subgraphs []Subgraph `json:"subgraphs"`
}

// Mappings returns one dictionary per subgraph, oriented from the caller's
// first sequence to the second regardless of the internal small/large roles.
func (r *Result) Mappings() []map[NodeID]NodeID {
	out := make([]map[NodeID]NodeID, 0, len(r.Subgraphs))
	for _, sg := range r.Subgraphs {
		m := make(map[NodeID]NodeID, len(sg.Pairs))
		for _, p := range sg.Pairs {
			if r.Swapped {
				m[p.Large] = p.Small
			} else {
				m[p.Small] = p.Large
			}
		}
		out = append(out, m)
	}
	return out
}

// MatchedPairs counts the pairs across all subgraphs.
func (r *Result) MatchedPairs() int {
	n := 0
	for _, sg := range r.Subgraphs {
		n += len(sg.Pairs)
	}
	return n
}
