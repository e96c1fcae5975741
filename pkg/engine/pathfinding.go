package engine

import (
	"errors"
	"fmt"
	"slices"
)

// DefaultPathDepth bounds FindPath when PathQuery.MaxDepth is 0.
const DefaultPathDepth = 6

var ErrNoPath = errors.New("no path between nodes")

// PathQuery asks for the shortest directed path Source -> Target.
type PathQuery struct {
	Source uint64 `json:"source" validate:"required"`
	Target uint64 `json:"target" validate:"required"`
	// Relations restricts the edge types followed. Empty follows all.
	Relations []string `json:"relations,omitempty"`
	// MaxDepth is the longest path, in edges, that is searched.
	MaxDepth int `json:"max_depth,omitempty" validate:"gte=0"`
}

type PathResult struct {
	Nodes []uint64 `json:"nodes"` // Source first, Target last
	Edges []uint64 `json:"edges"` // Edges[i] joins Nodes[i] and Nodes[i+1]
}

// FindPath finds a shortest path using bidirectional BFS: forward over
// outgoing edges from Source, backward over incoming edges from Target.
func (e *Engine) FindPath(q PathQuery) (*PathResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.findPath(q)
}

// FindPath runs on the snapshot.
func (v *View) FindPath(q PathQuery) (*PathResult, error) { return v.state.findPath(q) }

// hop records how a node was reached during one side of the search.
type hop struct {
	prev uint64 // 0 on the side's start node
	edge uint64
	dist int
}

func (g *graphState) findPath(q PathQuery) (*PathResult, error) {
	if q.MaxDepth < 0 {
		return nil, fmt.Errorf("%w: negative max depth", ErrInvalidQuery)
	}
	maxDepth := q.MaxDepth
	if maxDepth == 0 {
		maxDepth = DefaultPathDepth
	}
	for _, id := range []uint64{q.Source, q.Target} {
		if _, ok := g.nodes.Get(id); !ok {
			return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
		}
	}
	if q.Source == q.Target {
		return &PathResult{Nodes: []uint64{q.Source}, Edges: []uint64{}}, nil
	}

	follow := func(relType string) bool {
		return len(q.Relations) == 0 || slices.Contains(q.Relations, relType)
	}

	fwd := map[uint64]hop{q.Source: {}}
	bwd := map[uint64]hop{q.Target: {}}
	fwdQueue := []uint64{q.Source}
	bwdQueue := []uint64{q.Target}
	fwdDepth, bwdDepth := 0, 0

	for len(fwdQueue) > 0 && len(bwdQueue) > 0 && fwdDepth+bwdDepth < maxDepth {
		// expand the smaller frontier, one full layer at a time
		forward := len(fwdQueue) <= len(bwdQueue)
		visited, other, queue := fwd, bwd, fwdQueue
		if !forward {
			visited, other, queue = bwd, fwd, bwdQueue
		}

		var (
			next    []uint64
			meeting uint64
			best    = -1
		)
		for _, curr := range queue {
			edges, err := g.adjacent(curr, forward)
			if err != nil {
				return nil, err
			}
			for _, ed := range edges {
				if !follow(ed.Type) {
					continue
				}
				neighbor := ed.Target
				if !forward {
					neighbor = ed.Source
				}
				if _, seen := visited[neighbor]; seen {
					continue
				}
				h := hop{prev: curr, edge: ed.ID, dist: visited[curr].dist + 1}
				visited[neighbor] = h
				next = append(next, neighbor)
				if o, ok := other[neighbor]; ok {
					if total := h.dist + o.dist; best < 0 || total < best {
						best, meeting = total, neighbor
					}
				}
			}
		}
		if forward {
			fwdQueue, fwdDepth = next, fwdDepth+1
		} else {
			bwdQueue, bwdDepth = next, bwdDepth+1
		}
		if best >= 0 && best <= maxDepth {
			return buildPath(meeting, fwd, bwd), nil
		}
	}
	return nil, fmt.Errorf("%w: %d -> %d within %d hops", ErrNoPath, q.Source, q.Target, maxDepth)
}

func buildPath(meeting uint64, fwd, bwd map[uint64]hop) *PathResult {
	res := &PathResult{}
	for n := meeting; ; {
		res.Nodes = append(res.Nodes, n)
		h := fwd[n]
		if h.prev == 0 {
			break
		}
		res.Edges = append(res.Edges, h.edge)
		n = h.prev
	}
	slices.Reverse(res.Nodes)
	slices.Reverse(res.Edges)

	for n := meeting; ; {
		h := bwd[n]
		if h.prev == 0 {
			break
		}
		res.Nodes = append(res.Nodes, h.prev)
		res.Edges = append(res.Edges, h.edge)
		n = h.prev
	}
	if res.Edges == nil {
		res.Edges = []uint64{}
	}
	return res
}
