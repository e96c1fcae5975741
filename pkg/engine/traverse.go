package engine

import (
	"fmt"
	"slices"
)

// Traverse walks breadth-first from q.RootID and returns the visited node
// ids, root first, each exactly once, in discovery order.
//
// Typical selections:
//
//	subtree:        GraphQuery{RootID: site, Relations: []string{RelHasChild}}
//	neighbourhood:  GraphQuery{RootID: n, Direction: DirBoth, MaxDepth: 1}
func (e *Engine) Traverse(q GraphQuery) ([]uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.traverse(q)
}

func (g *graphState) traverse(q GraphQuery) ([]uint64, error) {
	dir := q.Direction
	if dir == "" {
		dir = DirOut
	}
	if dir != DirOut && dir != DirIn && dir != DirBoth {
		return nil, fmt.Errorf("%w: direction %q", ErrInvalidQuery, q.Direction)
	}
	if q.MaxDepth < 0 {
		return nil, fmt.Errorf("%w: negative max depth", ErrInvalidQuery)
	}
	if _, ok := g.nodes.Get(q.RootID); !ok {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, q.RootID)
	}

	follow := func(relType string) bool {
		return len(q.Relations) == 0 || slices.Contains(q.Relations, relType)
	}

	visited := map[uint64]struct{}{q.RootID: {}}
	order := []uint64{q.RootID}
	frontier := []uint64{q.RootID}

	for depth := 0; len(frontier) > 0 && (q.MaxDepth == 0 || depth < q.MaxDepth); depth++ {
		var next []uint64
		for _, curr := range frontier {
			var neighbors []uint64
			if dir == DirOut || dir == DirBoth {
				edges, err := g.adjacent(curr, true)
				if err != nil {
					return nil, err
				}
				for _, ed := range edges {
					if follow(ed.Type) {
						neighbors = append(neighbors, ed.Target)
					}
				}
			}
			if dir == DirIn || dir == DirBoth {
				edges, err := g.adjacent(curr, false)
				if err != nil {
					return nil, err
				}
				for _, ed := range edges {
					if follow(ed.Type) {
						neighbors = append(neighbors, ed.Source)
					}
				}
			}
			for _, n := range neighbors {
				if _, seen := visited[n]; seen {
					continue
				}
				visited[n] = struct{}{}
				order = append(order, n)
				next = append(next, n)
			}
		}
		frontier = next
	}

	if q.Label == "" {
		return order, nil
	}
	filtered := order[:1]
	for _, id := range order[1:] {
		n, err := g.node(id)
		if err != nil {
			return nil, err
		}
		if n.HasLabel(q.Label) {
			filtered = append(filtered, id)
		}
	}
	return filtered, nil
}
