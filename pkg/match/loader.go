package match

import (
	"context"
	"errors"
	"fmt"
)

// adjEdge is one loaded adjacency entry of a candidate node.
type adjEdge struct {
	id       EdgeID
	other    NodeID
	otherPos int // -1 when the other end lies outside the candidate set
	props    map[string]string
}

// side is the immutable, fully loaded view of one candidate sequence.
// After loadSide returns, nothing writes to it, so rating workers share it freely.
type side struct {
	index *IndexMap
	props []map[string]string
	in    [][]adjEdge
	out   [][]adjEdge
}

func (s *side) edges(pos int, dir Direction) []adjEdge {
	if dir == Incoming {
		return s.in[pos]
	}
	return s.out[pos]
}

// neighbors lists candidate-set neighbors of pos over both directions.
// Duplicates are kept; callers only take maxima over them.
func (s *side) neighbors(pos int) []int {
	out := make([]int, 0, len(s.in[pos])+len(s.out[pos]))
	for _, e := range s.out[pos] {
		if e.otherPos >= 0 {
			out = append(out, e.otherPos)
		}
	}
	for _, e := range s.in[pos] {
		if e.otherPos >= 0 {
			out = append(out, e.otherPos)
		}
	}
	return out
}

// loadSide reads node properties and adjacency for every id in idx.
// Properties left by earlier persisted runs are dropped.
// Edge properties are only fetched for edges whose both ends are candidates,
// the only edges the similarity computation ever inspects.
func loadSide(ctx context.Context, r GraphReader, idx *IndexMap) (*side, error) {
	n := idx.Len()
	s := &side{
		index: idx,
		props: make([]map[string]string, n),
		in:    make([][]adjEdge, n),
		out:   make([][]adjEdge, n),
	}
	edgeProps := make(map[EdgeID]map[string]string)

	for p := 0; p < n; p++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := idx.ID(p)

		props, err := r.NodeProperties(ctx, id)
		if err != nil {
			return nil, classifyReadErr(id, err)
		}
		s.props[p] = attributes(props)

		out, err := r.OutgoingEdges(ctx, id)
		if err != nil {
			return nil, classifyReadErr(id, err)
		}
		if s.out[p], err = resolveEdges(ctx, r, idx, out, edgeProps); err != nil {
			return nil, err
		}

		in, err := r.IncomingEdges(ctx, id)
		if err != nil {
			return nil, classifyReadErr(id, err)
		}
		if s.in[p], err = resolveEdges(ctx, r, idx, in, edgeProps); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func resolveEdges(ctx context.Context, r GraphReader, idx *IndexMap, refs []EdgeRef, cache map[EdgeID]map[string]string) ([]adjEdge, error) {
	out := make([]adjEdge, len(refs))
	for i, ref := range refs {
		e := adjEdge{id: ref.Edge, other: ref.Other, otherPos: -1}
		if p, ok := idx.Position(ref.Other); ok {
			e.otherPos = p
			props, cached := cache[ref.Edge]
			if !cached {
				var err error
				props, err = r.EdgeProperties(ctx, ref.Edge)
				if err != nil {
					return nil, fmt.Errorf("%w: edge %d: %v", ErrSnapshot, ref.Edge, err)
				}
				cache[ref.Edge] = props
			}
			e.props = props
		}
		out[i] = e
	}
	return out, nil
}

func classifyReadErr(id NodeID, err error) error {
	if errors.Is(err, ErrNodeNotFound) {
		return fmt.Errorf("%w: node %d does not exist", ErrInvalidInput, id)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: node %d: %v", ErrSnapshot, id, err)
}
