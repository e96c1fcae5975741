package match

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DefaultLayerDivisor gives the layer depth ceil(N/4) for N large-side nodes.
const DefaultLayerDivisor = 4

// LayerCount returns ceil(n/divisor), never less than one.
func LayerCount(n, divisor int) int {
	if divisor < 1 {
		divisor = DefaultLayerDivisor
	}
	depth := (n + divisor - 1) / divisor
	if depth < 1 {
		depth = 1
	}
	return depth
}

// ConnectivityModel holds the adjacency matrix of one candidate set and its
// successive squares. Layer 0 is the adjacency matrix; layer k is layer k-1
// multiplied by itself, so entries count paths of length 2^k instead of
// flagging mere reachability.
//
// The model is read-only once built.
type ConnectivityModel struct {
	index  *IndexMap
	layers []*mat.Dense
}

// NewConnectivityModel builds the adjacency matrix of s from outgoing edges
// whose target is also a candidate, then depth layers on top of it.
func NewConnectivityModel(ctx context.Context, s *side, depth int) (*ConnectivityModel, error) {
	n := s.index.Len()
	adj := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for _, e := range s.out[i] {
			if e.otherPos >= 0 {
				adj.Set(i, e.otherPos, 1)
			}
		}
	}

	layers, err := BuildLayers(ctx, adj, depth)
	if err != nil {
		return nil, err
	}
	return &ConnectivityModel{index: s.index, layers: layers}, nil
}

// BuildLayers computes depth layers starting from adj. It is a pure function
// of its input: the same adjacency always yields identical layers.
func BuildLayers(ctx context.Context, adj *mat.Dense, depth int) ([]*mat.Dense, error) {
	if depth < 1 {
		return nil, fmt.Errorf("%w: layer depth %d", ErrDimensionMismatch, depth)
	}
	layers := make([]*mat.Dense, depth)
	layers[0] = mat.DenseCopyOf(adj)
	for k := 1; k < depth; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := multiply(layers[k-1], layers[k-1])
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", k, err)
		}
		layers[k] = next
	}
	return layers, nil
}

// multiply returns a*b after checking the operands are square and agree.
func multiply(a, b *mat.Dense) (*mat.Dense, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != ac || br != bc {
		return nil, fmt.Errorf("%w: non-square operand (%dx%d, %dx%d)", ErrDimensionMismatch, ar, ac, br, bc)
	}
	if ac != br {
		return nil, fmt.Errorf("%w: a has %d columns, b has %d rows", ErrDimensionMismatch, ac, br)
	}
	var c mat.Dense
	c.Mul(a, b)
	return &c, nil
}

// Depth returns the number of layers.
func (c *ConnectivityModel) Depth() int { return len(c.layers) }

// Layer returns layer k. Callers must not modify it.
func (c *ConnectivityModel) Layer(k int) mat.Matrix { return c.layers[k] }

// At returns the path count from position `from` to position `to` in layer k.
func (c *ConnectivityModel) At(k, from, to int) float64 {
	return c.layers[k].At(from, to)
}

// Index returns the position map the layers are laid out in.
func (c *ConnectivityModel) Index() *IndexMap { return c.index }
