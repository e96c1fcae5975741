package match

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestCompareUTF16(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"abc", "abc", 0},
		{"abc", "abd", -1},
		{"abd", "abc", 1},
		{"10", "9", -8},
		{"ab", "abcd", -2},
		{"", "xyz", -3},
		{"Zebra", "apple", 'Z' - 'a'},
		// U+1F600 encodes as the surrogate pair D83D DE00
		{"\U0001F600", "a", 0xD83D - 'a'},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, compareUTF16(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestDistanceStrategies(t *testing.T) {
	assert.Equal(t, 8.0, LexicographicDistance("10", "9"))
	assert.Equal(t, 1.0, NumericDistance("10", "9"))
	assert.Equal(t, 1.0, NumericDistance("abc", "abd"))

	d, err := DistanceByName("")
	require.NoError(t, err)
	assert.Equal(t, 8.0, d("9", "10"))

	d, err = DistanceByName(DistanceNumeric)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, d("1.5", "2"), 1e-12)

	_, err = DistanceByName("cosine")
	assert.Error(t, err)
}

func TestAttributeSimilarity(t *testing.T) {
	a := kv("name", "alpha", "kind", "room", "floor", "2")
	b := kv("name", "alpha", "kind", "rooms", "owner", "x")

	// union {name, kind, floor, owner}; name equal, kind differs by length 1
	want := (1.0 + 0.5) / 4
	assert.InDelta(t, want, attributeSimilarity(a, b, LexicographicDistance), 1e-12)
	assert.Equal(t,
		attributeSimilarity(a, b, LexicographicDistance),
		attributeSimilarity(b, a, LexicographicDistance))

	assert.Equal(t, 0.0, attributeSimilarity(nil, nil, LexicographicDistance))
	assert.Equal(t, 0.0, attributeSimilarity(kv("x", "1"), kv("y", "1"), LexicographicDistance))
	assert.Equal(t, 1.0, attributeSimilarity(a, a, LexicographicDistance))
}

func TestBuildLayers(t *testing.T) {
	// 0 -> 1 -> 2 -> 3, plus 0 -> 2
	adj := mat.NewDense(4, 4, []float64{
		0, 1, 1, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
		0, 0, 0, 0,
	})
	layers, err := BuildLayers(context.Background(), adj, 3)
	require.NoError(t, err)
	require.Len(t, layers, 3)

	assert.True(t, mat.Equal(adj, layers[0]))
	// two-hop path counts: 0->2 via 1, 0->3 via 2, 1->3 via 2
	assert.Equal(t, 1.0, layers[1].At(0, 2))
	assert.Equal(t, 1.0, layers[1].At(0, 3))
	assert.Equal(t, 1.0, layers[1].At(1, 3))
	assert.Equal(t, 0.0, layers[1].At(0, 1))
	// no four-hop path exists
	assert.Equal(t, 0.0, mat.Sum(layers[2]))

	again, err := BuildLayers(context.Background(), adj, 3)
	require.NoError(t, err)
	for k := range layers {
		assert.True(t, mat.Equal(layers[k], again[k]), "layer %d", k)
	}

	// the input is copied, not aliased
	adj.Set(3, 0, 1)
	assert.Equal(t, 0.0, layers[0].At(3, 0))
}

func TestBuildLayers_CountsPaths(t *testing.T) {
	// two distinct 2-hop paths from 0 to 3
	adj := mat.NewDense(4, 4, []float64{
		0, 1, 1, 0,
		0, 0, 0, 1,
		0, 0, 0, 1,
		0, 0, 0, 0,
	})
	layers, err := BuildLayers(context.Background(), adj, 2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, layers[1].At(0, 3))
}

func TestDimensionMismatch(t *testing.T) {
	_, err := multiply(mat.NewDense(2, 3, nil), mat.NewDense(3, 3, nil))
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = multiply(mat.NewDense(2, 2, nil), mat.NewDense(3, 3, nil))
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = BuildLayers(context.Background(), mat.NewDense(2, 2, nil), 0)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestLayerCount(t *testing.T) {
	assert.Equal(t, 3, LayerCount(12, 4))
	assert.Equal(t, 4, LayerCount(13, 4))
	assert.Equal(t, 1, LayerCount(1, 4))
	assert.Equal(t, 1, LayerCount(0, 4))
	assert.Equal(t, 12, LayerCount(12, 1))
	assert.Equal(t, 3, LayerCount(12, 0))
}

func TestIndexMap(t *testing.T) {
	m, err := NewIndexMap([]NodeID{30, 10, 20})
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())
	p, ok := m.Position(10)
	assert.True(t, ok)
	assert.Equal(t, 1, p)
	assert.Equal(t, NodeID(20), m.ID(2))
	assert.False(t, m.Contains(40))
	assert.Equal(t, []NodeID{30, 10, 20}, m.IDs())

	_, err = NewIndexMap([]NodeID{1, 2, 1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// ratedPair loads a two-node path per side and returns the rater over them.
func ratedPair(t *testing.T, g *memGraph, a, b []NodeID) *rater {
	t.Helper()
	ctx := context.Background()
	ia, err := NewIndexMap(a)
	require.NoError(t, err)
	ib, err := NewIndexMap(b)
	require.NoError(t, err)
	sa, err := loadSide(ctx, g, ia)
	require.NoError(t, err)
	sb, err := loadSide(ctx, g, ib)
	require.NoError(t, err)
	depth := LayerCount(ib.Len(), DefaultLayerDivisor)
	ca, err := NewConnectivityModel(ctx, sa, depth)
	require.NoError(t, err)
	cb, err := NewConnectivityModel(ctx, sb, depth)
	require.NoError(t, err)
	return &rater{small: sa, large: sb, smallConn: ca, largeConn: cb, dist: LexicographicDistance}
}

func TestRate_EdgeCorrespondence(t *testing.T) {
	g := newMemGraph()
	g.node(1, "name", "a")
	g.node(2, "name", "leaf")
	g.node(3, "name", "z")
	g.node(4, "name", "leaf")
	g.edge(1, 2, "rel", "a")
	g.edge(3, 4, "rel", "c")

	r := ratedPair(t, g, []NodeID{1, 2}, []NodeID{3, 4})

	// node sim 1/26, one outgoing edge pair scoring 1 (signature) * 1/3 (edge) * 1 (leaf)
	nodeSim := 1.0 / 26
	edge := 1.0 / 3
	want := 1 - (1-nodeSim)*(1-edge)
	assert.InDelta(t, want, r.Rate(0, 0), 1e-12)

	// identical edge attributes make the edge factor decisive
	g.edges[2] = kv("rel", "a")
	r = ratedPair(t, g, []NodeID{1, 2}, []NodeID{3, 4})
	assert.InDelta(t, 1.0, r.Rate(0, 0), 1e-12)
}

func TestRate_EdgesLeavingTheSetScoreZero(t *testing.T) {
	g := newMemGraph()
	g.node(1, "name", "a")
	g.node(2, "name", "leaf")
	g.node(3, "name", "z")
	g.node(4, "name", "leaf")
	g.edge(1, 2, "rel", "a")
	g.edge(3, 4, "rel", "a")

	// node 2 and node 4 are outside the candidate sets
	r := ratedPair(t, g, []NodeID{1}, []NodeID{3})
	assert.InDelta(t, 1.0/26, r.Rate(0, 0), 1e-12)
}

func TestRate_Anchor(t *testing.T) {
	g := newMemGraph()
	g.node(1, "name", "a")
	g.node(2, "name", "b")
	r := ratedPair(t, g, []NodeID{1}, []NodeID{2, 1})
	assert.Equal(t, 1.0, r.Rate(0, 1))
	assert.InDelta(t, 0.5, r.Rate(0, 0), 1e-12)
}

func TestRatingMatrix_WorkersAgree(t *testing.T) {
	g := anchoredPaths()
	r := ratedPair(t, g, []NodeID{1, 2, 3}, []NodeID{1, 5, 6})

	one, err := r.ratingMatrix(context.Background(), 1)
	require.NoError(t, err)
	many, err := r.ratingMatrix(context.Background(), 8)
	require.NoError(t, err)
	assert.True(t, mat.Equal(one, many))

	rows, cols := one.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := one.At(i, j)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestRatingMatrix_LogsAnchors(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	r := ratedPair(t, anchoredPaths(), []NodeID{1, 2, 3}, []NodeID{1, 5, 6})
	assert.Equal(t, []NodeID{1}, r.anchors())

	m, err := r.ratingMatrix(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.At(0, 0))
	assert.Contains(t, buf.String(), `msg="anchor point" node=1`)
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("anchor point")))
}
