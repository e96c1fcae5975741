package cluster

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sanonone/kektormatch/pkg/match"
	"github.com/sanonone/kektormatch/pkg/textanalyzer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	props      map[match.NodeID]map[string]string
	writes     map[match.NodeID]map[string]string
	failWrites bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		props:  map[match.NodeID]map[string]string{},
		writes: map[match.NodeID]map[string]string{},
	}
}

func (f *fakeStore) NodeProperties(_ context.Context, id match.NodeID) (map[string]string, error) {
	p, ok := f.props[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", match.ErrNodeNotFound, id)
	}
	return p, nil
}

func (f *fakeStore) SetNodeProperties(_ context.Context, id match.NodeID, props map[string]string) error {
	if f.failWrites {
		return errors.New("disk full")
	}
	f.writes[id] = props
	return nil
}

// twoGroups stores ids 1-3 as north racks and 4-6 as south pumps.
func twoGroups() (*fakeStore, []match.NodeID) {
	f := newFakeStore()
	var ids []match.NodeID
	for i := 1; i <= 6; i++ {
		id := match.NodeID(i)
		kind, zone := "rack", "north"
		if i > 3 {
			kind, zone = "Pump", "south"
		}
		f.props[id] = map[string]string{"name": fmt.Sprintf("n%d", i), "kind": kind, "zone": zone}
		ids = append(ids, id)
	}
	return f, ids
}

func TestExtract(t *testing.T) {
	props := []map[string]string{
		{"name": "a", "type": "Chiller", "desc": "cold water chiller"},
		{"name": "b", "type": "chiller", "desc": "chilled water plant"},
		{"name": "c", "type": "Pump", "desc": "water pump"},
		{"name": "d", "desc": "hot water pump", match.PropSubgraphIndex: "1"},
	}

	fs := Extract(props, textanalyzer.NewEnglishAnalyzer(), match.PropSubgraphIndex)
	assert.Equal(t, []string{
		"type=chiller", "type=none", "type=pump",
		"word:chill", "word:chiller", "word:cold", "word:hot", "word:plant", "word:pump",
	}, fs.Columns)

	rows, cols := fs.Data.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 9, cols)
	assert.Equal(t, []float64{1, 1, 0, 0}, colOf(fs, 0))
	assert.Equal(t, []float64{0, 0, 1, 1}, colOf(fs, 8))
}

func colOf(fs *FeatureSet, j int) []float64 {
	rows, _ := fs.Data.Dims()
	out := make([]float64, rows)
	for i := range out {
		out[i] = fs.Data.At(i, j)
	}
	return out
}

func TestExtractNoUsefulColumns(t *testing.T) {
	props := []map[string]string{{"kind": "rack"}, {"kind": "rack"}}
	fs := Extract(props, textanalyzer.NewEnglishAnalyzer())
	assert.Empty(t, fs.Columns)
	assert.Nil(t, fs.Data)
}

func TestClusterSeparatesGroups(t *testing.T) {
	f, ids := twoGroups()
	c, err := New(f, f, DefaultOptions())
	require.NoError(t, err)

	res, err := c.Cluster(context.Background(), Request{IDs: ids, K: 2})
	require.NoError(t, err)
	require.Len(t, res.Assignments, 6)
	a := res.Assignments
	assert.Equal(t, a[0], a[1])
	assert.Equal(t, a[0], a[2])
	assert.Equal(t, a[3], a[4])
	assert.Equal(t, a[3], a[5])
	assert.NotEqual(t, a[0], a[3])
	assert.Equal(t, 2, res.Clusters)
	assert.NotContains(t, res.Features, "name=n1")

	again, err := c.Cluster(context.Background(), Request{IDs: ids, K: 2})
	require.NoError(t, err)
	assert.Equal(t, res.Assignments, again.Assignments)

	// only two distinct rows exist
	res, err = c.Cluster(context.Background(), Request{IDs: ids, K: 3})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Clusters)

	assert.Empty(t, f.writes)
}

func TestClusterIdenticalNodes(t *testing.T) {
	f := newFakeStore()
	f.props[1] = map[string]string{"kind": "rack"}
	f.props[2] = map[string]string{"kind": "rack"}
	c, err := New(f, nil, Options{})
	require.NoError(t, err)

	res, err := c.Cluster(context.Background(), Request{IDs: []match.NodeID{1, 2}, K: 2})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0}, res.Assignments)
	assert.Equal(t, 1, res.Clusters)
}

func TestClusterInvalidInput(t *testing.T) {
	f, ids := twoGroups()
	c, err := New(f, nil, DefaultOptions())
	require.NoError(t, err)
	ctx := context.Background()

	cases := []Request{
		{},
		{IDs: ids, K: 0},
		{IDs: ids, K: 7},
		{IDs: []match.NodeID{1, 1}, K: 1},
		{IDs: []match.NodeID{1, 99}, K: 1},
		{IDs: ids, K: 2, Persist: true},
	}
	for _, req := range cases {
		res, err := c.Cluster(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidInput, "%+v", req)
		assert.Nil(t, res)
	}
}

func TestClusterPersist(t *testing.T) {
	f, ids := twoGroups()
	c, err := New(f, f, DefaultOptions())
	require.NoError(t, err)

	res, err := c.Cluster(context.Background(), Request{IDs: ids, K: 2, Persist: true})
	require.NoError(t, err)
	require.Len(t, f.writes, 6)
	for i, id := range ids {
		assert.Equal(t, fmt.Sprint(res.Assignments[i]), f.writes[id][PropClusterAssignment])
	}

	f.failWrites = true
	res, err = c.Cluster(context.Background(), Request{IDs: ids, K: 2, Persist: true})
	assert.ErrorIs(t, err, ErrPersist)
	require.NotNil(t, res)
	assert.Len(t, res.Assignments, 6)
}

func TestClusterCanceled(t *testing.T) {
	f, ids := twoGroups()
	c, err := New(f, nil, DefaultOptions())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.Cluster(ctx, Request{IDs: ids, K: 2})
	assert.ErrorIs(t, err, context.Canceled)
}
