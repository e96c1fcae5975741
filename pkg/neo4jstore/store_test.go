package neo4jstore

import (
	"context"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sanonone/kektormatch/pkg/match"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotReader(t *testing.T) {
	snap := newSnapshot(
		[]nodeRow{
			{id: 1, props: map[string]string{"name": "site"}},
			{id: 2, props: map[string]string{"name": "room"}},
		},
		[]edgeRow{{src: 1, dst: 2, id: 10, props: map[string]string{"kind": "contains"}}},
		[]edgeRow{
			{src: 1, dst: 2, id: 10, props: map[string]string{"kind": "contains"}},
			{src: 7, dst: 1, id: 11, props: map[string]string{}},
		},
	)
	ctx := context.Background()

	var r match.GraphReader = snap
	props, err := r.NodeProperties(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "site", props["name"])

	out, err := r.OutgoingEdges(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []match.EdgeRef{{Edge: 10, Other: 2}}, out)

	in, err := r.IncomingEdges(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []match.EdgeRef{{Edge: 11, Other: 7}}, in)

	in, err = r.IncomingEdges(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []match.EdgeRef{{Edge: 10, Other: 1}}, in)

	ep, err := r.EdgeProperties(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "contains", ep["kind"])

	_, err = r.NodeProperties(ctx, 3)
	assert.ErrorIs(t, err, match.ErrNodeNotFound)
	_, err = r.OutgoingEdges(ctx, 3)
	assert.ErrorIs(t, err, match.ErrNodeNotFound)
	_, err = r.EdgeProperties(ctx, 99)
	assert.Error(t, err)
}

func TestRecordConversion(t *testing.T) {
	rec := &neo4j.Record{
		Keys:   []string{"id", "props"},
		Values: []any{int64(5), map[string]any{"name": "rack", "units": int64(42), "active": true, "gone": nil}},
	}
	row, err := toNodeRow(rec)
	require.NoError(t, err)
	assert.Equal(t, match.NodeID(5), row.id)
	assert.Equal(t, map[string]string{"name": "rack", "units": "42", "active": "true"}, row.props)

	edges, err := toEdgeRows([]*neo4j.Record{{
		Keys:   []string{"src", "rel", "dst", "props"},
		Values: []any{int64(1), int64(9), int64(2), nil},
	}})
	require.NoError(t, err)
	assert.Equal(t, []edgeRow{{src: 1, dst: 2, id: 9, props: map[string]string{}}}, edges)

	_, err = toNodeRow(&neo4j.Record{Keys: []string{"id"}, Values: []any{"x"}})
	assert.Error(t, err)
	_, err = toNodeRow(&neo4j.Record{Keys: []string{"id"}, Values: []any{int64(1)}})
	assert.Error(t, err)
}

func TestRemoveQuery(t *testing.T) {
	assert.Equal(t,
		"MATCH (n) WHERE id(n) = $id REMOVE n.`subgraph_index`, n.`odd``key` RETURN id(n)",
		removeQuery([]string{"subgraph_index", "odd`key"}))
}

func TestBatchQueries(t *testing.T) {
	assert.Equal(t,
		"UNWIND $ids AS nid MATCH (n) WHERE id(n) = nid REMOVE n.`subgraph_index`, n.`matching_node_id`",
		batchRemoveQuery([]string{match.PropSubgraphIndex, match.PropMatchingNodeID}))
	assert.Contains(t, batchSetQuery, "UNWIND $rows AS row")
	assert.Contains(t, batchSetQuery, "SET n += row.props")
}

var _ match.BatchWriter = (*Store)(nil)

func TestClosedStore(t *testing.T) {
	s := &Store{}
	_, err := s.Load(context.Background(), []match.NodeID{1})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, s.SetNodeProperties(context.Background(), 1, nil), ErrNotConnected)
	assert.ErrorIs(t, s.ReplaceNodeProperties(context.Background(), []match.NodeID{1}, []string{match.PropSubgraphIndex}, nil), ErrNotConnected)
	assert.NoError(t, s.Close(context.Background()))
}
