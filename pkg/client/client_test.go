package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sanonone/kektormatch/internal/server"
	"github.com/sanonone/kektormatch/pkg/cluster"
	"github.com/sanonone/kektormatch/pkg/engine"
	"github.com/sanonone/kektormatch/pkg/match"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const token = "client-secret"

func newClient(t *testing.T) *Client {
	t.Helper()
	opts := engine.DefaultOptions(t.TempDir())
	opts.AutoSaveInterval = 0
	opts.MaintenanceInterval = time.Hour
	eng, err := engine.Open(opts)
	require.NoError(t, err)

	s, err := server.NewServer(eng, server.Options{
		AuthToken: token,
		Match:     match.DefaultOptions(),
		Cluster:   cluster.DefaultOptions(),
	})
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Shutdown()
		eng.Close()
	})
	return New(ts.URL, token)
}

func TestClientGraph(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	site, err := c.AddNode(ctx, 0, []string{"Site"}, map[string]string{"name": "hq"})
	require.NoError(t, err)
	room, err := c.AddNode(ctx, 0, []string{"Room"}, nil)
	require.NoError(t, err)
	edge, err := c.AddEdge(ctx, site, room, engine.RelHasChild, nil)
	require.NoError(t, err)

	n, err := c.PatchNode(ctx, room, map[string]string{"floor": "1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "1", n.Properties["floor"])

	ids, err := c.ListNodes(ctx, "Room")
	require.NoError(t, err)
	assert.Equal(t, []uint64{room}, ids)

	edges, err := c.Edges(ctx, site, engine.DirOut)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, edge, edges[0].ID)

	ids, err = c.Traverse(ctx, engine.GraphQuery{RootID: site})
	require.NoError(t, err)
	assert.Equal(t, []uint64{site, room}, ids)

	require.NoError(t, c.DeleteEdge(ctx, edge))
	require.NoError(t, c.DeleteNode(ctx, room))

	_, err = c.GetNode(ctx, room)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	require.NoError(t, c.AOFRewrite(ctx))
}

func TestClientUnauthorized(t *testing.T) {
	c := newClient(t)
	c.apiKey = "wrong"

	_, err := c.ListNodes(context.Background(), "")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

const script = `NODE 1 :Site name=hq
NODE 2 :Room name="server room"
NODE 3 :Rack name=rack
NODE 4 :Room name="server room"
NODE 5 :Rack name=rack
EDGE 1 2 "has child"
EDGE 2 3 "has child"
EDGE 1 4 "has child"
EDGE 4 5 "has child"
`

func TestClientMatch(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	stats, err := c.Import(ctx, "", strings.NewReader(script))
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Nodes)
	assert.Equal(t, 4, stats.Edges)

	res, err := c.Match(ctx, []uint64{1, 2, 3}, []uint64{1, 4, 5}, MatchOptions{})
	require.NoError(t, err)
	require.Len(t, res.Mappings, 1)
	assert.Equal(t, map[match.NodeID]match.NodeID{1: 1, 2: 4, 3: 5}, res.Mappings[0])
	assert.False(t, res.Swapped)

	strict := 1.0
	task, err := c.MatchAsync(ctx, []uint64{2, 3}, []uint64{4, 5}, MatchOptions{Threshold: &strict, Persist: true})
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, task.Wait(waitCtx, 20*time.Millisecond))
	assert.Equal(t, "match", task.Kind)

	async, err := task.MatchResult()
	require.NoError(t, err)
	assert.Empty(t, async.PersistError)

	n, err := c.GetNode(ctx, 4)
	require.NoError(t, err)
	_, persisted := n.Properties[match.PropSubgraphIndex]
	assert.Equal(t, len(async.Subgraphs) > 0, persisted)
}

func TestClientCluster(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	for _, kind := range []string{"rack", "rack", "pump", "pump"} {
		_, err := c.AddNode(ctx, 0, []string{"Asset"}, map[string]string{"kind": kind})
		require.NoError(t, err)
	}

	res, err := c.ClusterLabel(ctx, "Asset", 2, false)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3, 4}, res.NodeIDs)
	assert.Equal(t, 2, res.Clusters)
	assert.Equal(t, res.Assignments[0], res.Assignments[1])
	assert.NotEqual(t, res.Assignments[1], res.Assignments[2])

	_, err = c.Cluster(ctx, []uint64{1}, 2, false)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}
