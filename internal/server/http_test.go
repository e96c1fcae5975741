package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sanonone/kektormatch/pkg/cluster"
	"github.com/sanonone/kektormatch/pkg/engine"
	"github.com/sanonone/kektormatch/pkg/match"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, token string) (*httptest.Server, *Server) {
	t.Helper()
	opts := engine.DefaultOptions(t.TempDir())
	opts.AutoSaveInterval = 0
	opts.MaintenanceInterval = time.Hour
	eng, err := engine.Open(opts)
	require.NoError(t, err)

	s, err := NewServer(eng, Options{
		AuthToken: token,
		TaskTTL:   time.Hour,
		Match:     match.DefaultOptions(),
		Cluster:   cluster.DefaultOptions(),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.cancel()
		eng.Close()
	})
	return ts, s
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthzAndAuth(t *testing.T) {
	ts, _ := newTestServer(t, "test-secret-token")

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/graph/nodes")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/graph/nodes", nil)
	require.NoError(t, err)
	req.Header.Add("Authorization", "Bearer test-secret-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNodeAndEdgeEndpoints(t *testing.T) {
	ts, _ := newTestServer(t, "")

	var site, room IDResponse
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, ts.URL+"/graph/nodes",
		NodeCreateRequest{Labels: []string{"Site"}, Properties: map[string]string{"name": "hq"}}, &site))
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, ts.URL+"/graph/nodes",
		NodeCreateRequest{ID: 10, Labels: []string{"Room"}}, &room))
	assert.Equal(t, uint64(1), site.ID)
	assert.Equal(t, uint64(10), room.ID)

	var edge IDResponse
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, ts.URL+"/graph/edges",
		EdgeCreateRequest{Source: site.ID, Target: room.ID, Type: engine.RelHasChild}, &edge))

	var errBody map[string]string
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodPost, ts.URL+"/graph/edges",
		EdgeCreateRequest{Source: site.ID, Target: 99, Type: engine.RelHasChild}, &errBody))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, ts.URL+"/graph/edges",
		map[string]any{"source": 1, "target": 10}, &errBody))

	var n engine.Node
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPatch, ts.URL+"/graph/nodes/1",
		NodePatchRequest{Set: map[string]string{"floor": "2"}, Remove: []string{"name"}}, &n))
	assert.Equal(t, map[string]string{"floor": "2"}, n.Properties)

	var ids IDsResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/graph/nodes?label=Room", nil, &ids))
	assert.Equal(t, []uint64{10}, ids.IDs)

	var edges []engine.Edge
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/graph/nodes/10/edges?direction=in", nil, &edges))
	require.Len(t, edges, 1)
	assert.Equal(t, edge.ID, edges[0].ID)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, ts.URL+"/graph/nodes/10/edges?direction=up", nil, &errBody))

	assert.Equal(t, http.StatusNoContent, doJSON(t, http.MethodDelete, ts.URL+"/graph/nodes/10", nil, nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, ts.URL+"/graph/edges/1", nil, &errBody))
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, ts.URL+"/graph/nodes/10", nil, &errBody))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, ts.URL+"/graph/nodes/abc", nil, &errBody))
}

const twoRooms = `NODE 1 :Site name=hq
NODE 2 :Room name="server room"
NODE 3 :Rack name=rack
NODE 4 :Room name="server room"
NODE 5 :Rack name=rack
EDGE 1 2 "has child" kind=contains
EDGE 2 3 "has child" kind=contains
EDGE 1 4 "has child" kind=contains
EDGE 4 5 "has child" kind=contains
`

func importScript(t *testing.T, ts *httptest.Server, script string) ImportResponse {
	t.Helper()
	resp, err := http.Post(ts.URL+"/graph/import", "text/plain", strings.NewReader(script))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out ImportResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestImportAndTraverse(t *testing.T) {
	ts, _ := newTestServer(t, "")

	stats := importScript(t, ts, twoRooms)
	assert.Equal(t, ImportResponse{Nodes: 5, Edges: 4}, stats)

	var ids IDsResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/graph/traverse",
		engine.GraphQuery{RootID: 2, Relations: []string{engine.RelHasChild}}, &ids))
	assert.Equal(t, []uint64{2, 3}, ids.IDs)

	var errBody map[string]string
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, ts.URL+"/graph/traverse",
		engine.GraphQuery{RootID: 1, Direction: "sideways"}, &errBody))

	var path engine.PathResult
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/graph/path",
		engine.PathQuery{Source: 1, Target: 5}, &path))
	assert.Equal(t, []uint64{1, 4, 5}, path.Nodes)
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodPost, ts.URL+"/graph/path",
		engine.PathQuery{Source: 5, Target: 1}, &errBody))

	bad := importScript(t, ts, "NODE 6\nNODE x\n")
	assert.Equal(t, 1, bad.Nodes)
	assert.Contains(t, bad.Error, "line 2")

	csvBody := "Name,Parent,Description\nPump,Equipment,moves water\nEquipment,,root\n"
	resp, err := http.Post(ts.URL+"/graph/import?format=csv", "text/csv", strings.NewReader(csvBody))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out ImportResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ImportResponse{Nodes: 2, Edges: 1}, out)
}

func TestMatchEndpoint(t *testing.T) {
	ts, s := newTestServer(t, "")
	importScript(t, ts, twoRooms)

	req := MatchRequest{NodesA: []uint64{1, 2, 3}, NodesB: []uint64{1, 4, 5}, Persist: true}
	var out MatchResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/match", req, &out))
	require.Len(t, out.Mappings, 1)
	assert.Equal(t, map[match.NodeID]match.NodeID{1: 1, 2: 4, 3: 5}, out.Mappings[0])
	assert.Empty(t, out.PersistError)

	n, err := s.Engine.GetNode(3)
	require.NoError(t, err)
	assert.Equal(t, "5", n.Properties[match.PropMatchingNodeID])

	var errBody map[string]string
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, ts.URL+"/match",
		MatchRequest{NodesA: []uint64{1, 1}, NodesB: []uint64{4}}, &errBody))
	// unknown ids are invalid input, not a missing resource
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, ts.URL+"/match",
		MatchRequest{NodesA: []uint64{1}, NodesB: []uint64{42}}, &errBody))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, ts.URL+"/match",
		map[string]any{"nodes_a": []uint64{1}}, &errBody))
}

func TestAsyncMatchTask(t *testing.T) {
	ts, _ := newTestServer(t, "")
	importScript(t, ts, twoRooms)

	var accepted TaskResponse
	require.Equal(t, http.StatusAccepted, doJSON(t, http.MethodPost, ts.URL+"/match?async=true",
		MatchRequest{NodesA: []uint64{1, 2, 3}, NodesB: []uint64{1, 4, 5}}, &accepted))
	require.NotEmpty(t, accepted.TaskID)

	var task Task
	require.Eventually(t, func() bool {
		task = Task{}
		doJSON(t, http.MethodGet, ts.URL+"/tasks/"+accepted.TaskID, nil, &task)
		return task.Status == TaskStatusCompleted || task.Status == TaskStatusFailed
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, TaskStatusCompleted, task.Status)
	assert.Equal(t, "match", task.Kind)
	assert.NotNil(t, task.FinishedAt)

	var errBody map[string]string
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, ts.URL+"/tasks/nope", nil, &errBody))
}

func TestClusterEndpoints(t *testing.T) {
	ts, s := newTestServer(t, "")
	importScript(t, ts, `NODE 1 :Asset kind=rack zone=north
NODE 2 :Asset kind=rack zone=north
NODE 3 :Asset kind=pump zone=south
NODE 4 :Asset kind=pump zone=south
`)

	var out ClusterResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/cluster/label",
		ClusterLabelRequest{Label: "Asset", K: 2, Persist: true}, &out))
	require.Len(t, out.Assignments, 4)
	assert.Equal(t, []uint64{1, 2, 3, 4}, out.NodeIDs)
	assert.Equal(t, out.Assignments[0], out.Assignments[1])
	assert.Equal(t, out.Assignments[2], out.Assignments[3])
	assert.NotEqual(t, out.Assignments[0], out.Assignments[2])

	n, err := s.Engine.GetNode(1)
	require.NoError(t, err)
	assert.NotEmpty(t, n.Properties[cluster.PropClusterAssignment])

	var errBody map[string]string
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, ts.URL+"/cluster",
		ClusterRequest{NodeIDs: []uint64{1, 2}, K: 3}, &errBody))
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodPost, ts.URL+"/cluster/label",
		ClusterLabelRequest{Label: "Nothing", K: 1}, &errBody))
}

func TestAOFRewriteEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, "")
	importScript(t, ts, twoRooms)

	var out map[string]string
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, ts.URL+"/system/aof-rewrite", nil, &out))
	assert.Equal(t, "OK", out["status"])
}
