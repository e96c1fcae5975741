package match

import (
	"context"
	"errors"
	"fmt"
)

// memGraph is a minimal in-memory GraphReader and ResultWriter for tests.
type memGraph struct {
	nodes    map[NodeID]map[string]string
	edges    map[EdgeID]map[string]string
	out, in  map[NodeID][]EdgeRef
	nextEdge EdgeID

	failReads  error
	failWrites error
	writes     int
}

func newMemGraph() *memGraph {
	return &memGraph{
		nodes: make(map[NodeID]map[string]string),
		edges: make(map[EdgeID]map[string]string),
		out:   make(map[NodeID][]EdgeRef),
		in:    make(map[NodeID][]EdgeRef),
	}
}

func kv(pairs ...string) map[string]string {
	m := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		m[pairs[i]] = pairs[i+1]
	}
	return m
}

func (g *memGraph) node(id NodeID, pairs ...string) {
	g.nodes[id] = kv(pairs...)
}

func (g *memGraph) edge(from, to NodeID, pairs ...string) EdgeID {
	g.nextEdge++
	id := g.nextEdge
	g.edges[id] = kv(pairs...)
	g.out[from] = append(g.out[from], EdgeRef{Edge: id, Other: to})
	g.in[to] = append(g.in[to], EdgeRef{Edge: id, Other: from})
	return id
}

func (g *memGraph) NodeProperties(_ context.Context, id NodeID) (map[string]string, error) {
	if g.failReads != nil {
		return nil, g.failReads
	}
	p, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %d: %w", id, ErrNodeNotFound)
	}
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out, nil
}

func (g *memGraph) OutgoingEdges(_ context.Context, id NodeID) ([]EdgeRef, error) {
	return g.out[id], nil
}

func (g *memGraph) IncomingEdges(_ context.Context, id NodeID) ([]EdgeRef, error) {
	return g.in[id], nil
}

func (g *memGraph) EdgeProperties(_ context.Context, id EdgeID) (map[string]string, error) {
	p, ok := g.edges[id]
	if !ok {
		return nil, errors.New("edge vanished")
	}
	return p, nil
}

func (g *memGraph) SetNodeProperties(_ context.Context, id NodeID, props map[string]string) error {
	if g.failWrites != nil {
		return g.failWrites
	}
	g.writes++
	for k, v := range props {
		g.nodes[id][k] = v
	}
	return nil
}

func (g *memGraph) RemoveNodeProperties(_ context.Context, id NodeID, keys ...string) error {
	if g.failWrites != nil {
		return g.failWrites
	}
	for _, k := range keys {
		delete(g.nodes[id], k)
	}
	return nil
}

// batchGraph takes persisted results through ReplaceNodeProperties and
// records each call.
type batchGraph struct {
	*memGraph
	batches int
	stale   []NodeID
	keys    []string
	set     map[NodeID]map[string]string
	fail    error
}

func (b *batchGraph) ReplaceNodeProperties(_ context.Context, stale []NodeID, keys []string, set map[NodeID]map[string]string) error {
	if b.fail != nil {
		return b.fail
	}
	b.batches++
	b.stale, b.keys, b.set = stale, keys, set
	return nil
}

// anchoredPaths builds 1->2->3 and 1->5->6 sharing node 1, with 2~5 and 3~6
// carrying identical attributes.
func anchoredPaths() *memGraph {
	g := newMemGraph()
	g.node(1, "name", "alpha")
	g.node(2, "name", "beta")
	g.node(3, "name", "gamma")
	g.node(5, "name", "beta")
	g.node(6, "name", "gamma")
	g.edge(1, 2)
	g.edge(2, 3)
	g.edge(1, 5)
	g.edge(5, 6)
	return g
}
