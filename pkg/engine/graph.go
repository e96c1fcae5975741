package engine

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/sanonone/kektormatch/pkg/core"
	"github.com/tidwall/btree"
)

// Graph model in the KV store:
//
//	node:<id>  JSON Node
//	edge:<id>  JSON Edge
//	out:<id>   JSON []uint64 of outgoing edge ids, insertion order
//	in:<id>    JSON []uint64 of incoming edge ids, insertion order
//	seq:node   next node id
//	seq:edge   next edge id
//
// Only the KV entries are logged. The B-tree indexes are rebuilt from them on
// open and after replay.
const (
	prefixNode = "node:"
	prefixEdge = "edge:"
	prefixOut  = "out:"
	prefixIn   = "in:"
	keySeqNode = "seq:node"
	keySeqEdge = "seq:edge"
)

func nodeKey(id uint64) string { return prefixNode + strconv.FormatUint(id, 10) }
func edgeKey(id uint64) string { return prefixEdge + strconv.FormatUint(id, 10) }
func outKey(id uint64) string  { return prefixOut + strconv.FormatUint(id, 10) }
func inKey(id uint64) string   { return prefixIn + strconv.FormatUint(id, 10) }

// labelItem orders (label, node) pairs so a label scan is one range.
type labelItem struct {
	Label  string
	NodeID uint64
}

func labelItemLess(a, b labelItem) bool {
	if a.Label != b.Label {
		return a.Label < b.Label
	}
	return a.NodeID < b.NodeID
}

func uint64Less(a, b uint64) bool { return a < b }

// graphState is the read side of the graph: the KV records and the two
// ordered indexes. The live engine guards one with its RWMutex; a View owns
// a private copy.
type graphState struct {
	kv     *core.KVStore
	nodes  *btree.BTreeG[uint64]
	labels *btree.BTreeG[labelItem]
	edges  int
}

func newGraphState(kv *core.KVStore) *graphState {
	return &graphState{
		kv:     kv,
		nodes:  btree.NewBTreeG[uint64](uint64Less),
		labels: btree.NewBTreeG[labelItem](labelItemLess),
	}
}

// clone copies the state. The KV map is copied shallowly and the B-trees are
// copy-on-write, so the cost is one map copy.
func (g *graphState) clone() *graphState {
	return &graphState{
		kv:     g.kv.Clone(),
		nodes:  g.nodes.Copy(),
		labels: g.labels.Copy(),
		edges:  g.edges,
	}
}

// rebuildIndexes scans the KV records and repopulates the indexes.
func (g *graphState) rebuildIndexes() error {
	g.nodes = btree.NewBTreeG[uint64](uint64Less)
	g.labels = btree.NewBTreeG[labelItem](labelItemLess)
	g.edges = 0

	var decodeErr error
	g.kv.Range(prefixNode, func(p core.KVPair) bool {
		var n Node
		if err := json.Unmarshal(p.Value, &n); err != nil {
			decodeErr = fmt.Errorf("corrupt record %s: %w", p.Key, err)
			return false
		}
		g.indexNode(&n)
		return true
	})
	if decodeErr != nil {
		return decodeErr
	}
	g.kv.Range(prefixEdge, func(core.KVPair) bool {
		g.edges++
		return true
	})
	return nil
}

func (g *graphState) indexNode(n *Node) {
	g.nodes.Set(n.ID)
	for _, l := range n.Labels {
		g.labels.Set(labelItem{Label: l, NodeID: n.ID})
	}
}

func (g *graphState) unindexNode(n *Node) {
	g.nodes.Delete(n.ID)
	for _, l := range n.Labels {
		g.labels.Delete(labelItem{Label: l, NodeID: n.ID})
	}
}

func (g *graphState) node(id uint64) (*Node, error) {
	raw, ok := g.kv.Get(nodeKey(id))
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	var n Node
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("corrupt node %d: %w", id, err)
	}
	return &n, nil
}

func (g *graphState) edge(id uint64) (*Edge, error) {
	raw, ok := g.kv.Get(edgeKey(id))
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrEdgeNotFound, id)
	}
	var e Edge
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("corrupt edge %d: %w", id, err)
	}
	return &e, nil
}

func (g *graphState) edgeIDs(key string) ([]uint64, error) {
	raw, ok := g.kv.Get(key)
	if !ok {
		return nil, nil
	}
	var ids []uint64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("corrupt adjacency %s: %w", key, err)
	}
	return ids, nil
}

// adjacent returns the edges of node id in one direction, insertion order.
func (g *graphState) adjacent(id uint64, out bool) ([]Edge, error) {
	if _, ok := g.nodes.Get(id); !ok {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	key := inKey(id)
	if out {
		key = outKey(id)
	}
	ids, err := g.edgeIDs(key)
	if err != nil {
		return nil, err
	}
	edges := make([]Edge, 0, len(ids))
	for _, eid := range ids {
		e, err := g.edge(eid)
		if err != nil {
			return nil, err
		}
		edges = append(edges, *e)
	}
	return edges, nil
}

func (g *graphState) nodeIDs() []uint64 {
	ids := make([]uint64, 0, g.nodes.Len())
	g.nodes.Scan(func(id uint64) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

func (g *graphState) nodesByLabel(label string) []uint64 {
	var ids []uint64
	g.labels.Ascend(labelItem{Label: label}, func(it labelItem) bool {
		if it.Label != label {
			return false
		}
		ids = append(ids, it.NodeID)
		return true
	})
	return ids
}

func (g *graphState) seq(key string) uint64 {
	raw, ok := g.kv.Get(key)
	if !ok {
		return 1
	}
	n, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil || n == 0 {
		return 1
	}
	return n
}
