// This file implements the graph mutations and point reads of the Engine.
// Every mutation is written to the AOF before it is applied in memory.
package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync/atomic"

	"github.com/sanonone/kektormatch/pkg/persistence"
)

// --- Write helpers (caller holds e.mu) ---

func (e *Engine) writable() error {
	if e.isClosed.Load() {
		return ErrClosed
	}
	return nil
}

func (e *Engine) logSet(key string, value []byte) error {
	if err := e.AOF.Write(persistence.FormatCommand(cmdSet, []byte(key), value)); err != nil {
		return fmt.Errorf("persistence error (AOF write failed): %w", err)
	}
	e.state.kv.Set(key, value)
	return nil
}

func (e *Engine) logDel(key string) error {
	if err := e.AOF.Write(persistence.FormatCommand(cmdDel, []byte(key))); err != nil {
		return fmt.Errorf("persistence error (AOF write failed): %w", err)
	}
	e.state.kv.Delete(key)
	return nil
}

func (e *Engine) putJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return e.logSet(key, raw)
}

func (e *Engine) bumpSeq(key string, used uint64) error {
	if used < e.state.seq(key) {
		return nil
	}
	return e.logSet(key, []byte(strconv.FormatUint(used+1, 10)))
}

func (e *Engine) setEdgeIDs(key string, ids []uint64) error {
	if len(ids) == 0 {
		return e.logDel(key)
	}
	return e.putJSON(key, ids)
}

func (e *Engine) markDirty() {
	atomic.AddInt64(&e.dirtyCounter, 1)
	e.publishCounts()
}

func normalizeLabels(labels []string) []string {
	if len(labels) == 0 {
		return nil
	}
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l != "" && !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	return out
}

func copyProps(props map[string]string) map[string]string {
	if len(props) == 0 {
		return nil
	}
	out := make(map[string]string, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

// --- Nodes ---

// AddNode creates a node with the next free id and returns it.
func (e *Engine) AddNode(labels []string, props map[string]string) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.writable(); err != nil {
		return 0, err
	}

	id := e.state.seq(keySeqNode)
	n := &Node{ID: id, Labels: normalizeLabels(labels), Properties: copyProps(props)}
	if err := e.bumpSeq(keySeqNode, id); err != nil {
		return 0, err
	}
	if err := e.putJSON(nodeKey(id), n); err != nil {
		return 0, err
	}
	e.state.indexNode(n)
	e.markDirty()
	return id, nil
}

// PutNode creates or fully replaces the node with n.ID. Existing edges are
// kept. Ids above the sequence advance it, so later AddNode calls never
// collide with imported ids.
func (e *Engine) PutNode(n Node) error {
	if n.ID == 0 {
		return errors.New("node id must be positive")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.writable(); err != nil {
		return err
	}

	if old, err := e.state.node(n.ID); err == nil {
		e.state.unindexNode(old)
	}
	n.Labels = normalizeLabels(n.Labels)
	n.Properties = copyProps(n.Properties)
	if err := e.bumpSeq(keySeqNode, n.ID); err != nil {
		return err
	}
	if err := e.putJSON(nodeKey(n.ID), &n); err != nil {
		return err
	}
	e.state.indexNode(&n)
	e.markDirty()
	return nil
}

// GetNode returns a copy of the node.
func (e *Engine) GetNode(id uint64) (*Node, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.node(id)
}

// DeleteNode removes the node and every edge touching it.
func (e *Engine) DeleteNode(id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.writable(); err != nil {
		return err
	}

	n, err := e.state.node(id)
	if err != nil {
		return err
	}
	for _, key := range []string{outKey(id), inKey(id)} {
		ids, err := e.state.edgeIDs(key)
		if err != nil {
			return err
		}
		for _, eid := range ids {
			edge, err := e.state.edge(eid)
			if errors.Is(err, ErrEdgeNotFound) {
				// self loops appear in both lists
				continue
			}
			if err != nil {
				return err
			}
			if err := e.deleteEdgeLocked(edge); err != nil {
				return err
			}
		}
	}
	if err := e.logDel(nodeKey(id)); err != nil {
		return err
	}
	e.state.unindexNode(n)
	e.markDirty()
	return nil
}

// SetNodeProperties merges props into the node's properties.
func (e *Engine) SetNodeProperties(id uint64, props map[string]string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.writable(); err != nil {
		return err
	}

	n, err := e.state.node(id)
	if err != nil {
		return err
	}
	if n.Properties == nil {
		n.Properties = make(map[string]string, len(props))
	}
	for k, v := range props {
		n.Properties[k] = v
	}
	if err := e.putJSON(nodeKey(id), n); err != nil {
		return err
	}
	e.markDirty()
	return nil
}

// RemoveNodeProperties deletes the given keys. Absent keys are ignored and
// cause no write.
func (e *Engine) RemoveNodeProperties(id uint64, keys ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.writable(); err != nil {
		return err
	}

	n, err := e.state.node(id)
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := n.Properties[k]; ok {
			delete(n.Properties, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	if err := e.putJSON(nodeKey(id), n); err != nil {
		return err
	}
	e.markDirty()
	return nil
}

// Nodes returns every node id in ascending order.
func (e *Engine) Nodes() []uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.nodeIDs()
}

// NodesByLabel returns the ids of nodes carrying label, ascending.
func (e *Engine) NodesByLabel(label string) []uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.nodesByLabel(label)
}

// NodeCount returns the number of nodes.
func (e *Engine) NodeCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.nodes.Len()
}

// EdgeCount returns the number of edges.
func (e *Engine) EdgeCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.edges
}

// --- Edges ---

// AddEdge creates a directed edge src -> dst of the given relation type.
// Parallel edges are allowed.
func (e *Engine) AddEdge(src, dst uint64, relType string, props map[string]string) (uint64, error) {
	if relType == "" {
		return 0, errors.New("edge type must not be empty")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.writable(); err != nil {
		return 0, err
	}

	for _, id := range []uint64{src, dst} {
		if _, ok := e.state.nodes.Get(id); !ok {
			return 0, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
		}
	}

	id := e.state.seq(keySeqEdge)
	edge := &Edge{ID: id, Source: src, Target: dst, Type: relType, Properties: copyProps(props)}

	outIDs, err := e.state.edgeIDs(outKey(src))
	if err != nil {
		return 0, err
	}
	inIDs, err := e.state.edgeIDs(inKey(dst))
	if err != nil {
		return 0, err
	}

	if err := e.bumpSeq(keySeqEdge, id); err != nil {
		return 0, err
	}
	if err := e.putJSON(edgeKey(id), edge); err != nil {
		return 0, err
	}
	if err := e.setEdgeIDs(outKey(src), append(outIDs, id)); err != nil {
		return 0, err
	}
	if err := e.setEdgeIDs(inKey(dst), append(inIDs, id)); err != nil {
		return 0, err
	}
	e.state.edges++
	e.markDirty()
	return id, nil
}

// GetEdge returns a copy of the edge.
func (e *Engine) GetEdge(id uint64) (*Edge, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.edge(id)
}

// DeleteEdge removes one edge.
func (e *Engine) DeleteEdge(id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.writable(); err != nil {
		return err
	}

	edge, err := e.state.edge(id)
	if err != nil {
		return err
	}
	if err := e.deleteEdgeLocked(edge); err != nil {
		return err
	}
	e.markDirty()
	return nil
}

func (e *Engine) deleteEdgeLocked(edge *Edge) error {
	outIDs, err := e.state.edgeIDs(outKey(edge.Source))
	if err != nil {
		return err
	}
	if err := e.setEdgeIDs(outKey(edge.Source), slices.DeleteFunc(outIDs, func(x uint64) bool { return x == edge.ID })); err != nil {
		return err
	}
	inIDs, err := e.state.edgeIDs(inKey(edge.Target))
	if err != nil {
		return err
	}
	if err := e.setEdgeIDs(inKey(edge.Target), slices.DeleteFunc(inIDs, func(x uint64) bool { return x == edge.ID })); err != nil {
		return err
	}
	if err := e.logDel(edgeKey(edge.ID)); err != nil {
		return err
	}
	e.state.edges--
	return nil
}

// Outgoing returns the edges leaving node id, in creation order.
func (e *Engine) Outgoing(id uint64) ([]Edge, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.adjacent(id, true)
}

// Incoming returns the edges entering node id, in creation order.
func (e *Engine) Incoming(id uint64) ([]Edge, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.adjacent(id, false)
}
