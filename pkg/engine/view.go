package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/sanonone/kektormatch/pkg/match"
)

// View is an immutable point-in-time copy of the graph. Writes to the engine
// after Snapshot returns are not visible through it.
type View struct {
	state *graphState
}

// Snapshot returns a consistent view of the current graph.
func (e *Engine) Snapshot() *View {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &View{state: e.state.clone()}
}

func (v *View) GetNode(id uint64) (*Node, error)        { return v.state.node(id) }
func (v *View) GetEdge(id uint64) (*Edge, error)        { return v.state.edge(id) }
func (v *View) Outgoing(id uint64) ([]Edge, error)      { return v.state.adjacent(id, true) }
func (v *View) Incoming(id uint64) ([]Edge, error)      { return v.state.adjacent(id, false) }
func (v *View) Nodes() []uint64                         { return v.state.nodeIDs() }
func (v *View) NodesByLabel(label string) []uint64      { return v.state.nodesByLabel(label) }
func (v *View) Traverse(q GraphQuery) ([]uint64, error) { return v.state.traverse(q) }
func (v *View) NodeCount() int                          { return v.state.nodes.Len() }

// The methods below make a View the graph reader of a matching run.

// NodeProperties implements match.GraphReader.
func (v *View) NodeProperties(_ context.Context, id match.NodeID) (map[string]string, error) {
	n, err := v.state.node(uint64(id))
	if err != nil {
		return nil, toMatchErr(err)
	}
	return n.Properties, nil
}

// OutgoingEdges implements match.GraphReader.
func (v *View) OutgoingEdges(_ context.Context, id match.NodeID) ([]match.EdgeRef, error) {
	edges, err := v.state.adjacent(uint64(id), true)
	if err != nil {
		return nil, toMatchErr(err)
	}
	return edgeRefs(edges, true), nil
}

// IncomingEdges implements match.GraphReader.
func (v *View) IncomingEdges(_ context.Context, id match.NodeID) ([]match.EdgeRef, error) {
	edges, err := v.state.adjacent(uint64(id), false)
	if err != nil {
		return nil, toMatchErr(err)
	}
	return edgeRefs(edges, false), nil
}

// EdgeProperties implements match.GraphReader.
func (v *View) EdgeProperties(_ context.Context, id match.EdgeID) (map[string]string, error) {
	ed, err := v.state.edge(uint64(id))
	if err != nil {
		return nil, err
	}
	return ed.Properties, nil
}

func edgeRefs(edges []Edge, out bool) []match.EdgeRef {
	refs := make([]match.EdgeRef, len(edges))
	for i, ed := range edges {
		other := ed.Source
		if out {
			other = ed.Target
		}
		refs[i] = match.EdgeRef{Edge: match.EdgeID(ed.ID), Other: match.NodeID(other)}
	}
	return refs
}

func toMatchErr(err error) error {
	if errors.Is(err, ErrNodeNotFound) {
		return fmt.Errorf("%w: %v", match.ErrNodeNotFound, err)
	}
	return err
}

// MatchStore adapts the engine to the matcher: reads go through one
// Snapshot per run and results are written back as node properties.
type MatchStore struct {
	e *Engine
}

// MatchStore returns the engine's matching adapter.
func (e *Engine) MatchStore() *MatchStore {
	return &MatchStore{e: e}
}

// Snapshot implements match.Snapshotter.
func (s *MatchStore) Snapshot(ctx context.Context) (match.GraphReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.e.Snapshot(), nil
}

// NodeProperties implements match.GraphReader against the live graph.
func (s *MatchStore) NodeProperties(_ context.Context, id match.NodeID) (map[string]string, error) {
	n, err := s.e.GetNode(uint64(id))
	if err != nil {
		return nil, toMatchErr(err)
	}
	return n.Properties, nil
}

// OutgoingEdges implements match.GraphReader against the live graph.
func (s *MatchStore) OutgoingEdges(_ context.Context, id match.NodeID) ([]match.EdgeRef, error) {
	edges, err := s.e.Outgoing(uint64(id))
	if err != nil {
		return nil, toMatchErr(err)
	}
	return edgeRefs(edges, true), nil
}

// IncomingEdges implements match.GraphReader against the live graph.
func (s *MatchStore) IncomingEdges(_ context.Context, id match.NodeID) ([]match.EdgeRef, error) {
	edges, err := s.e.Incoming(uint64(id))
	if err != nil {
		return nil, toMatchErr(err)
	}
	return edgeRefs(edges, false), nil
}

// EdgeProperties implements match.GraphReader against the live graph.
func (s *MatchStore) EdgeProperties(_ context.Context, id match.EdgeID) (map[string]string, error) {
	ed, err := s.e.GetEdge(uint64(id))
	if err != nil {
		return nil, err
	}
	return ed.Properties, nil
}

// SetNodeProperties implements match.ResultWriter.
func (s *MatchStore) SetNodeProperties(ctx context.Context, id match.NodeID, props map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.e.SetNodeProperties(uint64(id), props)
}

// RemoveNodeProperties implements match.ResultWriter.
func (s *MatchStore) RemoveNodeProperties(ctx context.Context, id match.NodeID, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.e.RemoveNodeProperties(uint64(id), keys...)
}
