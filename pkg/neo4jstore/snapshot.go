package neo4jstore

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sanonone/kektormatch/pkg/match"
)

type nodeRow struct {
	id    match.NodeID
	props map[string]string
}

type edgeRow struct {
	src, dst match.NodeID
	id       match.EdgeID
	props    map[string]string
}

// Snapshot is an in-memory copy of the loaded nodes and their adjacency.
// It implements match.GraphReader and never touches the database.
type Snapshot struct {
	props     map[match.NodeID]map[string]string
	out       map[match.NodeID][]match.EdgeRef
	in        map[match.NodeID][]match.EdgeRef
	edgeProps map[match.EdgeID]map[string]string
}

func newSnapshot(nodes []nodeRow, out, in []edgeRow) *Snapshot {
	s := &Snapshot{
		props:     make(map[match.NodeID]map[string]string, len(nodes)),
		out:       make(map[match.NodeID][]match.EdgeRef),
		in:        make(map[match.NodeID][]match.EdgeRef),
		edgeProps: make(map[match.EdgeID]map[string]string, len(out)+len(in)),
	}
	for _, n := range nodes {
		s.props[n.id] = n.props
	}
	for _, e := range out {
		s.out[e.src] = append(s.out[e.src], match.EdgeRef{Edge: e.id, Other: e.dst})
		s.edgeProps[e.id] = e.props
	}
	for _, e := range in {
		s.in[e.dst] = append(s.in[e.dst], match.EdgeRef{Edge: e.id, Other: e.src})
		s.edgeProps[e.id] = e.props
	}
	return s
}

func (s *Snapshot) known(id match.NodeID) error {
	if _, ok := s.props[id]; !ok {
		return fmt.Errorf("%w: %d", match.ErrNodeNotFound, id)
	}
	return nil
}

// NodeProperties implements match.GraphReader.
func (s *Snapshot) NodeProperties(_ context.Context, id match.NodeID) (map[string]string, error) {
	if err := s.known(id); err != nil {
		return nil, err
	}
	return s.props[id], nil
}

// OutgoingEdges implements match.GraphReader.
func (s *Snapshot) OutgoingEdges(_ context.Context, id match.NodeID) ([]match.EdgeRef, error) {
	if err := s.known(id); err != nil {
		return nil, err
	}
	return s.out[id], nil
}

// IncomingEdges implements match.GraphReader.
func (s *Snapshot) IncomingEdges(_ context.Context, id match.NodeID) ([]match.EdgeRef, error) {
	if err := s.known(id); err != nil {
		return nil, err
	}
	return s.in[id], nil
}

// EdgeProperties implements match.GraphReader.
func (s *Snapshot) EdgeProperties(_ context.Context, id match.EdgeID) (map[string]string, error) {
	p, ok := s.edgeProps[id]
	if !ok {
		return nil, fmt.Errorf("relationship %d not loaded", id)
	}
	return p, nil
}

func toNodeRow(rec *neo4j.Record) (nodeRow, error) {
	id, err := int64Field(rec, "id")
	if err != nil {
		return nodeRow{}, err
	}
	props, err := propsField(rec, "props")
	if err != nil {
		return nodeRow{}, err
	}
	return nodeRow{id: match.NodeID(id), props: props}, nil
}

func toEdgeRows(recs []*neo4j.Record) ([]edgeRow, error) {
	rows := make([]edgeRow, 0, len(recs))
	for _, rec := range recs {
		src, err := int64Field(rec, "src")
		if err != nil {
			return nil, err
		}
		rel, err := int64Field(rec, "rel")
		if err != nil {
			return nil, err
		}
		dst, err := int64Field(rec, "dst")
		if err != nil {
			return nil, err
		}
		props, err := propsField(rec, "props")
		if err != nil {
			return nil, err
		}
		rows = append(rows, edgeRow{src: match.NodeID(src), dst: match.NodeID(dst), id: match.EdgeID(rel), props: props})
	}
	return rows, nil
}

func int64Field(rec *neo4j.Record, key string) (int64, error) {
	v, ok := rec.Get(key)
	if !ok {
		return 0, fmt.Errorf("record has no %q", key)
	}
	n, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("field %q: unexpected type %T", key, v)
	}
	return n, nil
}

func propsField(rec *neo4j.Record, key string) (map[string]string, error) {
	v, ok := rec.Get(key)
	if !ok {
		return nil, fmt.Errorf("record has no %q", key)
	}
	if v == nil {
		return map[string]string{}, nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("field %q: unexpected type %T", key, v)
	}
	return stringify(raw), nil
}

// stringify renders property values as text; the matcher compares strings.
func stringify(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case string:
			out[k] = t
		case nil:
			continue
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}
