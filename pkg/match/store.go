package match

import "context"

// GraphReader is the read capability the matcher consumes. All calls made
// during one run must observe the same point-in-time state of the graph.
//
// Implementations return an error wrapping ErrNodeNotFound for unknown node
// ids; any other error is treated as a snapshot failure.
type GraphReader interface {
	NodeProperties(ctx context.Context, id NodeID) (map[string]string, error)
	OutgoingEdges(ctx context.Context, id NodeID) ([]EdgeRef, error)
	IncomingEdges(ctx context.Context, id NodeID) ([]EdgeRef, error)
	EdgeProperties(ctx context.Context, id EdgeID) (map[string]string, error)
}

// Snapshotter hands out consistent read views. Stores that implement it get
// one snapshot per matching run; plain GraphReaders are used as-is.
type Snapshotter interface {
	Snapshot(ctx context.Context) (GraphReader, error)
}

// ResultWriter persists matching assignments as node properties.
type ResultWriter interface {
	SetNodeProperties(ctx context.Context, id NodeID, props map[string]string) error
	RemoveNodeProperties(ctx context.Context, id NodeID, keys ...string) error
}

// BatchWriter is an optional ResultWriter extension for stores that can
// apply a whole result at once. Every node in stale loses keys, then every
// node in set receives its properties.
type BatchWriter interface {
	ReplaceNodeProperties(ctx context.Context, stale []NodeID, keys []string, set map[NodeID]map[string]string) error
}

// Property names written on both nodes of every matched pair.
const (
	PropSubgraphIndex  = "subgraph_index"
	PropMatchingNodeID = "matching_node_id"
)

// PropClusterAssignment is written by the clusterer. It is declared here so
// the matcher can ignore it.
const PropClusterAssignment = "cluster_assignment"

// resultProperties are written back by persisted runs and never take part
// in similarity.
var resultProperties = []string{PropSubgraphIndex, PropMatchingNodeID, PropClusterAssignment}

// attributes returns props without the result properties. props is returned
// unchanged when it carries none of them.
func attributes(props map[string]string) map[string]string {
	strip := false
	for _, k := range resultProperties {
		if _, ok := props[k]; ok {
			strip = true
			break
		}
	}
	if !strip {
		return props
	}
	out := make(map[string]string, len(props))
	for k, v := range props {
		out[k] = v
	}
	for _, k := range resultProperties {
		delete(out, k)
	}
	return out
}
