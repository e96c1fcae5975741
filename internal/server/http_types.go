package server

import (
	"github.com/sanonone/kektormatch/pkg/cluster"
	"github.com/sanonone/kektormatch/pkg/match"
)

// NodeCreateRequest creates a node. A non-zero ID creates or replaces that
// node; zero assigns the next free id.
type NodeCreateRequest struct {
	ID         uint64            `json:"id,omitempty"`
	Labels     []string          `json:"labels,omitempty" validate:"dive,required"`
	Properties map[string]string `json:"properties,omitempty"`
}

// NodePatchRequest merges Set into the node's properties and removes Remove.
type NodePatchRequest struct {
	Set    map[string]string `json:"set,omitempty"`
	Remove []string          `json:"remove,omitempty"`
}

type EdgeCreateRequest struct {
	Source     uint64            `json:"source" validate:"required"`
	Target     uint64            `json:"target" validate:"required"`
	Type       string            `json:"type" validate:"required"`
	Properties map[string]string `json:"properties,omitempty"`
}

// IDResponse returns the id of a created entity.
type IDResponse struct {
	ID uint64 `json:"id"`
}

// IDsResponse lists node ids.
type IDsResponse struct {
	IDs []uint64 `json:"ids"`
}

// MatchRequest compares the subgraphs induced by NodesA and NodesB.
type MatchRequest struct {
	NodesA    []uint64 `json:"nodes_a" validate:"required,min=1"`
	NodesB    []uint64 `json:"nodes_b" validate:"required,min=1"`
	Persist   bool     `json:"persist,omitempty"`
	Threshold *float64 `json:"threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// MatchResponse carries the raw result plus one dictionary per subgraph,
// oriented from nodes_a to nodes_b.
type MatchResponse struct {
	*match.Result
	Mappings     []map[match.NodeID]match.NodeID `json:"mappings"`
	PersistError string                          `json:"persist_error,omitempty"`
}

type ClusterRequest struct {
	NodeIDs []uint64 `json:"node_ids" validate:"required,min=1"`
	K       int      `json:"k" validate:"required,min=1"`
	Persist bool     `json:"persist,omitempty"`
}

// ClusterLabelRequest clusters every node carrying Label.
type ClusterLabelRequest struct {
	Label   string `json:"label" validate:"required"`
	K       int    `json:"k" validate:"required,min=1"`
	Persist bool   `json:"persist,omitempty"`
}

type ClusterResponse struct {
	*cluster.Result
	NodeIDs      []uint64 `json:"node_ids"`
	PersistError string   `json:"persist_error,omitempty"`
}

// TaskResponse is returned by async requests.
type TaskResponse struct {
	TaskID string `json:"task_id"`
}

// ImportResponse reports what an import created.
type ImportResponse struct {
	Nodes int    `json:"nodes"`
	Edges int    `json:"edges"`
	Error string `json:"error,omitempty"`
}
