package engine

import "errors"

// Node is a vertex of the property graph. Property values are strings; the
// matcher compares them as such.
type Node struct {
	ID         uint64            `json:"id"`
	Labels     []string          `json:"labels,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// HasLabel reports whether the node carries label.
func (n *Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Edge is a directed, typed relationship with its own properties.
type Edge struct {
	ID         uint64            `json:"id"`
	Source     uint64            `json:"source"`
	Target     uint64            `json:"target"`
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Traversal directions for GraphQuery.
const (
	DirOut  = "out"
	DirIn   = "in"
	DirBoth = "both"
)

// Relation names used by the bundled importers.
const (
	RelHasChild      = "has child"
	RelSubcategoryOf = "subcategory of"
)

// GraphQuery selects nodes reachable from a root.
type GraphQuery struct {
	RootID uint64 `json:"root_id"`

	// Relations restricts which edge types are followed. Empty follows all.
	Relations []string `json:"relations,omitempty"`

	// Direction is "out" (default), "in" or "both".
	Direction string `json:"direction,omitempty" validate:"omitempty,oneof=out in both"`

	// MaxDepth limits hops from the root. 0 means unlimited.
	MaxDepth int `json:"max_depth,omitempty" validate:"gte=0"`

	// Label keeps only nodes carrying it in the result. The walk itself still
	// passes through other nodes. The root is always returned.
	Label string `json:"label,omitempty"`
}

var (
	ErrNodeNotFound = errors.New("node not found")
	ErrEdgeNotFound = errors.New("edge not found")
	ErrClosed       = errors.New("engine is closed")
	ErrInvalidQuery = errors.New("invalid graph query")
)
