package mcp

// --- Tool Arguments ---

type MatchArgs struct {
	NodesA    []uint64 `json:"nodes_a" jsonschema:"Node ids of the first subgraph"`
	NodesB    []uint64 `json:"nodes_b" jsonschema:"Node ids of the second subgraph"`
	Persist   bool     `json:"persist,omitempty" jsonschema:"If true, store subgraph_index and matching_node_id on the matched nodes"`
	Threshold *float64 `json:"threshold,omitempty" jsonschema:"Minimum similarity (0.0-1.0) a pair needs to be matched. Defaults to the server setting"`
}

// MatchedPair is one correspondence, oriented from nodes_a to nodes_b.
type MatchedPair struct {
	A      uint64  `json:"a"`
	B      uint64  `json:"b"`
	Rating float64 `json:"rating"`
}

type MatchedSubgraph struct {
	Index int           `json:"index"`
	Pairs []MatchedPair `json:"pairs"`
}

type MatchResult struct {
	Subgraphs    []MatchedSubgraph `json:"subgraphs"`
	Summary      string            `json:"summary"`
	PersistError string            `json:"persist_error,omitempty"`
}

type ClusterArgs struct {
	NodeIDs []uint64 `json:"node_ids,omitempty" jsonschema:"Node ids to cluster. Either node_ids or label is needed"`
	Label   string   `json:"label,omitempty" jsonschema:"Cluster every node carrying this label"`
	K       int      `json:"k" jsonschema:"Number of clusters"`
	Persist bool     `json:"persist,omitempty" jsonschema:"If true, store cluster_assignment on every node"`
}

type ClusterGroup struct {
	Cluster int      `json:"cluster"`
	NodeIDs []uint64 `json:"node_ids"`
}

type ClusterResult struct {
	Groups       []ClusterGroup `json:"groups"`
	Features     []string       `json:"features"`
	PersistError string         `json:"persist_error,omitempty"`
}

type SubtreeArgs struct {
	RootID    uint64   `json:"root_id" jsonschema:"Node to start from"`
	Relations []string `json:"relations,omitempty" jsonschema:"Relation types to follow. Defaults to 'has child'"`
	Direction string   `json:"direction,omitempty" jsonschema:"Direction of traversal: 'out' (children), 'in' (parents) or 'both'. Default 'out'"`
	Depth     int      `json:"depth,omitempty" jsonschema:"Maximum depth, 0 for unlimited"`
	Label     string   `json:"label,omitempty" jsonschema:"Only return nodes carrying this label (the root is always returned)"`
}

type SubtreeResult struct {
	NodeIDs []uint64 `json:"node_ids"`
}

type DescribeNodeArgs struct {
	ID uint64 `json:"id" jsonschema:"Node id"`
}

type DescribeNodeResult struct {
	Labels      []string          `json:"labels"`
	Properties  map[string]string `json:"properties"`
	Description string            `json:"description"` // Textual description of connections
}

type FindConnectionArgs struct {
	SourceID  uint64   `json:"source_id" jsonschema:"Start node id"`
	TargetID  uint64   `json:"target_id" jsonschema:"End node id"`
	Relations []string `json:"relations,omitempty" jsonschema:"Allowed relation types to traverse (optional)"`
	MaxDepth  int      `json:"max_depth,omitempty" jsonschema:"Longest path searched, in edges (default 6)"`
}

type FindConnectionResult struct {
	NodeIDs         []uint64 `json:"node_ids"`
	PathDescription string   `json:"path_description"` // "1 (Site) hq -[has child]-> 2 (Room)"
}
