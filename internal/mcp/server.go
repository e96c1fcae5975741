package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sanonone/kektormatch/pkg/cluster"
	"github.com/sanonone/kektormatch/pkg/engine"
	"github.com/sanonone/kektormatch/pkg/match"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

func NewMCPServer(eng *engine.Engine, matchOpts match.Options, clusterOpts cluster.Options) (*mcp.Server, error) {
	service, err := NewService(eng, matchOpts, clusterOpts)
	if err != nil {
		return nil, err
	}

	s := mcp.NewServer(&mcp.Implementation{
		Name:    "kektormatch",
		Version: Version,
	}, nil)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "match_subgraphs",
		Description: "Find structurally and attribute-wise similar node correspondences between two sets of graph nodes.",
	}, service.Match)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "cluster_nodes",
		Description: "Group nodes by the similarity of their properties using k-means.",
	}, service.Cluster)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "subtree",
		Description: "List the nodes reachable from a root, e.g. the whole subtree below a site, ready to be matched.",
	}, service.Subtree)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "describe_node",
		Description: "Show a node's labels, properties and direct connections.",
	}, service.DescribeNode)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "find_connection",
		Description: "Discover how two nodes are connected in the graph (shortest directed path).",
	}, service.FindConnection)

	return s, nil
}
