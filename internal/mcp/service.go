package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sanonone/kektormatch/pkg/cluster"
	"github.com/sanonone/kektormatch/pkg/engine"
	"github.com/sanonone/kektormatch/pkg/match"
)

type Service struct {
	engine    *engine.Engine
	matcher   *match.Engine
	clusterer *cluster.Clusterer
}

func NewService(eng *engine.Engine, matchOpts match.Options, clusterOpts cluster.Options) (*Service, error) {
	store := eng.MatchStore()
	matcher, err := match.NewEngine(store, store, matchOpts)
	if err != nil {
		return nil, err
	}
	clusterer, err := cluster.New(store, store, clusterOpts)
	if err != nil {
		return nil, err
	}
	return &Service{engine: eng, matcher: matcher, clusterer: clusterer}, nil
}

func toNodeIDs(ids []uint64) []match.NodeID {
	out := make([]match.NodeID, len(ids))
	for i, id := range ids {
		out[i] = match.NodeID(id)
	}
	return out
}

// --- Tool Handlers ---

func (s *Service) Match(ctx context.Context, req *mcp.CallToolRequest, args MatchArgs) (*mcp.CallToolResult, MatchResult, error) {
	res, err := s.matcher.Match(ctx, match.Request{
		A:         toNodeIDs(args.NodesA),
		B:         toNodeIDs(args.NodesB),
		Persist:   args.Persist,
		Threshold: args.Threshold,
	})
	if res == nil {
		return nil, MatchResult{}, err
	}

	out := MatchResult{Subgraphs: make([]MatchedSubgraph, 0, len(res.Subgraphs))}
	for _, sg := range res.Subgraphs {
		msg := MatchedSubgraph{Index: sg.Index, Pairs: make([]MatchedPair, len(sg.Pairs))}
		for i, p := range sg.Pairs {
			a, b := p.Small, p.Large
			if res.Swapped {
				a, b = b, a
			}
			msg.Pairs[i] = MatchedPair{A: uint64(a), B: uint64(b), Rating: p.Rating}
		}
		out.Subgraphs = append(out.Subgraphs, msg)
	}
	out.Summary = fmt.Sprintf("%d matched pairs in %d subgraphs (%d connectivity layers)",
		res.MatchedPairs(), len(res.Subgraphs), res.Layers)
	if errors.Is(err, match.ErrPersist) {
		out.PersistError = err.Error()
	}
	return nil, out, nil
}

func (s *Service) Cluster(ctx context.Context, req *mcp.CallToolRequest, args ClusterArgs) (*mcp.CallToolResult, ClusterResult, error) {
	ids := args.NodeIDs
	if len(ids) == 0 && args.Label != "" {
		ids = s.engine.NodesByLabel(args.Label)
	}
	if len(ids) == 0 {
		return nil, ClusterResult{}, errors.New("no nodes to cluster: pass node_ids or a label that has nodes")
	}

	res, err := s.clusterer.Cluster(ctx, cluster.Request{IDs: toNodeIDs(ids), K: args.K, Persist: args.Persist})
	if res == nil {
		return nil, ClusterResult{}, err
	}
	out := ClusterResult{Features: res.Features}
	byCluster := make(map[int]int)
	for i, c := range res.Assignments {
		g, ok := byCluster[c]
		if !ok {
			g = len(out.Groups)
			byCluster[c] = g
			out.Groups = append(out.Groups, ClusterGroup{Cluster: c})
		}
		out.Groups[g].NodeIDs = append(out.Groups[g].NodeIDs, ids[i])
	}
	if errors.Is(err, cluster.ErrPersist) {
		out.PersistError = err.Error()
	}
	return nil, out, nil
}

func (s *Service) Subtree(ctx context.Context, req *mcp.CallToolRequest, args SubtreeArgs) (*mcp.CallToolResult, SubtreeResult, error) {
	relations := args.Relations
	if len(relations) == 0 {
		relations = []string{engine.RelHasChild}
	}
	ids, err := s.engine.Traverse(engine.GraphQuery{
		RootID:    args.RootID,
		Relations: relations,
		Direction: args.Direction,
		MaxDepth:  args.Depth,
		Label:     args.Label,
	})
	if err != nil {
		return nil, SubtreeResult{}, err
	}
	return nil, SubtreeResult{NodeIDs: ids}, nil
}

func (s *Service) DescribeNode(ctx context.Context, req *mcp.CallToolRequest, args DescribeNodeArgs) (*mcp.CallToolResult, DescribeNodeResult, error) {
	n, err := s.engine.GetNode(args.ID)
	if err != nil {
		return nil, DescribeNodeResult{}, err
	}
	out, err := s.engine.Outgoing(args.ID)
	if err != nil {
		return nil, DescribeNodeResult{}, err
	}
	in, err := s.engine.Incoming(args.ID)
	if err != nil {
		return nil, DescribeNodeResult{}, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Node %d %s\n", n.ID, s.nodeName(n))
	for _, e := range out {
		fmt.Fprintf(&sb, "  --[%s]--> %d %s\n", e.Type, e.Target, s.nameOf(e.Target))
	}
	for _, e := range in {
		fmt.Fprintf(&sb, "  <--[%s]-- %d %s\n", e.Type, e.Source, s.nameOf(e.Source))
	}

	props := n.Properties
	if props == nil {
		props = map[string]string{}
	}
	return nil, DescribeNodeResult{Labels: n.Labels, Properties: props, Description: sb.String()}, nil
}

func (s *Service) FindConnection(ctx context.Context, req *mcp.CallToolRequest, args FindConnectionArgs) (*mcp.CallToolResult, FindConnectionResult, error) {
	res, err := s.engine.FindPath(engine.PathQuery{
		Source:    args.SourceID,
		Target:    args.TargetID,
		Relations: args.Relations,
		MaxDepth:  args.MaxDepth,
	})
	if errors.Is(err, engine.ErrNoPath) {
		return nil, FindConnectionResult{NodeIDs: []uint64{}, PathDescription: "No connection found."}, nil
	}
	if err != nil {
		return nil, FindConnectionResult{}, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d %s", res.Nodes[0], s.nameOf(res.Nodes[0]))
	for i, eid := range res.Edges {
		rel := "?"
		if e, err := s.engine.GetEdge(eid); err == nil {
			rel = e.Type
		}
		fmt.Fprintf(&sb, " -[%s]-> %d %s", rel, res.Nodes[i+1], s.nameOf(res.Nodes[i+1]))
	}
	return nil, FindConnectionResult{NodeIDs: res.Nodes, PathDescription: sb.String()}, nil
}

func (s *Service) nameOf(id uint64) string {
	n, err := s.engine.GetNode(id)
	if err != nil {
		return "(missing)"
	}
	return s.nodeName(n)
}

// nodeName renders labels and the "name" property, e.g. "(Room) server room".
func (s *Service) nodeName(n *engine.Node) string {
	labels := append([]string(nil), n.Labels...)
	sort.Strings(labels)
	name := "(" + strings.Join(labels, ",") + ")"
	if v := n.Properties["name"]; v != "" {
		name += " " + v
	}
	return name
}
