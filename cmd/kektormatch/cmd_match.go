package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sanonone/kektormatch/pkg/engine"
	"github.com/sanonone/kektormatch/pkg/match"
	"github.com/sanonone/kektormatch/pkg/neo4jstore"
	"github.com/spf13/cobra"
)

const (
	storeLocal = "local"
	storeNeo4j = "neo4j"
)

var (
	matchA, matchB               []string
	matchSubtreeA, matchSubtreeB uint64
	matchPersist                 bool
	matchThreshold               float64
	storeKind                    string
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match two node sets and print the mapped subgraphs",
	Long: `Match the subgraph induced by --a against the one induced by --b.

Node sets are given as id lists, or as the "has child" subtree under a root
(local store only).

Examples:
  kektormatch match --a 1,2,3 --b 7,8,9
  kektormatch match --subtree-a 1 --subtree-b 40 --persist
  kektormatch match --store neo4j --a 10,11 --b 20,21 --threshold 0.8`,
	Args: cobra.NoArgs,
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().StringSliceVar(&matchA, "a", nil, "Node ids of the first set")
	matchCmd.Flags().StringSliceVar(&matchB, "b", nil, "Node ids of the second set")
	matchCmd.Flags().Uint64Var(&matchSubtreeA, "subtree-a", 0, "Use the subtree under this root as the first set")
	matchCmd.Flags().Uint64Var(&matchSubtreeB, "subtree-b", 0, "Use the subtree under this root as the second set")
	matchCmd.Flags().BoolVar(&matchPersist, "persist", false, "Write subgraph_index and matching_node_id back to the nodes")
	matchCmd.Flags().Float64Var(&matchThreshold, "threshold", -1, "Similarity threshold, overrides matching.similarity_threshold")
	matchCmd.Flags().StringVar(&storeKind, "store", storeLocal, "Graph source: local or neo4j")

	clusterCmd.Flags().StringVar(&storeKind, "store", storeLocal, "Graph source: local or neo4j")
}

// matchOutput is what the command prints.
type matchOutput struct {
	*match.Result
	Mappings     []map[match.NodeID]match.NodeID `json:"mappings"`
	PersistError string                          `json:"persist_error,omitempty"`
}

func runMatch(cmd *cobra.Command, args []string) error {
	opts, err := cfg.MatchOptions()
	if err != nil {
		return err
	}
	req := match.Request{Persist: matchPersist}
	if matchThreshold >= 0 {
		req.Threshold = &matchThreshold
	}

	ctx, stop := signalContext()
	defer stop()

	var res *match.Result
	switch storeKind {
	case storeLocal:
		res, err = matchLocal(ctx, opts, req)
	case storeNeo4j:
		res, err = matchNeo4j(ctx, opts, req)
	default:
		return fmt.Errorf("unknown store %q", storeKind)
	}
	if res == nil {
		return err
	}

	out := matchOutput{Result: res, Mappings: res.Mappings()}
	if err != nil {
		out.PersistError = err.Error()
		slog.Warn("Match results could not be fully persisted", "error", err)
	}
	return printJSON(cmd.OutOrStdout(), out)
}

// nodeSet resolves one side from an id list or a subtree root.
func nodeSet(eng *engine.Engine, raw []string, root uint64) ([]match.NodeID, error) {
	var ids []uint64
	if root != 0 {
		if eng == nil {
			return nil, errors.New("subtree selection needs the local store")
		}
		var err error
		ids, err = eng.Traverse(engine.GraphQuery{RootID: root, Relations: []string{engine.RelHasChild}})
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		if ids, err = parseIDs(raw); err != nil {
			return nil, err
		}
	}
	out := make([]match.NodeID, len(ids))
	for i, id := range ids {
		out[i] = match.NodeID(id)
	}
	return out, nil
}

func matchLocal(ctx context.Context, opts match.Options, req match.Request) (*match.Result, error) {
	eng, err := openEngine()
	if err != nil {
		return nil, err
	}
	defer eng.Close()

	if req.A, err = nodeSet(eng, matchA, matchSubtreeA); err != nil {
		return nil, err
	}
	if req.B, err = nodeSet(eng, matchB, matchSubtreeB); err != nil {
		return nil, err
	}

	store := eng.MatchStore()
	m, err := match.NewEngine(store, store, opts)
	if err != nil {
		return nil, err
	}
	return m.Match(ctx, req)
}

func matchNeo4j(ctx context.Context, opts match.Options, req match.Request) (*match.Result, error) {
	var err error
	if req.A, err = nodeSet(nil, matchA, matchSubtreeA); err != nil {
		return nil, err
	}
	if req.B, err = nodeSet(nil, matchB, matchSubtreeB); err != nil {
		return nil, err
	}

	store, err := neo4jstore.Open(ctx, cfg.Neo4j)
	if err != nil {
		return nil, err
	}
	defer store.Close(context.Background())

	snap, err := store.Load(ctx, append(append([]match.NodeID{}, req.A...), req.B...))
	if err != nil {
		return nil, err
	}
	m, err := match.NewEngine(snap, store, opts)
	if err != nil {
		return nil, err
	}
	return m.Match(ctx, req)
}
