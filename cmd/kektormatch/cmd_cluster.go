package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sanonone/kektormatch/pkg/cluster"
	"github.com/sanonone/kektormatch/pkg/match"
	"github.com/sanonone/kektormatch/pkg/neo4jstore"
	"github.com/spf13/cobra"
)

var (
	clusterIDs     []string
	clusterLabel   string
	clusterK       int
	clusterPersist bool
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Group nodes by property similarity with k-means",
	Long: `Cluster nodes on their properties. Multi-word values are split into
stemmed words; other values are treated as categories.

Examples:
  kektormatch cluster --label ses_class --k 8 --persist
  kektormatch cluster --ids 3,4,5,6 --k 2
  kektormatch cluster --store neo4j --ids 10,11,12 --k 2`,
	Args: cobra.NoArgs,
	RunE: runCluster,
}

func init() {
	clusterCmd.Flags().StringSliceVar(&clusterIDs, "ids", nil, "Node ids to cluster")
	clusterCmd.Flags().StringVar(&clusterLabel, "label", "", "Cluster every node with this label (local store only)")
	clusterCmd.Flags().IntVar(&clusterK, "k", 2, "Number of clusters")
	clusterCmd.Flags().BoolVar(&clusterPersist, "persist", false, "Write cluster_assignment back to the nodes")
}

type clusterOutput struct {
	*cluster.Result
	NodeIDs      []match.NodeID `json:"node_ids"`
	PersistError string         `json:"persist_error,omitempty"`
}

func runCluster(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	var (
		req = cluster.Request{K: clusterK, Persist: clusterPersist}
		res *cluster.Result
		err error
	)
	switch storeKind {
	case storeLocal:
		res, req.IDs, err = clusterLocal(ctx, req)
	case storeNeo4j:
		res, req.IDs, err = clusterNeo4j(ctx, req)
	default:
		return fmt.Errorf("unknown store %q", storeKind)
	}
	if res == nil {
		return err
	}

	out := clusterOutput{Result: res, NodeIDs: req.IDs}
	if err != nil {
		out.PersistError = err.Error()
		slog.Warn("Cluster assignments could not be fully persisted", "error", err)
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func clusterLocal(ctx context.Context, req cluster.Request) (*cluster.Result, []match.NodeID, error) {
	eng, err := openEngine()
	if err != nil {
		return nil, nil, err
	}
	defer eng.Close()

	if clusterLabel != "" {
		for _, id := range eng.NodesByLabel(clusterLabel) {
			req.IDs = append(req.IDs, match.NodeID(id))
		}
	} else if req.IDs, err = nodeSet(nil, clusterIDs, 0); err != nil {
		return nil, nil, err
	}

	store := eng.MatchStore()
	c, err := cluster.New(store, store, cfg.ClusterOptions())
	if err != nil {
		return nil, nil, err
	}
	res, err := c.Cluster(ctx, req)
	return res, req.IDs, err
}

func clusterNeo4j(ctx context.Context, req cluster.Request) (*cluster.Result, []match.NodeID, error) {
	if clusterLabel != "" {
		return nil, nil, errors.New("--label needs the local store, pass --ids")
	}
	var err error
	if req.IDs, err = nodeSet(nil, clusterIDs, 0); err != nil {
		return nil, nil, err
	}

	store, err := neo4jstore.Open(ctx, cfg.Neo4j)
	if err != nil {
		return nil, nil, err
	}
	defer store.Close(context.Background())

	snap, err := store.Load(ctx, req.IDs)
	if err != nil {
		return nil, nil, err
	}
	c, err := cluster.New(snap, store, cfg.ClusterOptions())
	if err != nil {
		return nil, nil, err
	}
	res, err := c.Cluster(ctx, req)
	return res, req.IDs, err
}
