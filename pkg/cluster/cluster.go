// Package cluster groups graph nodes by their properties with k-means.
//
// Node properties become a binary feature matrix (see Extract), which is
// clustered with a seeded k-means so repeated runs over the same nodes give
// the same assignment. Results can be stored back on the nodes as the
// cluster_assignment property.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/sanonone/kektormatch/pkg/match"
	"github.com/sanonone/kektormatch/pkg/metrics"
	"github.com/sanonone/kektormatch/pkg/textanalyzer"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("kektormatch.cluster")

// PropClusterAssignment holds a node's cluster number after a persisted run.
const PropClusterAssignment = match.PropClusterAssignment

const (
	DefaultMaxIterations = 500
	DefaultSeed          = 10
)

// PropertyReader yields node properties. match.GraphReader satisfies it, and
// readers that are also match.Snapshotter are read through one snapshot.
type PropertyReader interface {
	NodeProperties(ctx context.Context, id match.NodeID) (map[string]string, error)
}

// PropertyWriter stores assignments.
type PropertyWriter interface {
	SetNodeProperties(ctx context.Context, id match.NodeID, props map[string]string) error
}

type Options struct {
	MaxIterations int
	Seed          int64
	Analyzer      textanalyzer.Analyzer
}

func DefaultOptions() Options {
	return Options{
		MaxIterations: DefaultMaxIterations,
		Seed:          DefaultSeed,
		Analyzer:      textanalyzer.NewEnglishAnalyzer(),
	}
}

type Request struct {
	IDs     []match.NodeID
	K       int
	Persist bool
}

// Result carries one cluster number per requested id, in request order.
type Result struct {
	Assignments []int    `json:"assignments"`
	Clusters    int      `json:"clusters"`
	Iterations  int      `json:"iterations"`
	Features    []string `json:"features"`
}

// Clusterer runs clustering requests. It is safe for concurrent use.
type Clusterer struct {
	reader PropertyReader
	writer PropertyWriter
	opts   Options
}

// New creates a Clusterer. w may be nil when results are never persisted.
func New(r PropertyReader, w PropertyWriter, opts Options) (*Clusterer, error) {
	if r == nil {
		return nil, errors.New("cluster: nil property reader")
	}
	def := DefaultOptions()
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = def.MaxIterations
	}
	if opts.Analyzer == nil {
		opts.Analyzer = def.Analyzer
	}
	return &Clusterer{reader: r, writer: w, opts: opts}, nil
}

// Cluster assigns each of req.IDs to one of at most req.K clusters.
// On ErrPersist the returned Result is complete; on any other error it is nil.
func (c *Clusterer) Cluster(ctx context.Context, req Request) (res *Result, err error) {
	ctx, span := tracer.Start(ctx, "cluster.Cluster",
		trace.WithAttributes(attribute.Int("nodes", len(req.IDs)), attribute.Int("k", req.K)))
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		metrics.ClusterRunsTotal.WithLabelValues(outcome(err)).Inc()
	}()

	if len(req.IDs) == 0 {
		return nil, fmt.Errorf("%w: no node ids", ErrInvalidInput)
	}
	if req.K < 1 || req.K > len(req.IDs) {
		return nil, fmt.Errorf("%w: k=%d with %d nodes", ErrInvalidInput, req.K, len(req.IDs))
	}
	if req.Persist && c.writer == nil {
		return nil, fmt.Errorf("%w: persistence requested without a writer", ErrInvalidInput)
	}
	seen := make(map[match.NodeID]struct{}, len(req.IDs))
	for _, id := range req.IDs {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: node %d listed twice", ErrInvalidInput, id)
		}
		seen[id] = struct{}{}
	}

	props, err := c.load(ctx, req.IDs)
	if err != nil {
		return nil, err
	}

	fs := Extract(props, c.opts.Analyzer, PropClusterAssignment, match.PropSubgraphIndex, match.PropMatchingNodeID)
	km, err := kMeans(ctx, fs.Data, len(req.IDs), req.K, c.opts.MaxIterations, c.opts.Seed)
	if err != nil {
		return nil, err
	}

	res = &Result{
		Assignments: km.assignments,
		Clusters:    len(km.centroids),
		Iterations:  km.iterations,
		Features:    fs.Columns,
	}
	slog.Info("clustering completed", "nodes", len(req.IDs), "k", req.K, "clusters", res.Clusters,
		"features", len(fs.Columns), "iterations", res.Iterations, "duration", time.Since(start))
	for i, id := range req.IDs {
		slog.Debug("cluster assignment", "node", id, "cluster", res.Assignments[i])
	}

	if req.Persist {
		if err := c.persist(ctx, req.IDs, res.Assignments); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (c *Clusterer) load(ctx context.Context, ids []match.NodeID) ([]map[string]string, error) {
	reader := c.reader
	if s, ok := c.reader.(match.Snapshotter); ok {
		view, err := s.Snapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("snapshot: %w", err)
		}
		reader = view
	}

	props := make([]map[string]string, len(ids))
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := reader.NodeProperties(ctx, id)
		if errors.Is(err, match.ErrNodeNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if err != nil {
			return nil, fmt.Errorf("read node %d: %w", id, err)
		}
		props[i] = p
	}
	return props, nil
}

func (c *Clusterer) persist(ctx context.Context, ids []match.NodeID, assignments []int) error {
	var errs []error
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		err := c.writer.SetNodeProperties(ctx, id, map[string]string{
			PropClusterAssignment: strconv.Itoa(assignments[i]),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("node %d: %w", id, err))
		}
	}
	if len(errs) > 0 {
		err := fmt.Errorf("%w: %w", ErrPersist, errors.Join(errs...))
		slog.Error("persisting cluster assignments failed", "failures", len(errs), "error", err)
		return err
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrPersist):
		return "persist_error"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
