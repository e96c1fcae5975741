// Package match implements approximate matching of two attributed, directed
// subgraphs drawn from one graph store.
//
// A run loads both candidate node sets from a single snapshot, builds a
// connectivity layer stack per side, rates every cross pair with an
// attendance score and then greedily extracts disjoint matched subgraphs.
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sanonone/kektormatch/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/mat"
)

var tracer = otel.Tracer("kektormatch.match")

// DefaultThreshold is the attendance rating a pair must exceed to be claimed.
const DefaultThreshold = 0.6

// Options configures an Engine.
type Options struct {
	// Threshold a rating must strictly exceed to seed or extend a subgraph.
	Threshold float64
	// LayerDivisor sets the layer depth to ceil(|large| / LayerDivisor).
	LayerDivisor int
	// Workers bounds the goroutines rating pairs. 0 means one per CPU.
	Workers int
	// Distance compares two attribute values. Nil means LexicographicDistance.
	Distance DistanceFunc
}

// DefaultOptions returns the stock matching configuration.
func DefaultOptions() Options {
	return Options{
		Threshold:    DefaultThreshold,
		LayerDivisor: DefaultLayerDivisor,
		Workers:      0,
		Distance:     LexicographicDistance,
	}
}

// Request is one matching invocation.
type Request struct {
	A, B []NodeID
	// Persist writes subgraph_index and matching_node_id on every matched node.
	Persist bool
	// Threshold overrides Options.Threshold for this run when non-nil.
	Threshold *float64
}

// Engine runs matching requests against a graph store. It holds no state
// between runs and is safe for concurrent use.
type Engine struct {
	reader GraphReader
	writer ResultWriter
	opts   Options
}

// NewEngine creates an engine reading from r. w may be nil when results are
// never persisted.
func NewEngine(r GraphReader, w ResultWriter, opts Options) (*Engine, error) {
	if r == nil {
		return nil, errors.New("match: nil graph reader")
	}
	if err := validThreshold(opts.Threshold); err != nil {
		return nil, err
	}
	if opts.LayerDivisor < 1 {
		opts.LayerDivisor = DefaultLayerDivisor
	}
	if opts.Distance == nil {
		opts.Distance = LexicographicDistance
	}
	return &Engine{reader: r, writer: w, opts: opts}, nil
}

func validThreshold(t float64) error {
	if t < 0 || t > 1 || math.IsNaN(t) {
		return fmt.Errorf("%w: similarity threshold %v outside [0,1]", ErrInvalidInput, t)
	}
	return nil
}

// Match compares the subgraphs induced by req.A and req.B.
//
// The smaller sequence plays the "small" role (A on ties); Result.Swapped
// records when that is B. On ErrPersist the returned Result is complete and
// valid; on every other error it is nil.
func (e *Engine) Match(ctx context.Context, req Request) (res *Result, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "match.Engine.Match",
		trace.WithAttributes(
			attribute.Int("nodes_a", len(req.A)),
			attribute.Int("nodes_b", len(req.B)),
			attribute.Bool("persist", req.Persist),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		metrics.MatchRunsTotal.WithLabelValues(outcome(err)).Inc()
		metrics.MatchDuration.Observe(time.Since(start).Seconds())
		if res != nil {
			metrics.MatchedSubgraphs.Observe(float64(len(res.Subgraphs)))
		}
	}()

	threshold := e.opts.Threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if err := validThreshold(threshold); err != nil {
		return nil, err
	}
	if len(req.A) == 0 || len(req.B) == 0 {
		return nil, fmt.Errorf("%w: both node sequences must be non-empty", ErrInvalidInput)
	}
	if req.Persist && e.writer == nil {
		return nil, fmt.Errorf("%w: persistence requested without a result writer", ErrInvalidInput)
	}

	smallIDs, largeIDs, swapped := req.A, req.B, false
	if len(req.A) > len(req.B) {
		smallIDs, largeIDs, swapped = req.B, req.A, true
	}
	smallIdx, err := NewIndexMap(smallIDs)
	if err != nil {
		return nil, err
	}
	largeIdx, err := NewIndexMap(largeIDs)
	if err != nil {
		return nil, err
	}

	small, large, err := e.load(ctx, smallIdx, largeIdx)
	if err != nil {
		return nil, err
	}

	depth := LayerCount(largeIdx.Len(), e.opts.LayerDivisor)
	slog.Debug("matching run", "small", smallIdx.Len(), "large", largeIdx.Len(), "layers", depth, "swapped", swapped)

	smallConn, largeConn, err := e.connectivity(ctx, small, large, depth)
	if err != nil {
		return nil, err
	}

	ratings, err := e.rate(ctx, &rater{
		small: small, large: large,
		smallConn: smallConn, largeConn: largeConn,
		dist: e.opts.Distance,
	})
	if err != nil {
		return nil, err
	}

	_, gspan := tracer.Start(ctx, "match.greedy")
	subgraphs, err := newMatcher(ratings, small, large, threshold).run(ctx)
	gspan.SetAttributes(attribute.Int("subgraphs", len(subgraphs)))
	gspan.End()
	if err != nil {
		return nil, err
	}

	res = &Result{Swapped: swapped, Layers: depth, Subgraphs: subgraphs}
	if res.Subgraphs == nil {
		res.Subgraphs = []Subgraph{}
	}
	slog.Info("matching completed", "subgraphs", len(res.Subgraphs), "pairs", res.MatchedPairs(), "duration", time.Since(start))

	if req.Persist {
		if err := e.persist(ctx, res, smallIdx, largeIdx); err != nil {
			return res, err
		}
	}
	return res, nil
}

// load reads both sides from one snapshot when the store can provide one.
func (e *Engine) load(ctx context.Context, smallIdx, largeIdx *IndexMap) (*side, *side, error) {
	ctx, span := tracer.Start(ctx, "match.load")
	defer span.End()

	reader := e.reader
	if s, ok := e.reader.(Snapshotter); ok {
		view, err := s.Snapshot(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrSnapshot, err)
		}
		reader = view
	}

	small, err := loadSide(ctx, reader, smallIdx)
	if err != nil {
		return nil, nil, err
	}
	large, err := loadSide(ctx, reader, largeIdx)
	if err != nil {
		return nil, nil, err
	}
	return small, large, nil
}

func (e *Engine) connectivity(ctx context.Context, small, large *side, depth int) (*ConnectivityModel, *ConnectivityModel, error) {
	ctx, span := tracer.Start(ctx, "match.connectivity", trace.WithAttributes(attribute.Int("layers", depth)))
	defer span.End()

	smallConn, err := NewConnectivityModel(ctx, small, depth)
	if err != nil {
		return nil, nil, err
	}
	largeConn, err := NewConnectivityModel(ctx, large, depth)
	if err != nil {
		return nil, nil, err
	}
	return smallConn, largeConn, nil
}

func (e *Engine) rate(ctx context.Context, r *rater) (*mat.Dense, error) {
	ctx, span := tracer.Start(ctx, "match.rating")
	defer span.End()
	return r.ratingMatrix(ctx, e.opts.Workers)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrPersist):
		return "persist_error"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrSnapshot):
		return "snapshot_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
