package match

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// maxRatingWorkers caps the goroutines used for the rating matrix regardless
// of CPU count. Rows are independent, so any worker count gives the same matrix.
const maxRatingWorkers = 16

// rater computes attendance ratings between small-side and large-side nodes.
// Everything it reads is immutable, so Rate is safe for concurrent use.
type rater struct {
	small, large         *side
	smallConn, largeConn *ConnectivityModel
	dist                 DistanceFunc
}

// attributeSimilarity averages 1/(1+distance) over the union of attribute
// names; names present on one side only contribute zero. An empty union
// yields 0 rather than NaN.
func attributeSimilarity(a, b map[string]string, dist DistanceFunc) float64 {
	union := len(a)
	common := make([]string, 0, min(len(a), len(b)))
	for k := range b {
		if _, ok := a[k]; ok {
			common = append(common, k)
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	// fixed summation order keeps sim(a,b) == sim(b,a) bit for bit
	sort.Strings(common)
	sum := 0.0
	for _, k := range common {
		sum += 1.0 / (1.0 + dist(a[k], b[k]))
	}
	return sum / float64(union)
}

// signature compares the connectivity of edge (fromA,toA) in model a with
// edge (fromB,toB) in model b, averaged over all layers.
func signature(a, b *ConnectivityModel, fromA, toA, fromB, toB int) float64 {
	depth := a.Depth()
	if depth == 0 {
		return 0
	}
	sum := 0.0
	for v := 0; v < depth; v++ {
		d := math.Abs(a.At(v, fromA, toA) - b.At(v, fromB, toB))
		if math.IsNaN(d) {
			// both path counts overflowed to +Inf
			continue
		}
		sum += 1.0 / (1.0 + d)
	}
	return sum / float64(depth)
}

// endpoints returns (from, to) positions of an adjacency entry of node pos.
func endpoints(pos int, e adjEdge, dir Direction) (int, int) {
	if dir == Incoming {
		return e.otherPos, pos
	}
	return pos, e.otherPos
}

// edgeScores returns, for every dir-edge of the lower-degree node of the
// pair, the best score reached against any dir-edge of the other node.
//
// The lower-degree node is chosen per pair and per direction, independently
// of which graph was the smaller overall. Ties keep the small-side node as
// the lower one. Edges leaving the candidate set keep a score of zero.
func (r *rater) edgeScores(i, j int, dir Direction) []float64 {
	loSide, loPos, loConn := r.small, i, r.smallConn
	hiSide, hiPos, hiConn := r.large, j, r.largeConn
	if len(loSide.edges(loPos, dir)) > len(hiSide.edges(hiPos, dir)) {
		loSide, hiSide = hiSide, loSide
		loPos, hiPos = hiPos, loPos
		loConn, hiConn = hiConn, loConn
	}

	lo := loSide.edges(loPos, dir)
	hi := hiSide.edges(hiPos, dir)
	best := make([]float64, len(lo))
	for k, el := range lo {
		if el.otherPos < 0 {
			continue
		}
		fromLo, toLo := endpoints(loPos, el, dir)
		for _, eh := range hi {
			if eh.otherPos < 0 {
				continue
			}
			// independent opinion pole: one near-zero factor sinks the pair
			edgeSim := attributeSimilarity(el.props, eh.props, r.dist)
			if edgeSim == 0 {
				continue
			}
			nodeSim := attributeSimilarity(loSide.props[el.otherPos], hiSide.props[eh.otherPos], r.dist)
			if nodeSim == 0 {
				continue
			}
			fromHi, toHi := endpoints(hiPos, eh, dir)
			score := signature(loConn, hiConn, fromLo, toLo, fromHi, toHi) * edgeSim * nodeSim
			if score > best[k] {
				best[k] = score
			}
		}
	}
	return best
}

// Rate returns the attendance rating of small-side position i against
// large-side position j: a probabilistic OR of node-attribute similarity
// and every best edge correspondence in both directions.
func (r *rater) Rate(i, j int) float64 {
	if r.small.index.ID(i) == r.large.index.ID(j) {
		// anchor point: the same stored node seeds both graphs
		return 1
	}
	miss := 1 - attributeSimilarity(r.small.props[i], r.large.props[j], r.dist)
	for _, s := range r.edgeScores(i, j, Incoming) {
		miss *= 1 - s
	}
	for _, s := range r.edgeScores(i, j, Outgoing) {
		miss *= 1 - s
	}
	return 1 - miss
}

// anchors lists the nodes present on both sides, in small-side order.
func (r *rater) anchors() []NodeID {
	var out []NodeID
	for i := 0; i < r.small.index.Len(); i++ {
		if id := r.small.index.ID(i); r.large.index.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

// ratingMatrix fills the |small| x |large| attendance matrix. Rows are
// computed concurrently by at most `workers` goroutines (0 = NumCPU); each
// goroutine writes disjoint cells only.
func (r *rater) ratingMatrix(ctx context.Context, workers int) (*mat.Dense, error) {
	rows, cols := r.small.index.Len(), r.large.index.Len()
	ratings := mat.NewDense(rows, cols, nil)

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, maxRatingWorkers, rows)

	for _, id := range r.anchors() {
		slog.Debug("anchor point", "node", id)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < rows; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for j := 0; j < cols; j++ {
				ratings.Set(i, j, r.Rate(i, j))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ratings, nil
}
