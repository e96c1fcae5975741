package cluster

import (
	"context"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type kmeansResult struct {
	assignments []int
	centroids   [][]float64
	iterations  int
}

// kMeans runs Lloyd iterations with Euclidean distance. Initial centroids
// are distinct rows drawn with a seeded generator, so a given input and seed
// always gives the same assignment. Fewer than k distinct rows yields fewer
// clusters. A nil data matrix means every row is identical.
func kMeans(ctx context.Context, data *mat.Dense, n, k, maxIter int, seed int64) (kmeansResult, error) {
	res := kmeansResult{assignments: make([]int, n)}
	if data == nil {
		res.centroids = [][]float64{{}}
		return res, nil
	}

	res.centroids = initialCentroids(data, n, k, seed)
	for i := range res.assignments {
		res.assignments[i] = -1
	}
	_, dim := data.Dims()
	counts := make([]int, len(res.centroids))

	for res.iterations < maxIter {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.iterations++

		changed := false
		for i := 0; i < n; i++ {
			c := nearest(res.centroids, data.RawRowView(i))
			if c != res.assignments[i] {
				res.assignments[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([][]float64, len(res.centroids))
		for c := range sums {
			sums[c] = make([]float64, dim)
			counts[c] = 0
		}
		for i, c := range res.assignments {
			floats.Add(sums[c], data.RawRowView(i))
			counts[c]++
		}
		for c, sum := range sums {
			// empty clusters keep their previous centroid
			if counts[c] == 0 {
				continue
			}
			floats.Scale(1/float64(counts[c]), sum)
			res.centroids[c] = sum
		}
	}
	return res, nil
}

func initialCentroids(data *mat.Dense, n, k int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	seen := make(map[string]struct{}, k)
	centroids := make([][]float64, 0, k)
	for j := n - 1; j >= 0 && len(centroids) < k; j-- {
		pick := rng.Intn(j + 1)
		row := data.RawRowView(order[pick])
		key := rowKey(row)
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			centroids = append(centroids, append([]float64(nil), row...))
		}
		order[pick], order[j] = order[j], order[pick]
	}
	return centroids
}

// nearest returns the closest centroid, the lowest index on ties.
func nearest(centroids [][]float64, row []float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := floats.Distance(centroid, row, 2); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func rowKey(row []float64) string {
	var sb strings.Builder
	for _, v := range row {
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		sb.WriteByte(',')
	}
	return sb.String()
}
