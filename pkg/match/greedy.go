package match

import (
	"context"
	"log/slog"

	"gonum.org/v1/gonum/mat"
)

// greedyState is the phase of the subgraph extraction loop.
type greedyState int

const (
	stateSeeding greedyState = iota
	stateExtending
	stateDone
)

func (s greedyState) String() string {
	switch s {
	case stateSeeding:
		return "seeding"
	case stateExtending:
		return "extending"
	default:
		return "done"
	}
}

// matcher owns all mutable state of one extraction: the claimed sets that
// persist across subgraphs and the subgraph currently being grown. A single
// control loop drives it; nothing here is shared.
type matcher struct {
	ratings      *mat.Dense
	small, large *side
	threshold    float64

	claimedSmall []bool
	claimedLarge []bool

	current *Subgraph
	members [][2]int // positions of current's pairs, same order
	found   []Subgraph
}

func newMatcher(ratings *mat.Dense, small, large *side, threshold float64) *matcher {
	return &matcher{
		ratings:      ratings,
		small:        small,
		large:        large,
		threshold:    threshold,
		claimedSmall: make([]bool, small.index.Len()),
		claimedLarge: make([]bool, large.index.Len()),
	}
}

// run alternates seeding and extending until no unclaimed pair rates above
// the threshold. Every claim removes one node from each side's pool, so the
// loop ends after at most min(|small|,|large|) claims.
func (m *matcher) run(ctx context.Context) ([]Subgraph, error) {
	state := stateSeeding
	for state != stateDone {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch state {
		case stateSeeding:
			i, j, peak := m.peak()
			slog.Debug("peak attendance", "rating", peak)
			if peak <= m.threshold {
				state = stateDone
				continue
			}
			m.current = &Subgraph{Index: len(m.found) + 1}
			m.members = m.members[:0]
			m.claim(i, j, peak)
			slog.Debug("seed matched",
				"subgraph", m.current.Index,
				"small", m.small.index.ID(i),
				"large", m.large.index.ID(j),
				"rating", peak,
			)
			state = stateExtending

		case stateExtending:
			i, j, best := m.bestExtension()
			if best > m.threshold {
				m.claim(i, j, best)
				slog.Debug("extension matched",
					"subgraph", m.current.Index,
					"small", m.small.index.ID(i),
					"large", m.large.index.ID(j),
					"rating", best,
				)
				continue
			}
			slog.Debug("subgraph finalized", "subgraph", m.current.Index, "pairs", len(m.current.Pairs))
			m.found = append(m.found, *m.current)
			m.current = nil
			state = stateSeeding
		}
	}
	return m.found, nil
}

// peak scans every unclaimed (i,j) cell for the highest rating. Ties keep the
// first cell in row-major order. A zero peak means nothing is rateable.
func (m *matcher) peak() (int, int, float64) {
	rows, cols := m.ratings.Dims()
	bi, bj, best := 0, 0, 0.0
	for i := 0; i < rows; i++ {
		if m.claimedSmall[i] {
			continue
		}
		for j := 0; j < cols; j++ {
			if m.claimedLarge[j] {
				continue
			}
			if r := m.ratings.At(i, j); r > best {
				bi, bj, best = i, j, r
			}
		}
	}
	return bi, bj, best
}

// bestExtension looks at every pair already in the current subgraph and
// returns the best-rated pair of unclaimed neighbors across all of them.
// Pairs claimed earlier in this subgraph are scanned again on each call, so
// fresh claims immediately become extension points.
func (m *matcher) bestExtension() (int, int, float64) {
	bi, bj, best := 0, 0, 0.0
	for _, pair := range m.members {
		largeNeighbors := m.large.neighbors(pair[1])
		for _, ni := range m.small.neighbors(pair[0]) {
			if m.claimedSmall[ni] {
				continue
			}
			for _, nj := range largeNeighbors {
				if m.claimedLarge[nj] {
					continue
				}
				if r := m.ratings.At(ni, nj); r > best {
					bi, bj, best = ni, nj, r
				}
			}
		}
	}
	return bi, bj, best
}

func (m *matcher) claim(i, j int, rating float64) {
	m.claimedSmall[i] = true
	m.claimedLarge[j] = true
	m.members = append(m.members, [2]int{i, j})
	m.current.Pairs = append(m.current.Pairs, Pair{
		Small:  m.small.index.ID(i),
		Large:  m.large.index.ID(j),
		Rating: rating,
	})
}
