package cluster

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sanonone/kektormatch/pkg/textanalyzer"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// missingValue stands in for an attribute a node does not carry.
const missingValue = "none"

// uniqueCutoff drops nominal attributes whose distinct values exceed this
// percentage of the rows (ids, names and other per-node keys).
const uniqueCutoff = 99.0

// FeatureSet is the numeric design matrix built from node properties.
// Rows follow the input node order.
type FeatureSet struct {
	Columns []string
	Data    *mat.Dense // nil when no column survived
}

// column is one candidate feature before filtering.
type column struct {
	name    string
	values  []float64
	nominal bool
	// distinct values of the source attribute, nominal columns only
	distinct int
}

// Extract turns one property map per node into features. An attribute is
// free text when any node has more than one word in it: its words are
// stemmed into shared presence columns ("word:<stem>"). Other attributes
// are nominal and one-hot encoded as "<attr>=<value>", lower-cased, with
// "none" for nodes lacking the attribute. Useless columns are dropped and
// the rest is range-normalized to [0,1].
func Extract(props []map[string]string, analyzer textanalyzer.Analyzer, skip ...string) *FeatureSet {
	n := len(props)
	if n == 0 {
		return &FeatureSet{}
	}
	attrs := attributeNames(props, skip)

	var cols []column
	words := map[string][]float64{}
	for _, attr := range attrs {
		values := make([]string, n)
		text := false
		for i, p := range props {
			v, ok := p[attr]
			if !ok {
				v = missingValue
			}
			values[i] = strings.ToLower(v)
			if textanalyzer.WordCount(v) > 1 {
				text = true
			}
		}

		if text {
			for i, v := range values {
				for _, term := range analyzer.Analyze(v) {
					col, ok := words[term]
					if !ok {
						col = make([]float64, n)
						words[term] = col
					}
					col[i] = 1
				}
			}
			continue
		}

		levels := uniqueSorted(values)
		for _, level := range levels {
			col := column{name: fmt.Sprintf("%s=%s", attr, level), values: make([]float64, n), nominal: true, distinct: len(levels)}
			for i, v := range values {
				if v == level {
					col.values[i] = 1
				}
			}
			cols = append(cols, col)
		}
	}

	terms := make([]string, 0, len(words))
	for term := range words {
		terms = append(terms, term)
	}
	slices.Sort(terms)
	for _, term := range terms {
		cols = append(cols, column{name: "word:" + term, values: words[term]})
	}

	kept := cols[:0]
	for _, c := range cols {
		if useful(c, n) {
			kept = append(kept, c)
		}
	}

	fs := &FeatureSet{Columns: make([]string, len(kept))}
	if len(kept) == 0 {
		return fs
	}
	fs.Data = mat.NewDense(n, len(kept), nil)
	for j, c := range kept {
		fs.Columns[j] = c.name
		normalize(c.values)
		fs.Data.SetCol(j, c.values)
	}
	return fs
}

func attributeNames(props []map[string]string, skip []string) []string {
	seen := map[string]struct{}{}
	for _, p := range props {
		for k := range p {
			if !slices.Contains(skip, k) {
				seen[k] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func uniqueSorted(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}

// useful rejects constant columns and nominal attributes that are nearly
// unique per row.
func useful(c column, n int) bool {
	if floats.Min(c.values) == floats.Max(c.values) {
		return false
	}
	if c.nominal && float64(c.distinct)/float64(n)*100 > uniqueCutoff {
		return false
	}
	return true
}

// normalize rescales v into [0,1] in place. v must not be constant.
func normalize(v []float64) {
	lo, hi := floats.Min(v), floats.Max(v)
	floats.AddConst(-lo, v)
	floats.Scale(1/(hi-lo), v)
}
