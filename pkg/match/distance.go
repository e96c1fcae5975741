package match

import (
	"fmt"
	"math"
	"strconv"
	"unicode/utf16"
)

// DistanceFunc measures how far apart two attribute values are. The result
// must be non-negative and symmetric; a value's similarity contribution is
// 1/(1+distance).
type DistanceFunc func(a, b string) float64

// Names accepted by DistanceByName.
const (
	DistanceLexicographic = "lexicographic"
	DistanceNumeric       = "numeric"
)

// LexicographicDistance is the magnitude of the ordering delta between a and
// b: the difference of the first differing UTF-16 code units, or the length
// difference when one string prefixes the other. It treats ordering as if it
// were distance, so "10" and "9" are 8 apart while "abc" and "abd" are 1.
// Stored match results depend on this exact behavior; it stays the default.
func LexicographicDistance(a, b string) float64 {
	return math.Abs(float64(compareUTF16(a, b)))
}

// NumericDistance uses |a-b| when both values parse as numbers and falls back
// to LexicographicDistance otherwise.
func NumericDistance(a, b string) float64 {
	x, errA := strconv.ParseFloat(a, 64)
	y, errB := strconv.ParseFloat(b, 64)
	if errA != nil || errB != nil || math.IsNaN(x) || math.IsNaN(y) {
		return LexicographicDistance(a, b)
	}
	return math.Abs(x - y)
}

// DistanceByName resolves a configured strategy name. Empty means lexicographic.
func DistanceByName(name string) (DistanceFunc, error) {
	switch name {
	case "", DistanceLexicographic:
		return LexicographicDistance, nil
	case DistanceNumeric:
		return NumericDistance, nil
	default:
		return nil, fmt.Errorf("unknown distance strategy %q", name)
	}
}

// compareUTF16 orders two strings the way a UTF-16 string comparison does and
// returns the signed delta rather than just its sign.
func compareUTF16(a, b string) int {
	if a == b {
		return 0
	}
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	n := min(len(ua), len(ub))
	for i := 0; i < n; i++ {
		if ua[i] != ub[i] {
			return int(ua[i]) - int(ub[i])
		}
	}
	return len(ua) - len(ub)
}
