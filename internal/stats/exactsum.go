package stats

import "math"

// ExactSum accumulates float64 values without rounding error by keeping a
// list of non-overlapping partial sums (Shewchuk's algorithm, the one behind
// Python's math.fsum). Because no precision is lost while accumulating, the
// final Value is the correctly rounded sum of the inputs no matter how they
// were ordered or grouped across accumulators. That property is what lets
// chunked, parallel aggregation produce identical statistics for any chunk
// size or worker count.
//
// The zero value is an empty sum. Inputs must be finite.
type ExactSum struct {
	partials []float64
}

// Add folds x into the sum exactly.
func (s *ExactSum) Add(x float64) {
	i := 0
	for _, y := range s.partials {
		if math.Abs(x) < math.Abs(y) {
			x, y = y, x
		}
		hi := x + y
		lo := y - (hi - x)
		if lo != 0 {
			s.partials[i] = lo
			i++
		}
		x = hi
	}
	s.partials = append(s.partials[:i], x)
}

// Merge folds other into s exactly. other is left unchanged.
func (s *ExactSum) Merge(other *ExactSum) {
	for _, p := range other.partials {
		s.Add(p)
	}
}

// Value returns the correctly rounded total. The partials list is ordered by
// increasing magnitude; rounding walks it from the top and applies a
// round-half-even correction using the sign of the next partial down.
func (s *ExactSum) Value() float64 {
	p := s.partials
	n := len(p)
	if n == 0 {
		return 0
	}
	hi := p[n-1]
	var lo float64
	j := n - 1
	for j > 0 {
		x := hi
		y := p[j-1]
		j--
		hi = x + y
		yr := hi - x
		lo = y - yr
		if lo != 0 {
			break
		}
	}
	if j > 0 && ((lo < 0 && p[j-1] < 0) || (lo > 0 && p[j-1] > 0)) {
		y := lo * 2
		x := hi + y
		if y == x-hi {
			hi = x
		}
	}
	return hi
}
