package stroke

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DistanceMetric returns the Euclidean distance between each point and its
// predecessor. The first point has distance Epsilon.
func DistanceMetric(x, y []float64) []float64 {
	checkLen(x, y)
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	out[0] = Epsilon
	for i := 1; i < len(x); i++ {
		out[i] = math.Hypot(x[i]-x[i-1], y[i]-y[i-1])
	}
	return out
}

// Reparameterize expresses the sequence as cumulative distance travelled.
// Pen-up moves (points flagged in starts) count as Epsilon and the first
// point sits at 0. With hasRepeatedEnd the final duplicated point is pushed
// 10 units beyond its predecessor for interpolation.
func Reparameterize(x, y, starts []float64, hasRepeatedEnd bool) []float64 {
	checkLen(x, y)
	checkLen(x, starts)
	d := DistanceMetric(x, y)
	if len(d) == 0 {
		return d
	}
	for i, s := range starts {
		if s == 1 {
			d[i] = Epsilon
		}
	}
	d[0] = 0
	cum := floats.CumSum(make([]float64, len(d)), d)
	if hasRepeatedEnd && len(cum) > 1 {
		cum[len(cum)-1] = cum[len(cum)-2] + endPadding
	}
	return cum
}

// CalcStrokeDistances returns the length travelled within each stroke.
func CalcStrokeDistances(x, y, starts []float64) []float64 {
	startIdx := SOSArgs(starts)
	if len(startIdx) == 0 {
		return nil
	}
	endIdx := strokeEnds(startIdx, len(starts))
	cum := Reparameterize(x, y, starts, false)
	out := make([]float64, len(startIdx))
	for i := range startIdx {
		out[i] = cum[endIdx[i]] - cum[startIdx[i]]
	}
	return out
}

// StrokeLengthGT produces a per-point target that ramps linearly from 0 at
// each stroke start to the stroke's length (or 1 when useDistance is false)
// at its last point.
func StrokeLengthGT(x, y, starts []float64, useDistance bool) []float64 {
	out := make([]float64, len(starts))
	startIdx := SOSArgs(starts)
	if len(startIdx) == 0 {
		return out
	}
	endIdx := strokeEnds(startIdx, len(starts))

	var lengths []float64
	if useDistance {
		lengths = CalcStrokeDistances(x, y, starts)
	} else {
		lengths = make([]float64, len(startIdx))
		for i := range lengths {
			lengths[i] = 1
		}
	}

	for s, first := range startIdx {
		last := endIdx[s]
		span := float64(last - first)
		for k := first; k <= last; k++ {
			if span == 0 {
				out[k] = 0
				continue
			}
			out[k] = lengths[s] * float64(k-first) / span
		}
	}
	return out
}

// strokeEnds returns the last index of each stroke given its first index.
func strokeEnds(startIdx []int, n int) []int {
	ends := make([]int, len(startIdx))
	for i := range startIdx {
		if i+1 < len(startIdx) {
			ends[i] = startIdx[i+1] - 1
		} else {
			ends[i] = n - 1
		}
	}
	return ends
}

// normalize shifts xs to start at zero and divides by scale. A zero scale
// means the caller should derive it from the range of xs.
func normalize(xs []float64, scale float64) ([]float64, float64) {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out, scale
	}
	copy(out, xs)
	floats.AddConst(-floats.Min(out), out)
	if scale == 0 {
		scale = floats.Max(out)
	}
	if scale == 0 {
		return out, 0
	}
	floats.Scale(1/scale, out)
	return out, scale
}

func checkLen(a, b []float64) {
	if len(a) != len(b) {
		panic("stroke: coordinate slices have different lengths")
	}
}
