package stroke

import (
	"math"
)

// SOSArgs returns the indices flagged as stroke starts.
func SOSArgs(sos []float64) []int {
	var idx []int
	for i, v := range sos {
		if v == 1 {
			idx = append(idx, i)
		}
	}
	return idx
}

// SOSArgsRows returns the stroke start indices stored in column col.
// Values above 0.5 count as starts so that soft predictions can be used.
func SOSArgsRows(rows [][]float64, col int) []int {
	var idx []int
	for i, r := range rows {
		if r[col] > .5 {
			idx = append(idx, i)
		}
	}
	return idx
}

// EOSFromSOS derives end-of-stroke flags: a point ends a stroke when the
// next point starts one, and the last point always ends a stroke.
func EOSFromSOS(sos []float64) []float64 {
	eos := make([]float64, len(sos))
	if len(sos) == 0 {
		return eos
	}
	copy(eos, sos[1:])
	eos[len(eos)-1] = 1
	return eos
}

// StartStrokesFromNumbers converts a stroke-number channel into start
// flags: a start is where the rounded stroke number changes.
func StartStrokesFromNumbers(numbers []float64) []float64 {
	out := make([]float64, len(numbers))
	for i := 1; i < len(numbers); i++ {
		if math.Round(numbers[i]) != math.Round(numbers[i-1]) {
			out[i] = 1
		}
	}
	return out
}

// StrokeNumbers is the running count of strokes, starting at 0 for the
// first stroke.
func StrokeNumbers(sos []float64) []float64 {
	out := make([]float64, len(sos))
	n := -1.0
	for i, v := range sos {
		if v == 1 || i == 0 {
			n++
		}
		out[i] = n
	}
	return out
}

// Spans returns the half open [start, end) row range of every stroke.
func Spans(starts []int, n int) [][2]int {
	spans := make([][2]int, 0, len(starts))
	for i, s := range starts {
		e := n
		if i+1 < len(starts) {
			e = starts[i+1]
		}
		if e > s {
			spans = append(spans, [2]int{s, e})
		}
	}
	return spans
}

// ReverseStrokes reverses the order of points within each stroke. Columns
// sosCol and fixed stay where they are, so flags keep marking the same
// positions in the sequence.
func ReverseStrokes(rows [][]float64, sosCol int, fixed ...int) [][]float64 {
	out := cloneRows(rows)
	keep := map[int]bool{sosCol: true}
	for _, c := range fixed {
		keep[c] = true
	}
	starts := SOSArgsRows(rows, sosCol)
	if len(starts) == 0 || starts[0] != 0 {
		starts = append([]int{0}, starts...)
	}
	for _, span := range Spans(starts, len(rows)) {
		s, e := span[0], span[1]
		for i := s; i < e; i++ {
			src := rows[s+e-1-i]
			for c := range out[i] {
				if !keep[c] {
					out[i][c] = src[c]
				}
			}
		}
	}
	return out
}

// MakeMoreStartPoints flags every point that jumps further than maxDist
// from its predecessor as a stroke start. Rows hold x, y in columns 0 and 1
// and start flags in sosCol.
func MakeMoreStartPoints(rows [][]float64, sosCol int, maxDist float64) [][]float64 {
	out := cloneRows(rows)
	xs, ys := columns(out)
	for i, d := range DistanceMetric(xs, ys) {
		if d > maxDist {
			out[i][sosCol] = 1
		}
	}
	return out
}

// RemoveStrays deletes isolated mid-stroke points that jump away from and
// back to the stroke (both the step in and the step out exceed maxDist).
// The point after a removed stray becomes a stroke start.
func RemoveStrays(rows [][]float64, sosCol int, maxDist float64) [][]float64 {
	if len(rows) < 3 {
		return cloneRows(rows)
	}
	xs, ys := columns(rows)
	dist := DistanceMetric(xs, ys)
	out := make([][]float64, 0, len(rows))
	markNext := false
	for i, r := range rows {
		row := append([]float64(nil), r...)
		stray := i > 0 && i+1 < len(rows) && r[sosCol] == 0 &&
			dist[i] > maxDist && dist[i+1] > maxDist
		if stray {
			markNext = true
			continue
		}
		if markNext {
			row[sosCol] = 1
			markNext = false
		}
		out = append(out, row)
	}
	return out
}

func columns(rows [][]float64) (xs, ys []float64) {
	xs = make([]float64, len(rows))
	ys = make([]float64, len(rows))
	for i, r := range rows {
		xs[i], ys[i] = r[0], r[1]
	}
	return
}

func cloneRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = append([]float64(nil), r...)
	}
	return out
}
