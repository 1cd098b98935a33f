package dtw

import "sort"

// StrokeCost is the share of an alignment's cost attributed to one target
// stroke.
type StrokeCost struct {
	Stroke int
	Start  int
	End    int
	Cost   float64
	// Pairs is the number of path pairs that touch the stroke.
	Pairs int
}

// StrokeCosts splits the path cost of al over the target strokes beginning
// at starts. With normalize the cost of each stroke is divided by its pair
// count.
func StrokeCosts(al *Alignment, pred, targ [][]float64, starts []int, normalize bool) []StrokeCost {
	spans := strokeSpans(starts, len(targ))
	out := make([]StrokeCost, len(spans))
	owner := make([]int, len(targ))
	for k, sp := range spans {
		out[k] = StrokeCost{Stroke: k, Start: sp[0], End: sp[1]}
		for j := sp[0]; j < sp[1]; j++ {
			owner[j] = k
		}
	}

	dist := al.Distance()
	for p := range al.A {
		a, b := al.A[p], al.B[p]
		sc := &out[owner[b]]
		sc.Cost += dist(pred[a], targ[b])
		sc.Pairs++
	}
	if normalize {
		for k := range out {
			if out[k].Pairs > 0 {
				out[k].Cost /= float64(out[k].Pairs)
			}
		}
	}
	return out
}

// Worst returns the n most expensive strokes, most expensive first.
func Worst(costs []StrokeCost, n int) []StrokeCost {
	ranked := append([]StrokeCost(nil), costs...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Cost > ranked[j].Cost
	})
	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}
