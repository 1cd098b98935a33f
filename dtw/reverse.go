package dtw

import (
	"fmt"
	"math"
)

// ReverseAlignment is an alignment against a target whose strokes were each
// taken forwards or backwards, whichever matched the prediction better.
type ReverseAlignment struct {
	*Alignment
	// Reversed reports, per stroke, whether the backwards orientation won.
	Reversed []bool
	// Target is the composite target the path refers to.
	Target [][]float64
}

// AlignReverse aligns pred against targ choosing the orientation of every
// stroke on the fly. rev is targ with each stroke reversed in place and
// starts holds the target index of every stroke start.
//
// Strokes are decided left to right. Both orientations of a stroke are
// computed from the same entering column and the one with the cheaper exit
// column wins; the final stroke compares the end cell instead. Ties keep the
// forward orientation.
func AlignReverse(pred, targ, rev [][]float64, starts []int, opts ...Option) (*ReverseAlignment, error) {
	o := newOptions(opts)
	if len(pred) == 0 || len(targ) == 0 {
		return nil, ErrEmptySequence
	}
	if len(rev) != len(targ) {
		panic(fmt.Sprintf("dtw: reversed target has %d points, target %d", len(rev), len(targ)))
	}

	m := len(pred)
	c := newMatrix(m+1, len(targ)+1)
	spans := strokeSpans(starts, len(targ))
	reversed := make([]bool, len(spans))
	composite := make([][]float64, 0, len(targ))

	for k, sp := range spans {
		s, e := sp[0], sp[1]
		fwd := computeWindow(c, pred, targ[s:e], s+1, o)
		bwd := computeWindow(c, pred, rev[s:e], s+1, o)

		var fc, bc float64
		if k == len(spans)-1 {
			fc, bc = fwd.at(m, e), bwd.at(m, e)
		} else {
			fc, bc = fwd.columnMin(e), bwd.columnMin(e)
		}

		if bc < fc {
			reversed[k] = true
			bwd.apply(c)
			composite = append(composite, rev[s:e]...)
		} else {
			fwd.apply(c)
			composite = append(composite, targ[s:e]...)
		}
	}

	al, err := finish(c, o)
	if err != nil {
		return nil, err
	}
	return &ReverseAlignment{Alignment: al, Reversed: reversed, Target: composite}, nil
}

func (w *window) columnMin(j int) float64 {
	m := math.Inf(1)
	for i := 0; i < w.rows; i++ {
		m = math.Min(m, w.at(i, j))
	}
	return m
}

// strokeSpans turns start indices into [start, end) target ranges covering
// every index from 0 to n.
func strokeSpans(starts []int, n int) [][2]int {
	var clean []int
	if len(starts) == 0 || starts[0] != 0 {
		clean = append(clean, 0)
	}
	for _, s := range starts {
		if s < 0 || s >= n {
			panic(fmt.Sprintf("dtw: stroke start %d outside target of length %d", s, n))
		}
		if len(clean) > 0 && s <= clean[len(clean)-1] {
			continue
		}
		clean = append(clean, s)
	}
	spans := make([][2]int, len(clean))
	for i, s := range clean {
		e := n
		if i+1 < len(clean) {
			e = clean[i+1]
		}
		spans[i] = [2]int{s, e}
	}
	return spans
}
