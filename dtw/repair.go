package dtw

import (
	"github.com/juruen/strokerecovery/log"
)

// RepairOptions configure Repair.
type RepairOptions struct {
	// Buffer is the number of target columns after the stroke that are
	// recomputed along with it.
	Buffer int
	// Candidates is how many of the most expensive strokes are tried.
	Candidates int
	// Normalize ranks strokes by cost per aligned pair.
	Normalize bool
	// Fixed lists target columns that keep their position when a stroke is
	// reversed, such as start-of-stroke flags.
	Fixed []int
}

// RepairResult describes the outcome of a repair attempt.
type RepairResult struct {
	*Alignment
	// Target is the target the path refers to. It equals the input target
	// unless a stroke was reversed.
	Target [][]float64
	// Improved is false when no candidate lowered the cost.
	Improved bool
	// Stroke is the reversed stroke, or -1.
	Stroke int
	// Lo and Hi are the recomputed matrix columns, inclusive.
	Lo, Hi int

	OldExit, NewExit float64
}

type repairCandidate struct {
	stroke  int
	target  [][]float64
	win     *window
	path    *Path
	oldExit float64
	exit    float64
}

// Repair tries to lower the cost of al by reversing one badly aligned target
// stroke. Only the columns of that stroke plus Buffer are recomputed, from
// the untouched column to their left. The new path is traced back through
// the window and the untouched prefix and joined to the old path after the
// window. A reversal is kept only if the cost of the window exit cell drops.
//
// Cells of the returned matrix outside [Lo, Hi] are identical to al.Matrix.
func Repair(al *Alignment, pred, targ [][]float64, starts []int, opts RepairOptions) *RepairResult {
	n := len(targ)
	if al.Matrix.Rows != len(pred)+1 || al.Matrix.Cols != n+1 {
		panic("dtw: alignment matrix does not match sequence lengths")
	}
	if opts.Candidates <= 0 {
		opts.Candidates = 1
	}

	costs := StrokeCosts(al, pred, targ, starts, opts.Normalize)
	var best *repairCandidate
	for _, sc := range Worst(costs, opts.Candidates) {
		cand := tryReverse(al, pred, targ, sc, opts)
		if cand == nil {
			continue
		}
		log.Trace.Printf("repair: stroke %d exit cost %g -> %g", sc.Stroke, cand.oldExit, cand.exit)
		if best == nil || cand.oldExit-cand.exit > best.oldExit-best.exit {
			best = cand
		}
	}

	if best == nil {
		return &RepairResult{Alignment: al, Target: targ, Stroke: -1}
	}

	c := al.Matrix.Clone()
	best.win.apply(c)
	return &RepairResult{
		Alignment: &Alignment{
			Path:   *best.path,
			Cost:   best.exit + (al.Cost - best.oldExit),
			Matrix: c,
			opts:   al.opts,
		},
		Target:   best.target,
		Improved: true,
		Stroke:   best.stroke,
		Lo:       best.win.lo,
		Hi:       best.win.hi,
		OldExit:  best.oldExit,
		NewExit:  best.exit,
	}
}

func tryReverse(al *Alignment, pred, targ [][]float64, sc StrokeCost, opts RepairOptions) *repairCandidate {
	n := len(targ)
	lo := sc.Start + 1
	hi := sc.End + opts.Buffer
	if hi > n {
		hi = n
	}

	target := reverseSpan(targ, sc.Start, sc.End, opts.Fixed)
	w := computeWindow(al.Matrix, pred, target[lo-1:hi], lo, al.opts)

	// the last pair in the final window column is where the old path leaves
	exit := -1
	for p := range al.B {
		if al.B[p] == hi-1 {
			exit = p
		}
	}
	if exit < 0 {
		panic("dtw: alignment path does not cover target")
	}
	ei := al.A[exit] + 1

	oldExit, newExit := al.Matrix.At(ei, hi), w.at(ei, hi)
	if newExit >= Sentinel || newExit >= oldExit {
		return nil
	}

	at := func(i, j int) float64 {
		if w.contains(j) {
			return w.at(i, j)
		}
		return al.Matrix.At(i, j)
	}
	path := traceback(ei, hi, at)
	path.reverse()
	for p := exit + 1; p < al.Len(); p++ {
		path.push(al.A[p], al.B[p])
	}

	return &repairCandidate{
		stroke:  sc.Stroke,
		target:  target,
		win:     w,
		path:    path,
		oldExit: oldExit,
		exit:    newExit,
	}
}

// reverseSpan returns targ with rows [s, e) in reverse order. Columns in
// fixed keep their values. Rows outside the span are shared.
func reverseSpan(targ [][]float64, s, e int, fixed []int) [][]float64 {
	out := append([][]float64(nil), targ...)
	keep := make(map[int]bool, len(fixed))
	for _, c := range fixed {
		keep[c] = true
	}
	for i := s; i < e; i++ {
		src := targ[s+e-1-i]
		row := append([]float64(nil), targ[i]...)
		for c := range row {
			if !keep[c] {
				row[c] = src[c]
			}
		}
		out[i] = row
	}
	return out
}
