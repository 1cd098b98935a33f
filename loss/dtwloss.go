package loss

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/juruen/strokerecovery/coords"
	"github.com/juruen/strokerecovery/dtw"
)

const endpointWeight = 4

type dtwLoss struct {
	def   Definition
	basis []int
}

func newDTW(d Definition) (Func, error) {
	basis := d.MappingBasis
	if len(basis) == 0 {
		basis = d.LossIndices
	}
	return &dtwLoss{def: d, basis: basis}, nil
}

func (l *dtwLoss) Compute(it *Item) (*Result, error) {
	starts := it.starts(l.def.SOSIndex)
	pred := selectCols(it.Pred, l.basis)
	targ := selectCols(it.Targ, l.basis)
	opts := []dtw.Option{dtw.WithConstraint(l.def.Constraint)}

	res := &Result{Grad: zeros(it.Pred)}
	var al *dtw.Alignment
	matched := targ
	if l.def.Kind == DTWReverse {
		if len(it.TargReverse) != len(it.Targ) {
			return nil, errors.Errorf("loss %s: reversed targets missing", l.def.Name)
		}
		ra, err := dtw.AlignReverse(pred, targ, selectCols(it.TargReverse, l.basis), starts, opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "loss %s", l.def.Name)
		}
		al, matched = ra.Alignment, ra.Target
		res.Reversed = ra.Reversed
		l.bestOrientation(it, &al.Path, starts, res)
	} else {
		var err error
		al, err = dtw.Align(pred, targ, opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "loss %s", l.def.Name)
		}
		res.Value += l.aligned(it.Pred, it.Targ, &al.Path, span(0, al.Len()), 1, res.Grad)
	}

	path := dtw.Path{A: append([]int(nil), al.A...), B: append([]int(nil), al.B...)}
	res.Alignment = &path
	res.StrokeCosts = dtw.StrokeCosts(al, pred, matched, starts, true)

	if len(l.def.CrossEntropyIndices) > 0 {
		l.crossEntropy(it, &path, res)
	}
	if l.def.Kind == DTWSOSEOS {
		res.Value += l.aligned(it.Pred, it.Targ, &path, l.endpoints(it, &path), endpointWeight, res.Grad)
	}
	return res, nil
}

// aligned adds the weighted L1 distance over the given path positions.
func (l *dtwLoss) aligned(pred, targ [][]float64, p *dtw.Path, positions []int, weight float64, grad [][]float64) float64 {
	value := 0.0
	for _, q := range positions {
		a, b := p.A[q], p.B[q]
		for k, c := range l.def.LossIndices {
			d := pred[a][c] - targ[b][c]
			sc := weight * l.def.subcoef(k)
			value += math.Abs(d) * sc
			grad[a][c] += sign(d) * sc
		}
	}
	return value
}

func span(lo, hi int) []int {
	out := make([]int, 0, hi-lo)
	for q := lo; q < hi; q++ {
		out = append(out, q)
	}
	return out
}

// bestOrientation scores every stroke against the forward and reversed
// targets and keeps the cheaper one.
func (l *dtwLoss) bestOrientation(it *Item, p *dtw.Path, starts []int, res *Result) {
	if len(starts) == 0 || starts[0] != 0 {
		starts = append([]int{0}, starts...)
	}
	// first path position of every stroke
	var bounds []int
	for _, s := range starts {
		q := sort.SearchInts(p.B, s)
		if len(bounds) > 0 && q <= bounds[len(bounds)-1] {
			continue
		}
		bounds = append(bounds, q)
	}
	bounds = append(bounds, p.Len())

	for k := 0; k+1 < len(bounds); k++ {
		seg := span(bounds[k], bounds[k+1])
		fg, rg := zeros(it.Pred), zeros(it.Pred)
		fv := l.aligned(it.Pred, it.Targ, p, seg, 1, fg)
		rv := l.aligned(it.Pred, it.TargReverse, p, seg, 1, rg)
		g := fg
		if rv < fv {
			fv, g = rv, rg
		}
		res.Value += fv
		addInto(res.Grad, g)
	}
}

func (l *dtwLoss) crossEntropyTargets(it *Item, p *dtw.Path) [][]float64 {
	cols := make([][]float64, len(l.def.CrossEntropyIndices))
	for k, c := range l.def.CrossEntropyIndices {
		col := make([]float64, p.Len())
		for q, b := range p.B {
			col[q] = it.Targ[b][c]
		}
		if l.def.RelativefyCrossEntropy && len(col) > 0 {
			col = coords.Relativefy(col, false)
			col[0] = 1
		}
		cols[k] = col
	}
	return cols
}

func (l *dtwLoss) crossEntropy(it *Item, p *dtw.Path, res *Result) {
	targs := l.crossEntropyTargets(it, p)
	var xs, ys []float64
	for q, a := range p.A {
		for k, c := range l.def.CrossEntropyIndices {
			xs = append(xs, it.Pred[a][c])
			ys = append(ys, targs[k][q])
		}
	}
	v, g := bceWithLogits(xs, ys, true)
	res.Value += v * dtwBCEWeight
	n := len(l.def.CrossEntropyIndices)
	for q, a := range p.A {
		for k, c := range l.def.CrossEntropyIndices {
			res.Grad[a][c] += g[q*n+k] * dtwBCEWeight
		}
	}
}

// endpoints returns the path positions of stroke starts and the positions
// just before them.
func (l *dtwLoss) endpoints(it *Item, p *dtw.Path) []int {
	var flags []float64
	if len(l.def.CrossEntropyIndices) > 0 {
		flags = l.crossEntropyTargets(it, p)[0]
	} else {
		flags = make([]float64, p.Len())
		for q, b := range p.B {
			if l.def.SOSIndex >= 0 && l.def.SOSIndex < len(it.Targ[b]) {
				flags[q] = it.Targ[b][l.def.SOSIndex]
			}
		}
	}
	seen := map[int]bool{}
	var out []int
	var starts []int
	for q, f := range flags {
		if f != 0 {
			starts = append(starts, q)
		}
	}
	for i, q := range starts {
		seen[q] = true
		if i > 0 {
			seen[q-1] = true
		}
	}
	for q := range seen {
		out = append(out, q)
	}
	sort.Ints(out)
	return out
}

func addInto(dst, src [][]float64) {
	for i := range dst {
		for j := range dst[i] {
			dst[i][j] += src[i][j]
		}
	}
}
