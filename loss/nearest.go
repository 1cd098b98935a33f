package loss

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/juruen/strokerecovery/gt"
)

// pointIndex is a KD tree over rows that can report which row a neighbour
// came from. The tree is read only once built.
type pointIndex struct {
	tree  *kdtree.Tree
	index map[string]int
}

func key(p []float64) string {
	var b strings.Builder
	for i, v := range p {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(math.Float64bits(v), 16))
	}
	return b.String()
}

func newPointIndex(rows [][]float64) *pointIndex {
	pts := make(kdtree.Points, len(rows))
	idx := make(map[string]int, len(rows))
	for i, r := range rows {
		p := append(kdtree.Point(nil), r...)
		pts[i] = p
		k := key(p)
		if _, ok := idx[k]; !ok {
			idx[k] = i
		}
	}
	// New reorders pts, the map keeps the original rows
	return &pointIndex{tree: kdtree.New(pts, false), index: idx}
}

// nearest returns the row closest to q.
func (pi *pointIndex) nearest(q []float64) int {
	c, _ := pi.tree.Nearest(kdtree.Point(q))
	return pi.index[key(c.(kdtree.Point))]
}

type nearest struct {
	def Definition
}

func newNearest(d Definition) (Func, error) {
	return &nearest{def: d}, nil
}

// Compute pulls every prediction towards its nearest target and every
// target's nearest prediction towards it.
func (l *nearest) Compute(it *Item) (*Result, error) {
	res := &Result{Grad: zeros(it.Pred)}
	if len(it.Pred) == 0 || len(it.Targ) == 0 {
		return res, nil
	}
	pred := selectCols(it.Pred, l.def.LossIndices)
	targ := selectCols(it.Targ, l.def.LossIndices)
	targTree := newPointIndex(targ)
	predTree := newPointIndex(pred)

	for i, p := range pred {
		t := targ[targTree.nearest(p)]
		for k, c := range l.def.LossIndices {
			d := p[k] - t[k]
			res.Value += math.Abs(d) * l.def.subcoef(k)
			res.Grad[i][c] += sign(d) * l.def.subcoef(k)
		}
	}
	for _, t := range targ {
		i := predTree.nearest(t)
		for k, c := range l.def.LossIndices {
			d := pred[i][k] - t[k]
			res.Value += math.Abs(d)
			res.Grad[i][c] += sign(d)
		}
	}
	return res, nil
}

type crossEntropy struct {
	def    Definition
	logits bool
}

func newCrossEntropy(d Definition) (Func, error) {
	return &crossEntropy{def: d, logits: d.Activation == "sigmoid"}, nil
}

func (l *crossEntropy) Compute(it *Item) (*Result, error) {
	if len(it.Pred) != len(it.Targ) {
		return nil, errorLength(l.def.Name, it)
	}
	var xs, ys []float64
	for i, p := range it.Pred {
		for _, c := range l.def.LossIndices {
			xs = append(xs, p[c])
			ys = append(ys, it.Targ[i][c])
		}
	}
	var v float64
	var g []float64
	if l.logits {
		v, g = bceWithLogits(xs, ys, false)
	} else {
		v, g = bce(xs, ys)
	}
	res := &Result{Value: v, Grad: zeros(it.Pred)}
	n := len(l.def.LossIndices)
	for i := range it.Pred {
		for k, c := range l.def.LossIndices {
			res.Grad[i][c] = g[i*n+k]
		}
	}
	return res, nil
}

// ssl labels the prediction nearest to every ground truth stroke start as
// a start and scores the predicted start flags against those labels.
type ssl struct {
	def Definition
	xy  []int
}

func newSSL(d Definition) (Func, error) {
	l := &ssl{def: d, xy: []int{0, 1}}
	if len(d.Format) > 0 {
		x, y := d.Format.Index(gt.X), d.Format.Index(gt.Y)
		if x < 0 || y < 0 {
			return nil, errors.Errorf("loss %s: gt format has no x and y columns", d.Name)
		}
		l.xy = []int{x, y}
	}
	return l, nil
}

func (l *ssl) Compute(it *Item) (*Result, error) {
	res := &Result{Grad: zeros(it.Pred)}
	if len(it.Pred) == 0 {
		return res, nil
	}
	tree := newPointIndex(selectCols(it.Pred, l.xy))
	fitted := make([]float64, len(it.Pred))
	for _, s := range it.starts(l.def.SOSIndex) {
		fitted[tree.nearest(selectCols(it.Targ[s:s+1], l.xy)[0])] = 1
	}

	ps := make([]float64, len(it.Pred))
	for i, p := range it.Pred {
		ps[i] = p[l.def.SOSIndex]
	}
	v, g := bce(ps, fitted)
	res.Value = v
	for i := range it.Pred {
		res.Grad[i][l.def.SOSIndex] = g[i]
	}
	return res, nil
}
