// Package dtw aligns predicted and ground-truth point sequences with
// dynamic time warping.
package dtw

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

var (
	// ErrEmptySequence is returned when either sequence has no points.
	ErrEmptySequence = errors.New("dtw: empty sequence")
	// ErrUnreachable is returned when the band constraint leaves no path to
	// the end cell.
	ErrUnreachable = errors.New("dtw: end cell unreachable, band too narrow")
)

// Distance is the pointwise cost between two points.
type Distance func(a, b []float64) float64

// SquaredEuclidean is the default distance.
func SquaredEuclidean(a, b []float64) float64 {
	checkDims(a, b)
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// Euclidean is the plain L2 distance.
func Euclidean(a, b []float64) float64 {
	return math.Sqrt(SquaredEuclidean(a, b))
}

// Manhattan is the L1 distance.
func Manhattan(a, b []float64) float64 {
	checkDims(a, b)
	s := 0.0
	for i := range a {
		s += math.Abs(a[i] - b[i])
	}
	return s
}

func checkDims(a, b []float64) {
	if len(a) != len(b) {
		panic(fmt.Sprintf("dtw: point dimensions differ: %d != %d", len(a), len(b)))
	}
}

type options struct {
	constraint int
	dist       Distance
}

// Option configures an alignment.
type Option func(*options)

// WithConstraint limits the search to cells with |i-j| <= k. k <= 0 disables
// the band.
func WithConstraint(k int) Option {
	return func(o *options) {
		o.constraint = k
	}
}

// WithDistance swaps the pointwise distance.
func WithDistance(d Distance) Option {
	return func(o *options) {
		if d != nil {
			o.dist = d
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{dist: SquaredEuclidean}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) inBand(i, j int) bool {
	if o.constraint <= 0 {
		return true
	}
	d := i - j
	if d < 0 {
		d = -d
	}
	return d <= o.constraint
}

// Path is an ordered list of aligned index pairs.
type Path struct {
	A []int
	B []int
}

// Len returns the number of pairs.
func (p *Path) Len() int {
	return len(p.A)
}

func (p *Path) push(a, b int) {
	p.A = append(p.A, a)
	p.B = append(p.B, b)
}

func (p *Path) reverse() {
	for l, r := 0, len(p.A)-1; l < r; l, r = l+1, r-1 {
		p.A[l], p.A[r] = p.A[r], p.A[l]
		p.B[l], p.B[r] = p.B[r], p.B[l]
	}
}

// Alignment is the result of a DTW run.
type Alignment struct {
	Path
	// Cost is the cumulative cost of the path.
	Cost   float64
	Matrix *Matrix

	opts *options
}

// Constraint returns the band used for the alignment.
func (al *Alignment) Constraint() int {
	return al.opts.constraint
}

// Distance returns the pointwise distance used for the alignment.
func (al *Alignment) Distance() Distance {
	return al.opts.dist
}

// Align computes the least-cost monotonic alignment of pred against targ.
func Align(pred, targ [][]float64, opts ...Option) (*Alignment, error) {
	o := newOptions(opts)
	if len(pred) == 0 || len(targ) == 0 {
		return nil, ErrEmptySequence
	}
	c := newMatrix(len(pred)+1, len(targ)+1)
	computeWindow(c, pred, targ, 1, o).apply(c)
	return finish(c, o)
}

func finish(c *Matrix, o *options) (*Alignment, error) {
	m, n := c.Rows-1, c.Cols-1
	cost := c.At(m, n)
	if cost >= Sentinel {
		return nil, errors.Wrapf(ErrUnreachable, "m=%d n=%d constraint=%d", m, n, o.constraint)
	}
	p := traceback(m, n, c.At)
	p.reverse()
	return &Alignment{Path: *p, Cost: cost, Matrix: c, opts: o}, nil
}

const (
	diagonal = iota
	vertical
	horizontal
)

// argmin3 picks the move with the lowest cost. Ties prefer the diagonal,
// then the vertical move.
func argmin3(diag, vert, horiz float64) int {
	if diag <= vert && diag <= horiz {
		return diagonal
	}
	if vert <= horiz {
		return vertical
	}
	return horizontal
}

// traceback walks from matrix cell (i, j) back to (1, 1) and returns the
// visited pairs as sequence indices, end first.
func traceback(i, j int, at func(i, j int) float64) *Path {
	p := &Path{}
	p.push(i-1, j-1)
	for i > 1 || j > 1 {
		switch argmin3(at(i-1, j-1), at(i-1, j), at(i, j-1)) {
		case diagonal:
			i--
			j--
		case vertical:
			i--
		default:
			j--
		}
		p.push(i-1, j-1)
	}
	return p
}
