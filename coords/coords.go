// Package coords converts between absolute point coordinates and the
// relative deltas a model may predict.
package coords

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/juruen/strokerecovery/log"
)

// Relativefy turns absolute values into deltas, the first one taken from an
// implicit zero origin. With reverse it sums deltas back into absolute
// values. x is not modified.
func Relativefy(x []float64, reverse bool) []float64 {
	out := make([]float64, len(x))
	if reverse {
		return floats.CumSum(out, x)
	}
	if len(x) == 0 {
		return out
	}
	out[0] = x[0]
	for i := 1; i < len(x); i++ {
		out[i] = x[i] - x[i-1]
	}
	return out
}

// RelativefyColumns applies Relativefy to the given columns of rows and
// copies the others.
func RelativefyColumns(rows [][]float64, cols []int, reverse bool) [][]float64 {
	out := cloneRows(rows)
	for _, c := range cols {
		col := Relativefy(column(rows, c), reverse)
		for i := range out {
			out[i][c] = col[i]
		}
	}
	return out
}

// Kind selects how relative predictions become absolute.
type Kind string

const (
	// Cumsum is a plain running sum of the predicted deltas.
	Cumsum Kind = "cumsum"
	// ConvWeight mixes the last K predicted deltas with the ground truth
	// deltas using a linear ramp, anchored at the ground truth K steps back.
	ConvWeight Kind = "conv_weight"
	// ConvWindow sums the last K predicted deltas, anchored at the ground
	// truth K steps back.
	ConvWindow Kind = "conv_window"
)

// DefaultKernelLength is the window used when none is configured.
const DefaultKernelLength = 9

// Convolver reconstructs absolute coordinates from predicted deltas.
// It is immutable once built and safe for concurrent use.
type Convolver struct {
	kind    Kind
	length  int
	kernel  []float64
	inverse []float64
}

// NewConvolver builds a convolver. length <= 0 selects DefaultKernelLength.
func NewConvolver(kind Kind, length int) (*Convolver, error) {
	if length <= 0 {
		length = DefaultKernelLength
	}
	c := &Convolver{kind: kind, length: length}
	switch kind {
	case Cumsum:
	case ConvWeight:
		if length < 2 {
			return nil, errors.Errorf("conv_weight needs a kernel of at least 2, got %d", length)
		}
		c.kernel = make([]float64, length)
		c.inverse = make([]float64, length)
		for u := range c.kernel {
			c.kernel[u] = float64(u) / float64(length-1)
			c.inverse[u] = 1 - c.kernel[u]
		}
	case ConvWindow:
		c.kernel = make([]float64, length)
		for u := range c.kernel {
			c.kernel[u] = 1
		}
	default:
		return nil, errors.Errorf("unknown convolve kind %q", kind)
	}
	log.Trace.Printf("convolver %s kernel length %d", kind, length)
	return c, nil
}

// Kind returns the configured kind.
func (c *Convolver) Kind() Kind {
	return c.kind
}

// KernelLength returns the window length.
func (c *Convolver) KernelLength() int {
	return c.length
}

// Convolve returns predRel with cols replaced by absolute estimates. The
// result has as many rows as gtAbs; extra predictions are dropped.
func (c *Convolver) Convolve(predRel, gtAbs [][]float64, cols []int) [][]float64 {
	width := len(gtAbs)
	if len(predRel) < width {
		panic(fmt.Sprintf("coords: %d predictions for %d ground truth points", len(predRel), width))
	}
	out := cloneRows(predRel[:width])
	for _, col := range cols {
		pred := column(predRel[:width], col)
		var abs []float64
		if c.kind == Cumsum {
			abs = Relativefy(pred, true)
		} else {
			gt := column(gtAbs, col)
			abs = c.correlate(pred, c.kernel)
			if c.inverse != nil {
				floats.Add(abs, c.correlate(Relativefy(gt, false), c.inverse))
			}
			for t := c.length; t < width; t++ {
				abs[t] += gt[t-c.length]
			}
		}
		for i := range out {
			out[i][col] = abs[i]
		}
	}
	return out
}

// correlate computes out[t] = sum over u of k[u]*x[t-K+1+u], with x taken
// as zero before the start.
func (c *Convolver) correlate(x, k []float64) []float64 {
	out := make([]float64, len(x))
	for t := range out {
		s := 0.0
		for u, w := range k {
			if i := t - c.length + 1 + u; i >= 0 {
				s += w * x[i]
			}
		}
		out[t] = s
	}
	return out
}

// Backward maps a gradient on the output of Convolve back onto the
// predictions it was computed from. predLen is the number of prediction
// rows that were passed in; rows that Convolve dropped get a zero gradient.
func (c *Convolver) Backward(gradAbs [][]float64, predLen int, cols []int) [][]float64 {
	width := len(gradAbs)
	dims := 0
	if width > 0 {
		dims = len(gradAbs[0])
	}
	out := make([][]float64, predLen)
	for i := range out {
		out[i] = make([]float64, dims)
		if i < width {
			copy(out[i], gradAbs[i])
		}
	}
	for _, col := range cols {
		g := column(gradAbs, col)
		var back []float64
		if c.kind == Cumsum {
			back = make([]float64, width)
			run := 0.0
			for s := width - 1; s >= 0; s-- {
				run += g[s]
				back[s] = run
			}
		} else {
			back = make([]float64, width)
			for s := range back {
				v := 0.0
				for u, w := range c.kernel {
					if t := s + c.length - 1 - u; t < width {
						v += w * g[t]
					}
				}
				back[s] = v
			}
		}
		for i := range back {
			out[i][col] = back[i]
		}
	}
	return out
}

func column(rows [][]float64, c int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r[c]
	}
	return out
}

func cloneRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = append([]float64(nil), r...)
	}
	return out
}
