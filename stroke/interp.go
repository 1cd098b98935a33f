package stroke

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/interp"
)

// Param selects the clock a Dict is sampled by.
type Param int

const (
	// ByTime samples against T.
	ByTime Param = iota
	// ByDistance samples against D.
	ByDistance
)

// Curve is a continuous 1-d function of the chosen parameter.
type Curve struct {
	pl   interp.PiecewiseLinear
	last float64
}

// At evaluates the curve. Queries past the last knot return the last value.
func (c *Curve) At(t float64) float64 {
	return c.pl.Predict(t)
}

// End returns the parameter value of the last knot.
func (c *Curve) End() float64 {
	return c.last
}

// NewCurve fits a piecewise linear curve through (ts, vs). Knots whose
// parameter does not strictly increase are dropped.
func NewCurve(ts, vs []float64) (*Curve, error) {
	checkLen(ts, vs)
	kt := make([]float64, 0, len(ts))
	kv := make([]float64, 0, len(vs))
	for i, t := range ts {
		if math.IsNaN(t) || math.IsNaN(vs[i]) {
			continue
		}
		if len(kt) > 0 && t <= kt[len(kt)-1] {
			continue
		}
		kt = append(kt, t)
		kv = append(kv, vs[i])
	}
	if len(kt) < 2 {
		return nil, errors.Wrapf(ErrDegenerateStroke, "need 2 distinct knots, have %d", len(kt))
	}
	c := &Curve{last: kt[len(kt)-1]}
	if err := c.pl.Fit(kt, kv); err != nil {
		return nil, errors.Wrap(err, "fit curve")
	}
	return c, nil
}

// Interpolants returns x(p) and y(p) for the chosen parameter.
func Interpolants(d *Dict, p Param) (fx, fy *Curve, err error) {
	param := d.T
	if p == ByDistance {
		param = d.D
	}
	if fx, err = NewCurve(param, d.X); err != nil {
		return nil, nil, errors.Wrap(err, "x curve")
	}
	if fy, err = NewCurve(param, d.Y); err != nil {
		return nil, nil, errors.Wrap(err, "y curve")
	}
	return fx, fy, nil
}

// Starts returns the stroke boundary markers matching the parameter.
func (d *Dict) Starts(p Param) []float64 {
	if p == ByDistance {
		return d.StartDistances
	}
	return d.StartTimes
}
