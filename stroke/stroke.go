// Package stroke turns raw pen trajectories into normalised, resampleable
// curves parameterised by time and by arc length.
package stroke

import (
	"github.com/pkg/errors"
)

// Epsilon is the distance assigned to pen-up transitions and the unit of
// the minimal synthetic pen-up duration.
const Epsilon = 1e-8

// endPadding is added to the duplicated final point so that interpolants
// can be queried slightly past the end of the sequence.
const endPadding = 10

// ErrDegenerateStroke is returned when an image cannot be normalised or
// interpolated.
var ErrDegenerateStroke = errors.New("degenerate stroke")

// Point is one sample of a pen trajectory.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T float64 `json:"t"`
}

// Stroke is one continuous pen-down segment.
type Stroke struct {
	Points []Point `json:"points"`
}

// Len returns the number of points.
func (s Stroke) Len() int {
	return len(s.Points)
}

// Reverse returns a copy of the stroke drawn in the opposite direction.
// Timestamps keep their original order so the reversed stroke still
// occupies the same time span.
func (s Stroke) Reverse() Stroke {
	n := len(s.Points)
	out := make([]Point, n)
	for i, p := range s.Points {
		q := s.Points[n-1-i]
		out[i] = Point{X: q.X, Y: q.Y, T: p.T}
	}
	return Stroke{Points: out}
}

// Coords splits the stroke into parallel coordinate slices.
func (s Stroke) Coords() (xs, ys, ts []float64) {
	xs = make([]float64, len(s.Points))
	ys = make([]float64, len(s.Points))
	ts = make([]float64, len(s.Points))
	for i, p := range s.Points {
		xs[i], ys[i], ts[i] = p.X, p.Y, p.T
	}
	return
}

// PointCount returns the total number of points over all strokes.
func PointCount(strokes []Stroke) int {
	n := 0
	for _, s := range strokes {
		n += len(s.Points)
	}
	return n
}
