package stroke

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/juruen/strokerecovery/log"
)

// Options control how raw strokes are turned into a Dict.
type Options struct {
	// TimeInterval is the synthetic duration of each pen-up. Values below
	// Epsilon are replaced by 3*Epsilon.
	TimeInterval float64
	// ScaleTimeDistance rescales time so one unit of time matches one unit
	// of normalised arc length.
	ScaleTimeDistance bool
}

// DefaultOptions matches the preprocessing used for training data.
func DefaultOptions() Options {
	return Options{ScaleTimeDistance: true}
}

// Dict is the normalised representation of one image's strokes.
//
// X, Y, T, D and StartStrokes all carry one extra trailing element: the
// final point repeated 10 time units (and distance units) later.
// StartTimes and StartDistances hold one marker per stroke plus a final
// marker for the end of the sequence.
type Dict struct {
	X              []float64 `json:"x"`
	Y              []float64 `json:"y"`
	T              []float64 `json:"t"`
	D              []float64 `json:"d"`
	StartStrokes   []float64 `json:"start_strokes"`
	StartTimes     []float64 `json:"start_times"`
	StartDistances []float64 `json:"start_distances"`
	XToY           float64   `json:"x_to_y"`
	Scale          float64   `json:"scale"`
	TimeFactor     float64   `json:"time_factor"`
	TMin           float64   `json:"tmin"`
	TMax           float64   `json:"tmax"`
	TRange         float64   `json:"trange"`
	DRange         float64   `json:"drange"`
	Raw            []Stroke  `json:"-"`
}

// Len returns the number of points including the repeated end point.
func (d *Dict) Len() int {
	return len(d.X)
}

// StrokeCount returns the number of strokes.
func (d *Dict) StrokeCount() int {
	return len(d.StartTimes) - 1
}

// Prepare concatenates the strokes of one image into a Dict.
func Prepare(strokes []Stroke, opts Options) (*Dict, error) {
	timeInterval := opts.TimeInterval
	if timeInterval < Epsilon {
		timeInterval = Epsilon * 3
	}

	var (
		xs, ys, ts   []float64
		startStrokes []float64
		startTimes   []float64
		distance     float64
		kept         []Stroke
	)

	for i, s := range strokes {
		if len(s.Points) == 0 {
			log.Trace.Printf("prepare: skipping empty stroke %d", i)
			continue
		}
		if len(s.Points) < 2 {
			return nil, errors.Wrapf(ErrDegenerateStroke, "stroke %d has %d point", i, len(s.Points))
		}
		sx, sy, st := s.Coords()
		distance += floats.Sum(DistanceMetric(sx, sy))

		xs = append(xs, sx...)
		ys = append(ys, sy...)
		startStrokes = append(startStrokes, 1)
		startStrokes = append(startStrokes, make([]float64, len(sx)-1)...)

		// shift the stroke so it begins timeInterval after the last one ended
		if len(kept) > 0 {
			offset := timeInterval + ts[len(ts)-1] - st[0]
			floats.AddConst(offset, st)
		}
		ts = append(ts, st...)
		startTimes = append(startTimes, st[0])
		kept = append(kept, s)
	}

	if len(kept) == 0 {
		return nil, errors.Wrap(ErrDegenerateStroke, "no strokes")
	}

	// the final marker is the end of the last stroke
	startTimes = append(startTimes, ts[len(ts)-1])
	startStrokes = append(startStrokes, 0)

	floats.AddConst(-ts[0], ts)
	floats.AddConst(-startTimes[0], startTimes)

	ny, scale := normalize(ys, 0)
	if scale == 0 {
		return nil, errors.Wrap(ErrDegenerateStroke, "zero y range")
	}
	nx, _ := normalize(xs, scale)
	distance /= scale

	timeFactor := 1.0
	if opts.ScaleTimeDistance {
		last := ts[len(ts)-1]
		if last <= 0 {
			return nil, errors.Wrap(ErrDegenerateStroke, "zero duration")
		}
		timeFactor = distance / last
		floats.Scale(timeFactor, ts)
		floats.Scale(timeFactor, startTimes)
	}

	// repeat the last point so interpolation holds still after the end
	n := len(nx)
	nx = append(nx, nx[n-1])
	ny = append(ny, ny[n-1])
	ts = append(ts, ts[n-1]+endPadding)

	d := Reparameterize(nx, ny, startStrokes, true)

	var startDistances []float64
	for i, s := range startStrokes {
		if s == 1 {
			startDistances = append(startDistances, d[i])
		}
	}
	startDistances = append(startDistances, d[len(d)-2])

	k := len(startTimes)
	out := &Dict{
		X:              nx,
		Y:              ny,
		T:              ts,
		D:              d,
		StartStrokes:   startStrokes,
		StartTimes:     startTimes,
		StartDistances: startDistances,
		XToY:           floats.Max(nx) / floats.Max(ny),
		Scale:          scale,
		TimeFactor:     timeFactor,
		TMin:           startTimes[0],
		TMax:           startTimes[k-2],
		TRange:         startTimes[k-2] - startTimes[0],
		DRange:         d[len(d)-2] - d[0],
		Raw:            kept,
	}
	log.Trace.Printf("prepare: %d strokes, %d points, scale %.3f", len(kept), n, scale)
	return out, nil
}
