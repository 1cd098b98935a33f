package stroke

import (
	"gonum.org/v1/gonum/floats"
)

// Substrokes splits a Dict into overlapping windows of n consecutive
// strokes, each renormalised on its own. A Dict with no more than n strokes
// is returned unchanged. n <= 0 also returns the Dict unchanged.
func Substrokes(d *Dict, n int) []*Dict {
	if n <= 0 {
		return []*Dict{d}
	}
	// the repeated end point carries no start flag, so the trailing
	// boundary is the end of the real sequence
	starts := SOSArgs(d.StartStrokes)
	bounds := append(append([]int(nil), starts...), d.Len()-1)
	if len(bounds) <= n+1 {
		return []*Dict{d}
	}

	var out []*Dict
	for k := 0; k+n < len(bounds); k++ {
		lo, hi := bounds[k], bounds[k+n]
		ts := append([]float64(nil), d.T[lo:hi]...)
		y, scale := normalize(d.Y[lo:hi], 0)
		if scale == 0 {
			continue
		}
		x, _ := normalize(d.X[lo:hi], scale)
		startTimes := append([]float64(nil), d.StartTimes[k:k+n+1]...)
		t0 := ts[0]
		floats.AddConst(-t0, ts)
		floats.AddConst(-t0, startTimes)

		sub := &Dict{
			X:            x,
			Y:            y,
			T:            ts,
			StartStrokes: append([]float64(nil), d.StartStrokes[lo:hi]...),
			StartTimes:   startTimes,
			XToY:         floats.Max(x) / floats.Max(y),
			Scale:        scale,
			TimeFactor:   d.TimeFactor,
		}
		if k+n <= len(d.Raw) {
			sub.Raw = d.Raw[k : k+n]
		}
		sub.D = Reparameterize(sub.X, sub.Y, sub.StartStrokes, false)
		sub.TMin = startTimes[0]
		sub.TMax = startTimes[len(startTimes)-1]
		sub.TRange = sub.TMax - sub.TMin
		sub.DRange = sub.D[len(sub.D)-1] - sub.D[0]
		for i, s := range sub.StartStrokes {
			if s == 1 {
				sub.StartDistances = append(sub.StartDistances, sub.D[i])
			}
		}
		sub.StartDistances = append(sub.StartDistances, sub.D[len(sub.D)-1])
		out = append(out, sub)
	}
	return out
}
