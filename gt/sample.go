// Package gt samples ground-truth point sequences from prepared strokes.
package gt

import (
	"math"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
)

// Noise selects the timing jitter applied when sampling.
type Noise string

const (
	NoNoise     Noise = ""
	RandomNoise Noise = "random"
	LaggedNoise Noise = "lagged"
)

const (
	momentum       = .8
	decayWindow    = 100
	decayBase      = .9
	jitterFraction = 4
)

// ParseNoise validates a noise name.
func ParseNoise(s string) (Noise, error) {
	switch Noise(s) {
	case NoNoise, RandomNoise, LaggedNoise:
		return Noise(s), nil
	case "none":
		return NoNoise, nil
	}
	return NoNoise, errors.Errorf("unknown noise %q", s)
}

// Func is a continuous coordinate function.
type Func interface {
	At(t float64) float64
}

// Samples are points taken from a pair of coordinate functions.
type Samples struct {
	T           []float64
	X           []float64
	Y           []float64
	StartStroke []float64
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if n == 1 {
		out[0] = lo
		return out
	}
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}

// Sample evaluates fx and fy at n times spread over [0, starts[last]].
// starts holds the start time of every stroke followed by the end of the
// sequence. rng may be nil when noise is NoNoise.
func Sample(fx, fy Func, starts []float64, n int, noise Noise, rng *rand.Rand) (*Samples, error) {
	if n < 1 {
		return nil, errors.Errorf("number of samples must be positive, got %d", n)
	}
	if len(starts) < 2 {
		return nil, errors.Errorf("need at least one stroke and an end marker, got %d markers", len(starts))
	}
	last := starts[len(starts)-1]
	times := Linspace(0, last, n)

	if noise != NoNoise {
		if rng == nil {
			return nil, errors.New("noise requires a random source")
		}
		jitter(times, last, noise, rng)
	}

	flags := make([]float64, n)
	idx := 0
	flags[0] = 1
	// the final marker is the end of the sequence, not a new stroke
	for _, s := range starts[1 : len(starts)-1] {
		idx = firstAtLeast(times, idx, s)
		flags[idx] = 1
	}

	out := &Samples{
		T:           times,
		X:           make([]float64, n),
		Y:           make([]float64, n),
		StartStroke: flags,
	}
	for i, t := range times {
		out.X[i] = fx.At(t)
		out.Y[i] = fy.At(t)
	}
	return out, nil
}

// firstAtLeast returns the first index >= from whose time reaches v, or
// from when none does.
func firstAtLeast(times []float64, from int, v float64) int {
	for i := from; i < len(times); i++ {
		if times[i] >= v {
			return i
		}
	}
	return from
}

func jitter(times []float64, last float64, noise Noise, rng *rand.Rand) {
	n := len(times)
	sd := last / float64(n) / jitterFraction

	switch noise {
	case RandomNoise:
		for i := range times {
			times[i] += rng.NormFloat64() * sd
		}
	case LaggedNoise:
		decay := 1 - math.Pow(decayBase, math.Min(float64(n), decayWindow))
		offset, step := 0.0, 0.0
		for i := range times {
			remaining := float64(n - i)
			step = rng.NormFloat64()*sd + (-offset/remaining + step*momentum)
			offset += step
			times[i] += step + offset
			if remaining < decayWindow {
				sd *= decay
			}
		}
	}

	sort.Float64s(times)
	for i, t := range times {
		times[i] = math.Min(math.Max(t, 0), last)
	}
}
