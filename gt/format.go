package gt

import (
	"math/rand"
	"strings"

	"github.com/pkg/errors"

	"github.com/juruen/strokerecovery/stroke"
)

// Channel is one column of a ground-truth sequence.
type Channel string

const (
	X            Channel = "x"
	Y            Channel = "y"
	SOS          Channel = "sos"
	EOS          Channel = "eos"
	EOStroke     Channel = "eostroke"
	StrokeNumber Channel = "stroke_number"
	StrokeLength Channel = "stroke_length"
)

var knownChannels = map[Channel]bool{
	X: true, Y: true, SOS: true, EOS: true, EOStroke: true, StrokeNumber: true, StrokeLength: true,
}

// Format is the ordered list of channels in a sequence.
type Format []Channel

// DefaultFormat is x, y, start of stroke, end of sequence.
var DefaultFormat = Format{X, Y, SOS, EOS}

// ParseFormat reads channel names. x and y are required.
func ParseFormat(names []string) (Format, error) {
	if len(names) == 0 {
		return DefaultFormat, nil
	}
	f := make(Format, 0, len(names))
	seen := map[Channel]bool{}
	for _, n := range names {
		c := Channel(strings.ToLower(strings.TrimSpace(n)))
		if !knownChannels[c] {
			return nil, errors.Errorf("unknown gt channel %q", n)
		}
		if seen[c] {
			return nil, errors.Errorf("duplicate gt channel %q", n)
		}
		seen[c] = true
		f = append(f, c)
	}
	if !seen[X] || !seen[Y] {
		return nil, errors.New("gt format must contain x and y")
	}
	return f, nil
}

// Index returns the column of c or -1.
func (f Format) Index(c Channel) int {
	for i, fc := range f {
		if fc == c {
			return i
		}
	}
	return -1
}

// Indices resolves channel names to columns.
func (f Format) Indices(names []string) ([]int, error) {
	out := make([]int, 0, len(names))
	for _, n := range names {
		i := f.Index(Channel(strings.ToLower(strings.TrimSpace(n))))
		if i < 0 {
			return nil, errors.Errorf("channel %q not in gt format %v", n, f)
		}
		out = append(out, i)
	}
	return out, nil
}

// Sequence is a ground-truth point sequence, one row per point.
type Sequence struct {
	Format Format
	Rows   [][]float64
}

// Len returns the number of points.
func (s *Sequence) Len() int {
	return len(s.Rows)
}

// Column copies one channel out of the sequence.
func (s *Sequence) Column(c Channel) []float64 {
	i := s.Format.Index(c)
	if i < 0 {
		return nil
	}
	out := make([]float64, len(s.Rows))
	for r, row := range s.Rows {
		out[r] = row[i]
	}
	return out
}

// Reversed returns the sequence with every stroke drawn backwards.
// Flag channels stay in place.
func (s *Sequence) Reversed() *Sequence {
	sos := s.Format.Index(SOS)
	if sos < 0 {
		return s
	}
	var fixed []int
	for _, c := range []Channel{EOS, EOStroke, StrokeNumber} {
		if i := s.Format.Index(c); i >= 0 {
			fixed = append(fixed, i)
		}
	}
	return &Sequence{Format: s.Format, Rows: stroke.ReverseStrokes(s.Rows, sos, fixed...)}
}

// Options configure Build.
type Options struct {
	Param stroke.Param
	Noise Noise
	Rand  *rand.Rand
}

// Build samples n points from d in the given format.
func Build(d *stroke.Dict, n int, f Format, opts Options) (*Sequence, error) {
	fx, fy, err := stroke.Interpolants(d, opts.Param)
	if err != nil {
		return nil, err
	}
	smp, err := Sample(fx, fy, d.Starts(opts.Param), n, opts.Noise, opts.Rand)
	if err != nil {
		return nil, err
	}
	return fromSamples(smp, f), nil
}

func fromSamples(smp *Samples, f Format) *Sequence {
	n := len(smp.T)
	cols := make(map[Channel][]float64, len(f))
	cols[X] = smp.X
	cols[Y] = smp.Y
	cols[SOS] = smp.StartStroke
	for _, c := range f {
		switch c {
		case EOS:
			eos := make([]float64, n)
			eos[n-1] = 1
			cols[EOS] = eos
		case EOStroke:
			cols[EOStroke] = stroke.EOSFromSOS(smp.StartStroke)
		case StrokeNumber:
			cols[StrokeNumber] = stroke.StrokeNumbers(smp.StartStroke)
		case StrokeLength:
			cols[StrokeLength] = stroke.StrokeLengthGT(smp.X, smp.Y, smp.StartStroke, true)
		}
	}

	rows := make([][]float64, n)
	for i := range rows {
		row := make([]float64, len(f))
		for j, c := range f {
			row[j] = cols[c][i]
		}
		rows[i] = row
	}
	return &Sequence{Format: f, Rows: rows}
}

// Resample redraws seq with n points, spaced evenly along its ink length.
// Flag channels are derived again from the new start positions.
func Resample(seq *Sequence, n int) (*Sequence, error) {
	if seq.Len() == n {
		rows := make([][]float64, len(seq.Rows))
		for i, r := range seq.Rows {
			rows[i] = append([]float64(nil), r...)
		}
		return &Sequence{Format: seq.Format, Rows: rows}, nil
	}
	xs, ys := seq.Column(X), seq.Column(Y)
	sos := seq.Column(SOS)
	if sos == nil {
		sos = make([]float64, len(xs))
	}
	if len(sos) > 0 {
		sos[0] = 1
	}
	dist := stroke.Reparameterize(xs, ys, sos, false)
	fx, err := stroke.NewCurve(dist, xs)
	if err != nil {
		return nil, errors.Wrap(err, "resample x")
	}
	fy, err := stroke.NewCurve(dist, ys)
	if err != nil {
		return nil, errors.Wrap(err, "resample y")
	}
	var starts []float64
	for _, i := range stroke.SOSArgs(sos) {
		starts = append(starts, dist[i])
	}
	starts = append(starts, dist[len(dist)-1])

	smp, err := Sample(fx, fy, starts, n, NoNoise, nil)
	if err != nil {
		return nil, err
	}
	return fromSamples(smp, seq.Format), nil
}

// Strokes splits the sequence into strokes at its start flags. Points are
// timed by their row index.
func (s *Sequence) Strokes() []stroke.Stroke {
	xi, yi, si := s.Format.Index(X), s.Format.Index(Y), s.Format.Index(SOS)
	var out []stroke.Stroke
	for i, r := range s.Rows {
		if i == 0 || (si >= 0 && r[si] > .5) {
			out = append(out, stroke.Stroke{})
		}
		k := len(out) - 1
		out[k].Points = append(out[k].Points, stroke.Point{X: r[xi], Y: r[yi], T: float64(i)})
	}
	return out
}
