// Package iamxml reads pen strokes from IAM On-Line Handwriting XML files.
package iamxml

import (
	"encoding/xml"
	"io"
	"math"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"

	"github.com/juruen/strokerecovery/stroke"
)

type document struct {
	XMLName   xml.Name  `xml:"WhiteboardCaptureSession"`
	StrokeSet strokeSet `xml:"StrokeSet"`
}

type strokeSet struct {
	Strokes []xmlStroke `xml:"Stroke"`
}

type xmlStroke struct {
	Points []xmlPoint `xml:"Point"`
}

type xmlPoint struct {
	X    float64 `xml:"x,attr"`
	Y    float64 `xml:"y,attr"`
	Time float64 `xml:"time,attr"`
}

// Range selects strokes [Start, End). End <= 0 means up to the last stroke.
type Range struct {
	Start int
	End   int
}

// All selects every stroke.
var All = Range{}

func (r Range) bounds(n int) (int, int) {
	lo, hi := r.Start, r.End
	if lo < 0 {
		lo = 0
	}
	if hi <= 0 || hi > n {
		hi = n
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

// IAM files declare ISO-8859-1.
func charsetReader(label string, in io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(in), nil
	}
	return nil, errors.Errorf("unsupported charset %q", label)
}

// Strokes is the result of reading one file.
type Strokes struct {
	Strokes []stroke.Stroke
	// StartTimes is the time of the first point of every stroke.
	StartTimes []float64
}

// Read decodes the strokes of r. Y is negated so that up is positive and
// times are made relative to the first selected point, rounded to
// milliseconds.
func Read(r io.Reader, rg Range) (*Strokes, error) {
	var doc document
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode stroke xml")
	}
	lo, hi := rg.bounds(len(doc.StrokeSet.Strokes))
	res := &Strokes{}
	first, started := 0.0, false
	for _, xs := range doc.StrokeSet.Strokes[lo:hi] {
		s := stroke.Stroke{Points: make([]stroke.Point, 0, len(xs.Points))}
		for i, p := range xs.Points {
			if !started {
				first, started = p.Time, true
			}
			t := p.Time - first
			if i == 0 {
				res.StartTimes = append(res.StartTimes, t)
			}
			s.Points = append(s.Points, stroke.Point{X: p.X, Y: -p.Y, T: math.Round(t*1000) / 1000})
		}
		res.Strokes = append(res.Strokes, s)
	}
	return res, nil
}

// ReadFile reads the strokes of the XML file at path.
func ReadFile(path string, rg Range) (*Strokes, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := Read(f, rg)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return s, nil
}
