package rm

import (
	"github.com/juruen/strokerecovery/stroke"
)

// SampleInterval is the time between two points of a line. Pages carry no
// timestamps, the pen reports at about 60Hz.
const SampleInterval = .016

// Strokes flattens the page into strokes in drawing order. Eraser lines and
// lines of fewer than two points are skipped. Y is negated so that up is
// positive like the IAM data.
func (rm *Rm) Strokes() []stroke.Stroke {
	var out []stroke.Stroke
	t := 0.0
	for _, layer := range rm.Layers {
		for _, line := range layer.Lines {
			if line.BrushType.IsEraser() || len(line.Points) < 2 {
				continue
			}
			s := stroke.Stroke{Points: make([]stroke.Point, len(line.Points))}
			for i, p := range line.Points {
				s.Points[i] = stroke.Point{X: float64(p.X), Y: -float64(p.Y), T: t}
				t += SampleInterval
			}
			out = append(out, s)
		}
	}
	return out
}

// FromStrokes builds a single layer page with one line per stroke.
func FromStrokes(strokes []stroke.Stroke, brush BrushType, size BrushSize) *Rm {
	layer := Layer{Lines: make([]Line, 0, len(strokes))}
	for _, s := range strokes {
		line := Line{BrushType: brush, BrushColor: Black, BrushSize: size, Points: make([]Point, len(s.Points))}
		for i, p := range s.Points {
			line.Points[i] = Point{
				X:        float32(p.X),
				Y:        float32(-p.Y),
				Speed:    1,
				Width:    float32(size),
				Pressure: 1,
			}
		}
		layer.Lines = append(layer.Lines, line)
	}
	return &Rm{Version: V5, Layers: []Layer{layer}}
}
