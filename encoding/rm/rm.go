// Package rm reads and writes reMarkable .lines pages (versions 3 and 5)
// and converts their pen lines to and from strokes.
package rm

// Version of the lines format.
type Version int

const (
	V3 Version = iota
	V5
)

const (
	HeaderV3  = "reMarkable .lines file, version=3          "
	HeaderV5  = "reMarkable .lines file, version=5          "
	HeaderLen = 43
)

// BrushType is the pen used for a line.
type BrushType uint32

const (
	Brush       BrushType = 0
	TiltPencil  BrushType = 1
	BallPoint   BrushType = 2
	Marker      BrushType = 3
	Fineliner   BrushType = 4
	Highlighter BrushType = 5
	Eraser      BrushType = 6
	SharpPencil BrushType = 7
	EraseArea   BrushType = 8

	BrushV5       BrushType = 12
	SharpPencilV5 BrushType = 13
	PencilV5      BrushType = 14
	BallPointV5   BrushType = 15
	MarkerV5      BrushType = 16
	FinelinerV5   BrushType = 17
	HighlighterV5 BrushType = 18
	CalligraphyV5 BrushType = 21
)

// IsEraser reports whether lines of this brush remove ink.
func (b BrushType) IsEraser() bool {
	return b == Eraser || b == EraseArea
}

type BrushColor uint32

const (
	Black BrushColor = 0
	Grey  BrushColor = 1
	White BrushColor = 2
)

type BrushSize float32

const (
	Small  BrushSize = 1.875
	Medium BrushSize = 2.0
	Large  BrushSize = 2.125
)

// Rm is one page.
type Rm struct {
	Version Version
	Layers  []Layer
}

type Layer struct {
	Lines []Line
}

// Line is one pen stroke as stored on the device.
type Line struct {
	BrushType  BrushType
	BrushColor BrushColor
	Padding    uint32
	BrushSize  BrushSize
	// Unknown only exists from version 5 on.
	Unknown float32
	Points  []Point
}

type Point struct {
	X         float32
	Y         float32
	Speed     float32
	Direction float32
	Width     float32
	Pressure  float32
}
