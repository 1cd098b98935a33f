package rm

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrUnknownHeader is returned for pages that are not version 3 or 5.
var ErrUnknownHeader = errors.New("unknown lines header")

// UnmarshalBinary implements encoding.UnmarshalBinary for
// transforming bytes into a Rm page
func (rm *Rm) UnmarshalBinary(data []byte) error {
	r := newReader(data)
	if err := r.checkHeader(); err != nil {
		return err
	}
	rm.Version = r.version

	nbLayers, err := r.readNumber()
	if err != nil {
		return errors.Wrap(err, "layer count")
	}

	rm.Layers = make([]Layer, 0, minCap(nbLayers))
	for i := uint32(0); i < nbLayers; i++ {
		nbLines, err := r.readNumber()
		if err != nil {
			return errors.Wrapf(err, "layer %d", i)
		}

		layer := Layer{Lines: make([]Line, 0, minCap(nbLines))}
		for j := uint32(0); j < nbLines; j++ {
			line, err := r.readLine()
			if err != nil {
				return errors.Wrapf(err, "layer %d line %d", i, j)
			}
			layer.Lines = append(layer.Lines, line)
		}
		rm.Layers = append(rm.Layers, layer)
	}

	return nil
}

// counts come from the file, do not trust them for allocation
func minCap(n uint32) int {
	if n > 1024 {
		return 1024
	}
	return int(n)
}

type reader struct {
	*bytes.Reader
	version Version
}

func newReader(data []byte) *reader {
	return &reader{Reader: bytes.NewReader(data), version: V5}
}

func (r *reader) checkHeader() error {
	buf := make([]byte, HeaderLen)
	if n, err := r.Read(buf); err != nil || n != HeaderLen {
		return errors.New("wrong header size")
	}

	switch string(buf) {
	case HeaderV5:
		r.version = V5
	case HeaderV3:
		r.version = V3
	default:
		return errors.Wrapf(ErrUnknownHeader, "%q", string(buf))
	}
	return nil
}

func (r *reader) read(v interface{}) error {
	return binary.Read(r, binary.LittleEndian, v)
}

func (r *reader) readNumber() (uint32, error) {
	var nb uint32
	if err := r.read(&nb); err != nil {
		return 0, errors.Wrap(err, "read number")
	}
	return nb, nil
}

func (r *reader) readLine() (Line, error) {
	var line Line
	fields := []interface{}{&line.BrushType, &line.BrushColor, &line.Padding, &line.BrushSize}
	// this attribute was added in v5
	if r.version == V5 {
		fields = append(fields, &line.Unknown)
	}
	for _, f := range fields {
		if err := r.read(f); err != nil {
			return line, errors.Wrap(err, "read line")
		}
	}

	nbPoints, err := r.readNumber()
	if err != nil {
		return line, err
	}
	if nbPoints == 0 {
		return line, nil
	}

	line.Points = make([]Point, 0, minCap(nbPoints))
	for i := uint32(0); i < nbPoints; i++ {
		var p Point
		if err := r.read(&p); err != nil {
			return line, errors.Wrapf(err, "read point %d", i)
		}
		line.Points = append(line.Points, p)
	}
	return line, nil
}
