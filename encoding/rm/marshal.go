package rm

import (
	"bytes"
	"encoding/binary"
)

// MarshalBinary implements encoding.MarshalBinary for
// transforming a Rm page into bytes
func (rm *Rm) MarshalBinary() ([]byte, error) {
	w := &writer{version: rm.Version}

	w.writeHeader()
	w.write(uint32(len(rm.Layers)))
	for _, layer := range rm.Layers {
		w.write(uint32(len(layer.Lines)))
		for _, line := range layer.Lines {
			w.writeLine(line)
		}
	}
	return w.b.Bytes(), nil
}

type writer struct {
	b       bytes.Buffer
	version Version
}

func (w *writer) writeHeader() {
	if w.version == V3 {
		w.b.WriteString(HeaderV3)
		return
	}
	w.b.WriteString(HeaderV5)
}

// writes to a bytes.Buffer of fixed size values do not fail
func (w *writer) write(v interface{}) {
	binary.Write(&w.b, binary.LittleEndian, v)
}

func (w *writer) writeLine(line Line) {
	w.write(line.BrushType)
	w.write(line.BrushColor)
	w.write(line.Padding)
	w.write(line.BrushSize)
	if w.version == V5 {
		w.write(line.Unknown)
	}
	w.write(uint32(len(line.Points)))
	for _, p := range line.Points {
		w.write(p)
	}
}
