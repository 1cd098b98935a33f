package iamxml

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doc = `<?xml version="1.0" encoding="ISO-8859-1"?>
<WhiteboardCaptureSession>
  <WhiteboardDescription>
    <SensorLocation corner="top_left"/>
  </WhiteboardDescription>
  <StrokeSet>
    <Stroke colour="black" start_time="100.50" end_time="100.52">
      <Point x="1073" y="1058" time="100.50"/>
      <Point x="1074" y="1060" time="100.5214"/>
    </Stroke>
    <Stroke colour="black" start_time="101.00" end_time="101.02">
      <Point x="1100" y="1000" time="101.00"/>
      <Point x="1101" y="1003" time="101.02"/>
      <Point x="1103" y="1004" time="101.04"/>
    </Stroke>
    <Stroke colour="black" start_time="102.00" end_time="102.01">
      <Point x="1200" y="990" time="102.00"/>
      <Point x="1201" y="991" time="102.01"/>
    </Stroke>
  </StrokeSet>
</WhiteboardCaptureSession>`

func TestRead(t *testing.T) {
	s, err := Read(strings.NewReader(doc), All)
	require.NoError(t, err)
	require.Len(t, s.Strokes, 3)
	assert.Len(t, s.Strokes[1].Points, 3)

	p := s.Strokes[0].Points[1]
	assert.Equal(t, 1074.0, p.X)
	assert.Equal(t, -1060.0, p.Y)
	assert.InDelta(t, .021, p.T, 1e-9)
	assert.InDelta(t, .5, s.StartTimes[1], 1e-9)
	assert.Len(t, s.StartTimes, 3)
}

func TestReadRange(t *testing.T) {
	s, err := Read(strings.NewReader(doc), Range{Start: 1, End: 2})
	require.NoError(t, err)
	require.Len(t, s.Strokes, 1)
	// times restart at the first selected point
	assert.Equal(t, 0.0, s.Strokes[0].Points[0].T)
	assert.Equal(t, 1100.0, s.Strokes[0].Points[0].X)

	s, err = Read(strings.NewReader(doc), Range{Start: 2, End: 10})
	require.NoError(t, err)
	assert.Len(t, s.Strokes, 1)

	s, err = Read(strings.NewReader(doc), Range{Start: 5})
	require.NoError(t, err)
	assert.Empty(t, s.Strokes)
}

func TestReadFile(t *testing.T) {
	dir, err := os.MkdirTemp("", "iamxml")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "a01-000u-01.xml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	s, err := ReadFile(path, All)
	require.NoError(t, err)
	assert.Len(t, s.Strokes, 3)

	_, err = ReadFile(filepath.Join(dir, "missing.xml"), All)
	assert.Error(t, err)

	_, err = Read(strings.NewReader("<Other/>"), All)
	assert.Error(t, err)
}
