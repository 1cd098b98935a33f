package rm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juruen/strokerecovery/stroke"
)

func testPage(version Version) Rm {
	points := make([]Point, 0)
	for i := 0; i < 200; i++ {
		points = append(points, Point{
			X:         100,
			Y:         float32(i),
			Speed:     2.,
			Direction: 3.,
			Width:     2.0,
			Pressure:  .3,
		})
	}

	return Rm{
		Version: version,
		Layers: []Layer{
			{
				Lines: []Line{
					{
						BrushSize:  Medium,
						BrushColor: Black,
						BrushType:  FinelinerV5,
						Unknown:    1,
						Points:     points,
					},
					{
						BrushSize:  Large,
						BrushColor: Grey,
						BrushType:  Eraser,
						Points: []Point{
							{X: 100, Y: 100, Speed: 2., Direction: 1., Width: 3.0, Pressure: .3},
							{X: 1000, Y: 1000, Speed: 2., Direction: 1., Width: 3.0, Pressure: .3},
						},
					},
				},
			},
			{},
		},
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	for _, v := range []Version{V3, V5} {
		page := testPage(v)
		if v == V3 {
			page.Layers[0].Lines[0].Unknown = 0
		}
		data, err := page.MarshalBinary()
		require.NoError(t, err)

		var got Rm
		require.NoError(t, got.UnmarshalBinary(data))
		assert.Equal(t, v, got.Version)
		require.Len(t, got.Layers, 2)
		assert.Equal(t, page.Layers[0], got.Layers[0])
		assert.Empty(t, got.Layers[1].Lines)
	}
}

func TestUnmarshalErrors(t *testing.T) {
	var page Rm
	err := page.UnmarshalBinary([]byte("reMarkable .lines file, version=6          "))
	assert.True(t, errors.Is(err, ErrUnknownHeader))
	assert.Error(t, page.UnmarshalBinary([]byte("short")))

	p := testPage(V5)
	data, err := p.MarshalBinary()
	require.NoError(t, err)
	assert.Error(t, page.UnmarshalBinary(data[:len(data)-10]))
}

func TestStrokes(t *testing.T) {
	page := testPage(V5)
	page.Layers[1].Lines = []Line{{BrushType: BallPoint, Points: []Point{{X: 1, Y: 2}}}}
	strokes := page.Strokes()
	// eraser and single point lines are dropped
	require.Len(t, strokes, 1)
	s := strokes[0]
	assert.Len(t, s.Points, 200)
	assert.Equal(t, -5.0, s.Points[5].Y)
	assert.InDelta(t, 5*SampleInterval, s.Points[5].T, 1e-12)
}

func TestFromStrokes(t *testing.T) {
	in := []stroke.Stroke{
		{Points: []stroke.Point{{X: 1, Y: -2}, {X: 3, Y: -4}}},
		{Points: []stroke.Point{{X: 5, Y: -6}, {X: 7, Y: -8}, {X: 9, Y: -10}}},
	}
	page := FromStrokes(in, FinelinerV5, Small)
	data, err := page.MarshalBinary()
	require.NoError(t, err)
	var got Rm
	require.NoError(t, got.UnmarshalBinary(data))

	out := got.Strokes()
	require.Len(t, out, 2)
	for i, s := range out {
		for j, p := range s.Points {
			assert.Equal(t, in[i].Points[j].X, p.X)
			assert.Equal(t, in[i].Points[j].Y, p.Y)
		}
	}
	assert.Equal(t, float32(2), got.Layers[0].Lines[0].Points[0].Y)
}
