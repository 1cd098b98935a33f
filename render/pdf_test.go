package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unidoc/unipdf/v3/creator"

	"github.com/juruen/strokerecovery/dtw"
	"github.com/juruen/strokerecovery/gt"
)

func fixture() (*gt.Sequence, *gt.Sequence) {
	g := &gt.Sequence{Format: gt.DefaultFormat, Rows: [][]float64{
		{0, 0, 1, 0}, {1, 0, 0, 0}, {2, 1, 0, 0},
		{4, 0, 1, 0}, {4, 2, 0, 1},
	}}
	p := &gt.Sequence{Format: gt.Format{gt.X, gt.Y, gt.SOS}, Rows: [][]float64{
		{0, .1, 1}, {2, 1, 0}, {4, .1, 1}, {4, 1.9, 0},
	}}
	return g, p
}

func TestFit(t *testing.T) {
	b := emptyBox()
	g, p := fixture()
	b.add(g)
	b.add(p)
	b.add(nil)
	assert.Equal(t, box{0, 0, 4, 2}, b)

	tr := fit(b, creator.PageSize{100, 60}, 10)
	// width 80 over 4 units, height 40 over 2 units
	assert.Equal(t, 20.0, tr.scale)
	assert.Equal(t, point{10, 10}, tr.apply(0, 0))
	assert.Equal(t, point{90, 50}, tr.apply(4, 2))

	flat := fit(box{1, 1, 1, 1}, creator.PageSize{100, 60}, 10)
	assert.Equal(t, 1.0, flat.scale)
}

func TestStrokesAndLinks(t *testing.T) {
	g, p := fixture()
	tr := transform{scale: 1}
	s := strokes(g, tr)
	require.Len(t, s, 2)
	assert.Len(t, s[0], 3)
	assert.Equal(t, []point{{4, 0}, {4, 2}}, s[1])

	path := &dtw.Path{A: []int{0, 1, 1, 2, 3}, B: []int{0, 1, 2, 3, 4}}
	ls := links(path, g, p, tr)
	require.Len(t, ls, 5)
	assert.Equal(t, [2]point{{2, 1}, {1, 0}}, ls[1])
	assert.Equal(t, [2]point{{4, 1.9}, {4, 2}}, ls[4])
}

func TestWrite(t *testing.T) {
	g, p := fixture()
	path := &dtw.Path{A: []int{0, 1, 1, 2, 3}, B: []int{0, 1, 2, 3, 4}}
	opts := DefaultOptions()
	opts.PageNumbers = true

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []Page{
		{Title: "a01-000u-01", GT: g, Pred: p, Alignment: path},
		{GT: g},
	}, opts))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	assert.Error(t, Write(&buf, nil, opts))
	assert.Error(t, Write(&buf, []Page{{Pred: p}}, opts))
}
