package dataset

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juruen/strokerecovery/encoding/iamxml"
	"github.com/juruen/strokerecovery/encoding/rm"
	"github.com/juruen/strokerecovery/gt"
	"github.com/juruen/strokerecovery/stroke"
)

const strokeXML = `<?xml version="1.0" encoding="ISO-8859-1"?>
<WhiteboardCaptureSession>
  <StrokeSet>
    <Stroke>
      <Point x="100" y="200" time="10.00"/>
      <Point x="110" y="205" time="10.02"/>
      <Point x="120" y="210" time="10.04"/>
    </Stroke>
    <Stroke>
      <Point x="150" y="180" time="10.50"/>
      <Point x="150" y="220" time="10.52"/>
    </Stroke>
  </StrokeSet>
</WhiteboardCaptureSession>`

func tempDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "dataset")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func writeFixtures(t *testing.T, dir string) []Source {
	xmlPath := filepath.Join(dir, "a01.xml")
	require.NoError(t, os.WriteFile(xmlPath, []byte(strokeXML), 0644))

	page := rm.FromStrokes([]stroke.Stroke{
		{Points: []stroke.Point{{X: 0, Y: 0}, {X: 10, Y: -5}, {X: 20, Y: -10}}},
		{Points: []stroke.Point{{X: 30, Y: 0}, {X: 30, Y: -20}}},
	}, rm.FinelinerV5, rm.Medium)
	data, err := page.MarshalBinary()
	require.NoError(t, err)
	rmPath := filepath.Join(dir, "page.rm")
	require.NoError(t, os.WriteFile(rmPath, data, 0644))

	badPath := filepath.Join(dir, "broken.rm")
	require.NoError(t, os.WriteFile(badPath, []byte("not a page"), 0644))

	return []Source{
		{Path: xmlPath, Image: "a01.png"},
		{Path: badPath},
		{Path: filepath.Join(dir, "notes.txt")},
		{Path: rmPath},
	}
}

func TestReadStrokes(t *testing.T) {
	dir := tempDir(t)
	src := writeFixtures(t, dir)

	s, err := ReadStrokes(src[0].Path, iamxml.All)
	require.NoError(t, err)
	assert.Len(t, s, 2)

	s, err = ReadStrokes(src[3].Path, iamxml.All)
	require.NoError(t, err)
	assert.Len(t, s, 2)

	_, err = ReadStrokes(src[2].Path, iamxml.All)
	assert.True(t, errors.Is(err, ErrUnsupportedSource))
}

func TestBuildSkipsFailures(t *testing.T) {
	dir := tempDir(t)
	src := writeFixtures(t, dir)

	out, err := Build(context.Background(), src, Options{
		Prepare: stroke.DefaultOptions(),
		Points:  20,
		Workers: 2,
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, src[0].Path, out[0].Source)
	assert.Equal(t, "a01.png", out[0].Image)
	assert.Equal(t, src[3].Path, out[1].Source)
	assert.NotEqual(t, out[0].ID, out[1].ID)

	for _, in := range out {
		assert.Len(t, in.GT, 20)
		assert.Equal(t, gt.DefaultFormat, in.Format)
		assert.Equal(t, 1.0, in.GT[0][2])
		assert.Len(t, in.StartTimes, 3)
	}
}

func TestBuildDerivesLength(t *testing.T) {
	dir := tempDir(t)
	src := writeFixtures(t, dir)

	out, err := Build(context.Background(), src[:1], Options{
		Prepare:     stroke.DefaultOptions(),
		ImageHeight: 60,
		CNNStride:   4,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	want := SequenceLength(int(out[0].XToY*60+.5), 4)
	assert.Len(t, out[0].GT, want)
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, []Source{{Path: "a.xml"}}, Options{Workers: 1})
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	dir := tempDir(t)
	src := writeFixtures(t, dir)
	out, err := Build(context.Background(), src, Options{Prepare: stroke.DefaultOptions(), Points: 12, KeepRaw: true})
	require.NoError(t, err)

	path := filepath.Join(dir, "train.json")
	require.NoError(t, Save(path, out))
	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, out, back)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestImages(t *testing.T) {
	assert.Equal(t, 25, SequenceLength(100, 4))
	assert.Equal(t, 1, SequenceLength(2, 4))
	assert.Equal(t, 7, SequenceLength(7, 0))

	img := image.NewGray(image.Rect(0, 0, 200, 40))
	small := Resize(img, 20)
	assert.Equal(t, 100, small.Bounds().Dx())
	assert.Equal(t, 20, small.Bounds().Dy())

	dir := tempDir(t)
	path := filepath.Join(dir, "line.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	loaded, err := LoadImage(path, 60)
	require.NoError(t, err)
	assert.Equal(t, 300, loaded.Bounds().Dx())
}

func writePNG(t *testing.T, path string, w, h int) {
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, w, h))))
	require.NoError(t, f.Close())
}

func TestBuildLengthFromImage(t *testing.T) {
	dir := tempDir(t)
	src := writeFixtures(t, dir)
	line := filepath.Join(dir, "a01.png")
	writePNG(t, line, 800, 30)

	opts := Options{Prepare: stroke.DefaultOptions(), ImageHeight: 60, CNNStride: 4}
	out, err := Build(context.Background(), []Source{{Path: src[0].Path, Image: line}, src[3]}, opts)
	require.NoError(t, err)
	require.Len(t, out, 2)
	// 800x30 resized to height 60 is 1600 wide
	assert.Len(t, out[0].GT, 400)
	assert.Equal(t, line, out[0].Image)
	assert.Len(t, out[1].GT, SequenceLength(int(out[1].XToY*60+.5), 4))

	// a fixed length wins over the image
	opts.Points = 16
	out, err = Build(context.Background(), []Source{{Path: src[0].Path, Image: line}}, opts)
	require.NoError(t, err)
	assert.Len(t, out[0].GT, 16)

	// an unreadable image skips the source
	opts.Points = 0
	out, err = Build(context.Background(), []Source{{Path: src[0].Path, Image: filepath.Join(dir, "missing.png")}}, opts)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestBuildSubstrokes(t *testing.T) {
	dir := tempDir(t)
	src := writeFixtures(t, dir)
	opts := Options{Prepare: stroke.DefaultOptions(), Points: 10, Substrokes: 1, KeepRaw: true}

	out, err := Build(context.Background(), []Source{src[0], src[3]}, opts)
	require.NoError(t, err)
	require.Len(t, out, 4)
	for _, in := range out {
		assert.Len(t, in.GT, 10)
		assert.Len(t, in.StartTimes, 2)
		assert.Len(t, in.Raw, 1)
	}
	assert.Equal(t, src[0].Path, out[1].Source)
	assert.Equal(t, src[3].Path, out[2].Source)

	opts.Substrokes = 5
	out, err = Build(context.Background(), src[:1], opts)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Len(t, out[0].StartTimes, 3)
}
