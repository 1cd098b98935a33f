package dataset

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// SequenceLength is the number of predictions a CNN of the given stride
// makes over an image of the given width.
func SequenceLength(width, stride int) int {
	if stride <= 0 {
		stride = 1
	}
	n := width / stride
	if n < 1 {
		n = 1
	}
	return n
}

// Resize scales img to height keeping its aspect ratio.
func Resize(img image.Image, height int) image.Image {
	return resize.Resize(0, uint(height), img, resize.Bilinear)
}

// LoadImage decodes a PNG or JPEG line image and scales it to height.
// height <= 0 keeps the original size.
func LoadImage(path string, height int) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode image %s", path)
	}
	if height > 0 && img.Bounds().Dy() != height {
		img = Resize(img, height)
	}
	return img, nil
}
