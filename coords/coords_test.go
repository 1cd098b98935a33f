package coords

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelativefyRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	for n := 2; n < 50; n += 7 {
		x := make([]float64, n)
		for i := range x {
			x[i] = rng.Float64()*100 - 50
		}
		rel := Relativefy(x, false)
		assert.Equal(t, x[0], rel[0])
		assert.InDeltaSlice(t, x, Relativefy(rel, true), 1e-5)
	}
	assert.Empty(t, Relativefy(nil, false))
	assert.Equal(t, []float64{1, 1, -3}, Relativefy([]float64{1, 2, -1}, false))
}

func TestRelativefyColumns(t *testing.T) {
	rows := [][]float64{{0, 5, 1}, {2, 6, 0}, {3, 9, 1}}
	rel := RelativefyColumns(rows, []int{0, 1}, false)
	assert.Equal(t, [][]float64{{0, 5, 1}, {2, 1, 0}, {1, 3, 1}}, rel)
	assert.Equal(t, rows, RelativefyColumns(rel, []int{0, 1}, true))
	assert.Equal(t, 2.0, rows[1][0])
}

func gtFixture(rng *rand.Rand, width int) [][]float64 {
	gt := make([][]float64, width)
	for i := range gt {
		gt[i] = []float64{float64(i), float64(rng.Intn(10)), float64(rng.Intn(2))}
	}
	return gt
}

func TestConvolveSelfIsGroundTruth(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	gt := gtFixture(rng, 20)
	rel := RelativefyColumns(gt, []int{0, 1}, false)
	for _, kind := range []Kind{Cumsum, ConvWeight, ConvWindow} {
		c, err := NewConvolver(kind, 0)
		require.NoError(t, err)
		out := c.Convolve(rel, gt, []int{0, 1})
		require.Len(t, out, 20)
		for i := range gt {
			assert.InDeltaSlice(t, gt[i], out[i], 1e-9, "%s row %d", kind, i)
		}
	}
}

func TestConvWeightLocalisesError(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	gt := gtFixture(rng, 20)
	pred := RelativefyColumns(gt, []int{0, 1}, false)
	pred[7][0] = 12

	c, err := NewConvolver(ConvWeight, 9)
	require.NoError(t, err)
	out := c.Convolve(pred, gt, []int{0, 1})
	for i := 0; i < 7; i++ {
		assert.InDelta(t, gt[i][0], out[i][0], 1e-9, "row %d", i)
	}
	for i := 16; i < 20; i++ {
		assert.InDelta(t, gt[i][0], out[i][0], 1e-9, "row %d", i)
	}
	assert.NotEqual(t, gt[7][0], out[7][0])
	for i := range gt {
		assert.InDelta(t, gt[i][1], out[i][1], 1e-9)
	}
}

func TestConvolveTruncatesPredictions(t *testing.T) {
	c, err := NewConvolver(ConvWindow, 3)
	require.NoError(t, err)
	gt := [][]float64{{0}, {1}, {2}}
	pred := [][]float64{{0}, {1}, {1}, {1}, {1}}
	out := c.Convolve(pred, gt, []int{0})
	assert.Equal(t, [][]float64{{0}, {1}, {2}}, out)
	assert.Panics(t, func() { c.Convolve(pred[:2], gt, []int{0}) })
}

func TestBackwardIsAdjoint(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	gt := gtFixture(rng, 15)
	pred := make([][]float64, 18)
	for i := range pred {
		pred[i] = []float64{rng.NormFloat64(), rng.NormFloat64(), rng.Float64()}
	}
	grad := make([][]float64, len(gt))
	for i := range grad {
		grad[i] = []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
	}
	cols := []int{0, 1}

	for _, kind := range []Kind{Cumsum, ConvWeight, ConvWindow} {
		c, err := NewConvolver(kind, 5)
		require.NoError(t, err)
		back := c.Backward(grad, len(pred), cols)
		require.Len(t, back, len(pred))

		// the map is affine in pred, so a finite difference is exact up to rounding
		base := c.Convolve(pred, gt, cols)
		for s := range pred {
			for d := range pred[s] {
				bumped := cloneRows(pred)
				bumped[s][d]++
				out := c.Convolve(bumped, gt, cols)
				want := 0.0
				for i := range out {
					for j := range out[i] {
						want += grad[i][j] * (out[i][j] - base[i][j])
					}
				}
				assert.InDelta(t, want, back[s][d], 1e-9, "%s at (%d,%d)", kind, s, d)
			}
		}
	}
}

func TestNewConvolverErrors(t *testing.T) {
	_, err := NewConvolver("fft", 9)
	assert.Error(t, err)
	_, err = NewConvolver(ConvWeight, 1)
	assert.Error(t, err)
	c, err := NewConvolver(Cumsum, -1)
	require.NoError(t, err)
	assert.Equal(t, DefaultKernelLength, c.KernelLength())
	assert.Equal(t, Cumsum, c.Kind())
}
