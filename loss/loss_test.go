package loss

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juruen/strokerecovery/gt"
	"github.com/juruen/strokerecovery/stats"
)

// numericGrad differentiates the loss value by central differences.
func numericGrad(t *testing.T, fn Func, it *Item, row, col int) float64 {
	t.Helper()
	const h = 1e-6
	orig := it.Pred[row][col]
	it.Pred[row][col] = orig + h
	up, err := fn.Compute(it)
	require.NoError(t, err)
	it.Pred[row][col] = orig - h
	down, err := fn.Compute(it)
	require.NoError(t, err)
	it.Pred[row][col] = orig
	return (up.Value - down.Value) / (2 * h)
}

func checkGrad(t *testing.T, fn Func, it *Item, cols []int) {
	t.Helper()
	res, err := fn.Compute(it)
	require.NoError(t, err)
	for row := range it.Pred {
		for _, c := range cols {
			assert.InDelta(t, numericGrad(t, fn, it, row, c), res.Grad[row][c], 1e-4, "row %d col %d", row, c)
		}
	}
}

// strokeItem is two strokes of four points with x, y, sos, eos columns.
func strokeItem(rng *rand.Rand, noise float64) *Item {
	targ := [][]float64{
		{0, 0, 1, 0}, {1, 0, 0, 0}, {2, 0, 0, 0}, {3, 0, 0, 0},
		{10, 3, 1, 0}, {10, 2, 0, 0}, {10, 1, 0, 0}, {10, 0, 0, 1},
	}
	pred := make([][]float64, len(targ))
	for i, r := range targ {
		pred[i] = []float64{
			r[0] + noise*rng.NormFloat64(),
			r[1] + noise*rng.NormFloat64(),
			rng.Float64()*4 - 2,
			rng.Float64()*4 - 2,
		}
	}
	seq := &gt.Sequence{Format: gt.DefaultFormat, Rows: targ}
	return &Item{Pred: pred, Targ: targ, TargReverse: seq.Reversed().Rows}
}

func TestRegistry(t *testing.T) {
	assert.Len(t, Kinds(), 8)
	for _, name := range []string{"l1", "L2", "dtw", "dtw_sos_eos", "dtw_reverse", "nn", "cross_entropy", "ssl"} {
		_, err := ParseKind(name)
		assert.NoError(t, err, name)
	}
	for _, name := range []string{"l1_swapper", "dtw_l2", "barron"} {
		_, err := ParseKind(name)
		assert.True(t, errors.Is(err, ErrUnknownLoss), name)
	}
	_, err := New(Definition{Kind: "l3", LossIndices: []int{0}})
	assert.True(t, errors.Is(err, ErrUnknownLoss))

	_, err = New(Definition{Kind: L1})
	assert.Error(t, err)
	_, err = New(Definition{Kind: L1, LossIndices: []int{0, 1}, Subcoef: []float64{1}})
	assert.Error(t, err)
	_, err = New(Definition{Kind: L1, LossIndices: []int{0}, Resample: true})
	assert.Error(t, err)
}

func TestL1(t *testing.T) {
	fn, err := New(Definition{Kind: L1, LossIndices: []int{0, 1}, Subcoef: []float64{1, 2}})
	require.NoError(t, err)
	it := &Item{
		Pred: [][]float64{{1, 1, 9}, {0, 3, 9}},
		Targ: [][]float64{{0, 2, 0}, {0, 1, 0}},
	}
	res, err := fn.Compute(it)
	require.NoError(t, err)
	assert.Equal(t, 1+2*1+0+2*2.0, res.Value)
	assert.Equal(t, [][]float64{{1, -2, 0}, {0, 2, 0}}, res.Grad)

	it.Targ = it.Targ[:1]
	_, err = fn.Compute(it)
	assert.True(t, errors.Is(err, ErrLengthMismatch))
}

func TestL2(t *testing.T) {
	fn, err := New(Definition{Kind: L2, LossIndices: []int{0, 1}})
	require.NoError(t, err)
	it := &Item{
		Pred: [][]float64{{3, 0}, {0, 0}},
		Targ: [][]float64{{0, 0}, {0, 4}},
	}
	res, err := fn.Compute(it)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, res.Value, 1e-12)
	checkGrad(t, fn, it, []int{0, 1})

	same := &Item{Pred: it.Targ, Targ: it.Targ}
	res, err = fn.Compute(same)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Value)
}

func TestL1Resamples(t *testing.T) {
	fn, err := New(Definition{Kind: L1, LossIndices: []int{0, 1}, Resample: true, Format: gt.DefaultFormat})
	require.NoError(t, err)
	targ := [][]float64{{0, 0, 1, 0}, {4, 0, 0, 1}}
	pred := [][]float64{{0, 0, 1, 0}, {2, 0, 0, 0}, {4, 0, 0, 1}}
	res, err := fn.Compute(&Item{Pred: pred, Targ: targ})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, res.Value, 1e-9)
}

func TestDTWLoss(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	fn, err := New(Definition{Kind: DTW, LossIndices: []int{0, 1}})
	require.NoError(t, err)

	exact := strokeItem(rng, 0)
	res, err := fn.Compute(exact)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Value)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, res.Alignment.A)
	require.Len(t, res.StrokeCosts, 2)

	noisy := strokeItem(rng, .1)
	res, err = fn.Compute(noisy)
	require.NoError(t, err)
	assert.Greater(t, res.Value, 0.0)
	checkGrad(t, fn, noisy, []int{0, 1})
}

func TestDTWCrossEntropyGradient(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for _, kind := range []Kind{DTW, DTWSOSEOS} {
		fn, err := New(Definition{
			Kind:                kind,
			LossIndices:         []int{0, 1},
			CrossEntropyIndices: []int{2},
		})
		require.NoError(t, err)
		it := strokeItem(rng, .1)
		checkGrad(t, fn, it, []int{0, 1, 2})
	}
}

func TestDTWSOSEOSWeightsEndpoints(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	it := strokeItem(rng, .2)
	plain, err := New(Definition{Kind: DTW, LossIndices: []int{0, 1}})
	require.NoError(t, err)
	weighted, err := New(Definition{Kind: DTWSOSEOS, LossIndices: []int{0, 1}})
	require.NoError(t, err)

	a, err := plain.Compute(it)
	require.NoError(t, err)
	b, err := weighted.Compute(it)
	require.NoError(t, err)
	assert.Greater(t, b.Value, a.Value)
}

func TestDTWReverse(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	it := strokeItem(rng, 0)
	// draw the second stroke upwards
	for l, r := 4, 7; l < r; l, r = l+1, r-1 {
		it.Pred[l][0], it.Pred[r][0] = it.Pred[r][0], it.Pred[l][0]
		it.Pred[l][1], it.Pred[r][1] = it.Pred[r][1], it.Pred[l][1]
	}

	rev, err := New(Definition{Kind: DTWReverse, LossIndices: []int{0, 1}})
	require.NoError(t, err)
	res, err := rev.Compute(it)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true}, res.Reversed)
	assert.InDelta(t, 0.0, res.Value, 1e-12)

	fwd, err := New(Definition{Kind: DTW, LossIndices: []int{0, 1}})
	require.NoError(t, err)
	plain, err := fwd.Compute(it)
	require.NoError(t, err)
	assert.Greater(t, plain.Value, res.Value)

	it.TargReverse = nil
	_, err = rev.Compute(it)
	assert.Error(t, err)
}

func TestNearestNeighbour(t *testing.T) {
	fn, err := New(Definition{Kind: NN, LossIndices: []int{0, 1}})
	require.NoError(t, err)
	it := &Item{
		Pred: [][]float64{{0, 0}, {5, 0}},
		Targ: [][]float64{{0, 1}, {1, 0}, {2, 0}},
	}
	res, err := fn.Compute(it)
	require.NoError(t, err)
	// preds to targets: (0,0)->(0,1) or (1,0): 1, (5,0)->(2,0): 3
	// targets to preds: all three map to (0,0): 1 + 1 + 2
	assert.InDelta(t, 8.0, res.Value, 1e-12)

	rng := rand.New(rand.NewSource(3))
	noisy := strokeItem(rng, .3)
	checkGrad(t, fn, noisy, []int{0, 1})
}

func TestCrossEntropy(t *testing.T) {
	fn, err := New(Definition{Kind: CrossEntropy, LossIndices: []int{2}})
	require.NoError(t, err)
	it := &Item{
		Pred: [][]float64{{0, 0, .9}, {0, 0, .2}},
		Targ: [][]float64{{0, 0, 1}, {0, 0, 0}},
	}
	res, err := fn.Compute(it)
	require.NoError(t, err)
	assert.InDelta(t, -(math.Log(.9)+math.Log(.8))/2, res.Value, 1e-12)
	checkGrad(t, fn, it, []int{2})

	logits, err := New(Definition{Kind: CrossEntropy, LossIndices: []int{2}, Activation: "sigmoid"})
	require.NoError(t, err)
	it.Pred = [][]float64{{0, 0, 1.5}, {0, 0, -.3}}
	res, err = logits.Compute(it)
	require.NoError(t, err)
	want := (5*math.Log1p(math.Exp(-1.5)) + math.Log1p(math.Exp(-.3))) / 2
	assert.InDelta(t, want, res.Value, 1e-12)
	checkGrad(t, logits, it, []int{2})
}

func TestBCEFloorsLog(t *testing.T) {
	v, _ := bce([]float64{0}, []float64{1})
	assert.Equal(t, 100.0, v)
	_, g := bceWithLogits([]float64{9, -9, 1}, []float64{1, 0, 1}, true)
	assert.Equal(t, 0.0, g[0])
	assert.Equal(t, 0.0, g[1])
	assert.NotEqual(t, 0.0, g[2])
}

func TestSSL(t *testing.T) {
	fn, err := New(Definition{Kind: SSL})
	require.NoError(t, err)
	it := &Item{
		Pred: [][]float64{{0, .1, .9}, {1, 0, .1}, {2, 0, .1}, {5, 1, .8}},
		Targ: [][]float64{{0, 0, 1}, {1, 0, 0}, {5, 0, 1}},
	}
	res, err := fn.Compute(it)
	require.NoError(t, err)
	want := -(math.Log(.9) + 2*math.Log(.9) + math.Log(.8)) / 4
	assert.InDelta(t, want, res.Value, 1e-12)
	assert.Less(t, res.Grad[0][2], 0.0)
	assert.Greater(t, res.Grad[1][2], 0.0)
	checkGrad(t, fn, it, []int{2})
}

func TestSOSFirstFormat(t *testing.T) {
	f := gt.Format{gt.SOS, gt.X, gt.Y}
	fn, err := New(Definition{Kind: SSL, Format: f})
	require.NoError(t, err)
	it := &Item{
		Pred: [][]float64{{.9, 0, .1}, {.1, 1, 0}, {.1, 2, 0}, {.8, 5, 1}},
		Targ: [][]float64{{1, 0, 0}, {0, 1, 0}, {1, 5, 0}},
	}
	res, err := fn.Compute(it)
	require.NoError(t, err)
	want := -(math.Log(.9) + 2*math.Log(.9) + math.Log(.8)) / 4
	assert.InDelta(t, want, res.Value, 1e-12)
	assert.Less(t, res.Grad[0][0], 0.0)
	assert.Greater(t, res.Grad[1][0], 0.0)
	for _, g := range res.Grad {
		assert.Zero(t, g[1])
		assert.Zero(t, g[2])
	}

	fn, err = New(Definition{Kind: DTW, LossIndices: []int{1, 2}, Format: f})
	require.NoError(t, err)
	res, err = fn.Compute(&Item{Pred: it.Targ, Targ: it.Targ})
	require.NoError(t, err)
	assert.Len(t, res.StrokeCosts, 2)

	_, err = New(Definition{Kind: SSL, Format: gt.Format{gt.X, gt.Y}})
	assert.Error(t, err)
}

func TestStrokeLoss(t *testing.T) {
	reg := stats.NewRegistry()
	counter := &stats.Counter{}
	sl, err := NewStrokeLoss([]Definition{
		{Kind: L1, LossIndices: []int{0, 1}, Coef: 2},
		{Kind: DTW, LossIndices: []int{0, 1}, Coef: 1},
		{Name: "nn", Kind: NN, LossIndices: []int{0, 1}, Coef: 5, MonitorOnly: true},
		{Kind: L1, LossIndices: []int{0}, Coef: 100},
	}, reg, counter, 2)
	require.NoError(t, err)
	require.Len(t, sl.Definitions(), 3)

	rng := rand.New(rand.NewSource(9))
	items := []*Item{strokeItem(rng, .1), strokeItem(rng, .1), strokeItem(rng, .1)}
	br, err := sl.Compute(context.Background(), items, Train)
	require.NoError(t, err)

	l1, _ := sl.losses[0].fn.Compute(items[1])
	assert.Equal(t, l1.Value, br.Items[1][0].Value)
	want := 2*br.Losses["l1"] + br.Losses["dtw"]
	assert.InDelta(t, want, br.Combined, 1e-9)
	assert.InDelta(t, want/3, br.PerItem, 1e-9)
	assert.Greater(t, br.Losses["nn"], 0.0)

	expected := 2*br.Items[0][0].Grad[3][0] + br.Items[0][1].Grad[3][0]
	assert.InDelta(t, expected, br.Grads[0][3][0], 1e-12)

	stat, ok := reg.Lookup("dtw_train")
	require.True(t, ok)
	assert.InDelta(t, br.Losses["dtw"]/3, stat.Current(), 1e-9)
	assert.Equal(t, 24, counter.Snapshot().TrainingPredCount)

	_, err = sl.Compute(context.Background(), items, Test)
	require.NoError(t, err)
	assert.Equal(t, 24, counter.Snapshot().TestPredCount)
}

func TestStrokeLossAbortsOnError(t *testing.T) {
	sl, err := NewStrokeLoss([]Definition{{Kind: DTW, LossIndices: []int{0, 1}}}, nil, nil, 0)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(1))
	items := []*Item{strokeItem(rng, .1), {Pred: [][]float64{}, Targ: [][]float64{{0, 0}}}, strokeItem(rng, .1)}
	_, err = sl.Compute(context.Background(), items, Train)
	assert.Error(t, err)

	_, err = NewStrokeLoss(nil, nil, nil, 1)
	assert.Error(t, err)
}

func TestFromTimeMajor(t *testing.T) {
	preds := [][][]float64{
		{{1, 1}, {2, 2}},
		{{3, 3}, {4, 4}},
		{{5, 5}, {6, 6}},
	}
	out := FromTimeMajor(preds, nil)
	require.Len(t, out, 2)
	assert.Equal(t, [][]float64{{1, 1}, {3, 3}, {5, 5}}, out[0])
	assert.Equal(t, [][]float64{{2, 2}, {4, 4}, {6, 6}}, out[1])

	cut := FromTimeMajor(preds, []int{3, 1})
	assert.Len(t, cut[1], 1)
	assert.Panics(t, func() { FromTimeMajor(preds, []int{1}) })
}

func TestResampleTargets(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	it := strokeItem(rng, 0)
	it.Pred = append(it.Pred, it.Pred...)
	require.NoError(t, ResampleTargets([]*Item{it}, gt.DefaultFormat))
	assert.Len(t, it.Targ, 16)
	assert.Len(t, it.TargReverse, 16)
	assert.Len(t, it.Starts, 2)
	assert.Equal(t, 0, it.Starts[0])
}
