package shell

import (
	"github.com/pkg/errors"

	"github.com/juruen/strokerecovery/gt"
	"github.com/juruen/strokerecovery/loss"
	"github.com/juruen/strokerecovery/stroke"
)

// startFlags are the stroke starts of seq, read from its sos column or,
// without one, from where its stroke numbers change.
func startFlags(seq *gt.Sequence) ([]float64, error) {
	if seq.Format.Index(gt.SOS) >= 0 {
		return seq.Column(gt.SOS), nil
	}
	if seq.Format.Index(gt.StrokeNumber) >= 0 {
		flags := stroke.StartStrokesFromNumbers(seq.Column(gt.StrokeNumber))
		if len(flags) > 0 {
			flags[0] = 1
		}
		return flags, nil
	}
	return nil, errors.Errorf("format %v has neither sos nor stroke_number", seq.Format)
}

// Postprocess cleans up the prediction: every jump longer than maxDist
// starts a new stroke, and with strays isolated points that jump out and
// back are dropped. It returns the number of points removed.
func (ctx *ShellCtxt) Postprocess(maxDist float64, strays bool) (int, error) {
	if _, err := ctx.ready(); err != nil {
		return 0, err
	}
	seq := ctx.pred
	flags, err := startFlags(seq)
	if err != nil {
		return 0, err
	}

	// x, y, start flag and the row it came from
	xys := xy(seq)
	rows := make([][]float64, len(xys))
	for i, p := range xys {
		rows[i] = []float64{p[0], p[1], flags[i], float64(i)}
	}
	// strays first, a stray split off as its own stroke is no longer removed
	if strays {
		rows = stroke.RemoveStrays(rows, 2, maxDist)
	}
	rows = stroke.MakeMoreStartPoints(rows, 2, maxDist)

	sos := make([]float64, len(rows))
	for i, r := range rows {
		sos[i] = r[2]
	}
	derived := map[gt.Channel][]float64{
		gt.SOS:          sos,
		gt.EOS:          stroke.EOSFromSOS(sos),
		gt.StrokeNumber: stroke.StrokeNumbers(sos),
	}
	xi, yi := seq.Format.Index(gt.X), seq.Format.Index(gt.Y)
	out := make([][]float64, len(rows))
	for i, r := range rows {
		row := append([]float64(nil), seq.Rows[int(r[3])]...)
		row[xi], row[yi] = r[0], r[1]
		for c, col := range derived {
			if j := seq.Format.Index(c); j >= 0 {
				row[j] = col[i]
			}
		}
		out[i] = row
	}

	removed := len(seq.Rows) - len(out)
	ctx.reset()
	ctx.pred = &gt.Sequence{Format: seq.Format, Rows: out}
	return removed, nil
}

// SetBatchPrediction takes a time-major (time, batch, channel) model output
// holding one element per loaded instance and uses the element of the
// current instance as the prediction. lengths, when given, cuts each
// element to its length.
func (ctx *ShellCtxt) SetBatchPrediction(preds [][][]float64, lengths []int) error {
	if _, err := ctx.Current(); err != nil {
		return err
	}
	if len(preds) == 0 {
		return errors.New("empty prediction batch")
	}
	if n := len(preds[0]); n != len(ctx.instances) {
		return errors.Errorf("batch of %d for %d instances", n, len(ctx.instances))
	}
	if lengths != nil && len(lengths) != len(ctx.instances) {
		return errors.Errorf("%d lengths for %d instances", len(lengths), len(ctx.instances))
	}
	for t, step := range preds {
		if len(step) != len(ctx.instances) {
			return errors.Errorf("time step %d has a batch of %d", t, len(step))
		}
	}
	return ctx.SetPrediction(loss.FromTimeMajor(preds, lengths)[ctx.current])
}
