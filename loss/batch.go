package loss

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/juruen/strokerecovery/gt"
)

// FromTimeMajor turns a (time, batch, vocab) prediction into one
// (time, vocab) matrix per batch element. When lengths is given each element
// is cut to its length.
func FromTimeMajor(preds [][][]float64, lengths []int) [][][]float64 {
	if len(preds) == 0 {
		return nil
	}
	batch := len(preds[0])
	if lengths != nil && len(lengths) != batch {
		panic(fmt.Sprintf("loss: %d lengths for a batch of %d", len(lengths), batch))
	}
	out := make([][][]float64, batch)
	for b := range out {
		n := len(preds)
		if lengths != nil && lengths[b] < n {
			n = lengths[b]
		}
		rows := make([][]float64, n)
		for t := 0; t < n; t++ {
			rows[t] = append([]float64(nil), preds[t][b]...)
		}
		out[b] = rows
	}
	return out
}

// ResampleTargets redraws the targets of every item at its prediction
// length. Reversed targets and stroke starts are derived again.
func ResampleTargets(items []*Item, f gt.Format) error {
	sos := f.Index(gt.SOS)
	for i, it := range items {
		seq, err := gt.Resample(&gt.Sequence{Format: f, Rows: it.Targ}, len(it.Pred))
		if err != nil {
			return errors.Wrapf(err, "resample item %d", i)
		}
		it.Targ = seq.Rows
		it.TargReverse = seq.Reversed().Rows
		it.Starts = nil
		if sos >= 0 {
			it.Starts = it.starts(sos)
		}
	}
	return nil
}
