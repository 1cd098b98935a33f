package loss

import (
	"math"

	"github.com/pkg/errors"

	"github.com/juruen/strokerecovery/gt"
)

type pointwise struct {
	def Definition
}

func newPointwise(d Definition) (Func, error) {
	return &pointwise{def: d}, nil
}

func (l *pointwise) Compute(it *Item) (*Result, error) {
	targ := it.Targ
	if l.def.Resample && len(targ) != len(it.Pred) {
		seq, err := gt.Resample(&gt.Sequence{Format: l.def.Format, Rows: targ}, len(it.Pred))
		if err != nil {
			return nil, errors.Wrapf(err, "loss %s", l.def.Name)
		}
		targ = seq.Rows
	}
	if len(targ) != len(it.Pred) {
		return nil, errorLength(l.def.Name, &Item{Pred: it.Pred, Targ: targ})
	}

	res := &Result{Grad: zeros(it.Pred)}
	switch l.def.Kind {
	case L2:
		sum := 0.0
		for i, p := range it.Pred {
			for k, c := range l.def.LossIndices {
				d := p[c] - targ[i][c]
				sum += d * d * l.def.subcoef(k)
			}
		}
		res.Value = math.Sqrt(sum)
		if res.Value == 0 {
			return res, nil
		}
		for i, p := range it.Pred {
			for k, c := range l.def.LossIndices {
				res.Grad[i][c] = (p[c] - targ[i][c]) * l.def.subcoef(k) / res.Value
			}
		}
	default:
		for i, p := range it.Pred {
			for k, c := range l.def.LossIndices {
				d := p[c] - targ[i][c]
				res.Value += math.Abs(d) * l.def.subcoef(k)
				res.Grad[i][c] = sign(d) * l.def.subcoef(k)
			}
		}
	}
	return res, nil
}
