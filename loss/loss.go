// Package loss scores predicted stroke sequences against ground truth and
// returns gradients with respect to the predictions.
package loss

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/juruen/strokerecovery/dtw"
	"github.com/juruen/strokerecovery/gt"
)

// Kind names a loss function.
type Kind string

const (
	L1           Kind = "l1"
	L2           Kind = "l2"
	DTW          Kind = "dtw"
	DTWSOSEOS    Kind = "dtw_sos_eos"
	DTWReverse   Kind = "dtw_reverse"
	NN           Kind = "nn"
	CrossEntropy Kind = "cross_entropy"
	SSL          Kind = "ssl"
)

const defaultSOSIndex = 2

var (
	// ErrUnknownLoss is returned for a kind that has no constructor.
	ErrUnknownLoss = errors.New("unknown loss")
	// ErrLengthMismatch is returned by pointwise losses when prediction and
	// target differ in length.
	ErrLengthMismatch = errors.New("prediction and target lengths differ")
)

// Definition configures one loss.
type Definition struct {
	// Name identifies the loss in stats. It defaults to the kind.
	Name string
	Kind Kind
	// Coef scales the loss in the combined value.
	Coef float64
	// Subcoef weights each loss index. Empty means all ones.
	Subcoef []float64
	// MonitorOnly losses are reported but do not contribute to the
	// combined value or gradient.
	MonitorOnly bool

	LossIndices []int
	// MappingBasis are the columns DTW matches on. Defaults to LossIndices.
	MappingBasis []int
	// CrossEntropyIndices add a logits cross entropy term to DTW losses.
	CrossEntropyIndices    []int
	RelativefyCrossEntropy bool
	// Activation "sigmoid" makes cross_entropy take logits.
	Activation string
	// Constraint is the DTW band; 0 disables it.
	Constraint int
	// SOSIndex is the start-of-stroke column of the targets, -1 for none.
	// With a Format it is taken from the format; without one zero selects
	// the third column.
	SOSIndex int
	// Resample redraws targets at the prediction length before l1 and l2.
	Resample bool
	// Format describes the target columns. It is required by Resample and
	// locates the sos, x and y columns.
	Format gt.Format
}

func (d *Definition) subcoef(i int) float64 {
	if len(d.Subcoef) == 0 {
		return 1
	}
	return d.Subcoef[i]
}

func (d *Definition) validate() error {
	if len(d.Subcoef) != 0 && len(d.Subcoef) != len(d.LossIndices) {
		return errors.Errorf("loss %s: %d subcoefs for %d loss indices", d.Name, len(d.Subcoef), len(d.LossIndices))
	}
	if len(d.LossIndices) == 0 && d.Kind != SSL {
		return errors.Errorf("loss %s: no loss indices", d.Name)
	}
	if d.Resample && len(d.Format) == 0 {
		return errors.Errorf("loss %s: resampling needs a gt format", d.Name)
	}
	if d.Kind == SSL && d.SOSIndex < 0 {
		return errors.Errorf("loss %s: gt format has no sos column", d.Name)
	}
	return nil
}

// Item is one element of a batch.
type Item struct {
	// Pred is the prediction, one row per time step.
	Pred [][]float64
	// Targ is the ground truth, one row per point.
	Targ [][]float64
	// TargReverse is Targ with each stroke reversed, used by dtw_reverse.
	TargReverse [][]float64
	// Starts are the stroke start rows of Targ. When nil they are read from
	// the start-of-stroke column.
	Starts []int
}

func (it *Item) starts(sosIndex int) []int {
	if it.Starts != nil {
		return it.Starts
	}
	if sosIndex < 0 {
		if len(it.Targ) == 0 {
			return nil
		}
		return []int{0}
	}
	var starts []int
	for i, r := range it.Targ {
		if sosIndex < len(r) && r[sosIndex] > .5 {
			starts = append(starts, i)
		}
	}
	return starts
}

// Result is the outcome of a loss on one item.
type Result struct {
	Value float64
	// Grad has the shape of the prediction.
	Grad [][]float64

	// Alignment and StrokeCosts are filled by DTW losses.
	Alignment   *dtw.Path
	StrokeCosts []dtw.StrokeCost
	Reversed    []bool
}

// Func computes a loss for one item. Implementations are safe for
// concurrent use.
type Func interface {
	Compute(it *Item) (*Result, error)
}

// Constructor builds a loss from its definition.
type Constructor func(d Definition) (Func, error)

var registry = map[Kind]Constructor{
	L1:           newPointwise,
	L2:           newPointwise,
	DTW:          newDTW,
	DTWSOSEOS:    newDTW,
	DTWReverse:   newDTW,
	NN:           newNearest,
	CrossEntropy: newCrossEntropy,
	SSL:          newSSL,
}

// ParseKind matches a loss name exactly, ignoring case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := registry[k]; !ok {
		return "", errors.Wrapf(ErrUnknownLoss, "%q", s)
	}
	return k, nil
}

// Kinds lists the registered kinds.
func Kinds() []Kind {
	out := make([]Kind, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (d *Definition) resolveSOS() {
	switch {
	case len(d.Format) > 0:
		d.SOSIndex = d.Format.Index(gt.SOS)
	case d.SOSIndex == 0:
		d.SOSIndex = defaultSOSIndex
	}
}

// New builds the loss named by d.Kind.
func New(d Definition) (Func, error) {
	ctor, ok := registry[d.Kind]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownLoss, "%q", d.Kind)
	}
	if d.Name == "" {
		d.Name = string(d.Kind)
	}
	d.resolveSOS()
	if err := d.validate(); err != nil {
		return nil, err
	}
	return ctor(d)
}

func zeros(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = make([]float64, len(r))
	}
	return out
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func selectCols(rows [][]float64, cols []int) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		p := make([]float64, len(cols))
		for j, c := range cols {
			p[j] = r[c]
		}
		out[i] = p
	}
	return out
}

func errorLength(name string, it *Item) error {
	return errors.Wrapf(ErrLengthMismatch, "loss %s: %d predictions, %d targets", name, len(it.Pred), len(it.Targ))
}
