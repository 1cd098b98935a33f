package shell

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"math"
	"math/rand"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/juruen/strokerecovery/config"
	"github.com/juruen/strokerecovery/coords"
	"github.com/juruen/strokerecovery/dataset"
	"github.com/juruen/strokerecovery/dtw"
	"github.com/juruen/strokerecovery/encoding/iamxml"
	"github.com/juruen/strokerecovery/encoding/rm"
	"github.com/juruen/strokerecovery/gt"
	"github.com/juruen/strokerecovery/log"
	"github.com/juruen/strokerecovery/loss"
	"github.com/juruen/strokerecovery/render"
	"github.com/juruen/strokerecovery/stats"
	"github.com/juruen/strokerecovery/stroke"
)

var (
	ErrNoInstance   = errors.New("no instance loaded")
	ErrNoPrediction = errors.New("no prediction, run sample first")
	ErrNoAlignment  = errors.New("no alignment, run align first")
)

// ShellCtxt is the state of a session: the loaded instances, the selected
// one and the prediction aligned against it.
type ShellCtxt struct {
	cfg       *config.Config
	instances []*dataset.Instance
	current   int

	pred      *gt.Sequence
	alignment *dtw.Alignment
	// target is the x, y target the alignment refers to; it differs from
	// the instance once strokes are reversed
	target   [][]float64
	reversed []bool

	reg     *stats.Registry
	counter *stats.Counter
}

func NewShellCtxt(cfg *config.Config) *ShellCtxt {
	if cfg == nil {
		cfg = config.Default()
	}
	return &ShellCtxt{cfg: cfg, reg: stats.NewRegistry(), counter: &stats.Counter{}}
}

func (ctx *ShellCtxt) prompt() string {
	in, err := ctx.Current()
	if err != nil {
		return "[-]>"
	}
	return fmt.Sprintf("[%d:%s]>", ctx.current, filepath.Base(in.Source))
}

// Current returns the selected instance.
func (ctx *ShellCtxt) Current() (*dataset.Instance, error) {
	if len(ctx.instances) == 0 {
		return nil, ErrNoInstance
	}
	return ctx.instances[ctx.current], nil
}

func (ctx *ShellCtxt) Instances() []*dataset.Instance {
	return ctx.instances
}

func (ctx *ShellCtxt) Prediction() *gt.Sequence {
	return ctx.pred
}

func (ctx *ShellCtxt) Alignment() *dtw.Alignment {
	return ctx.alignment
}

func (ctx *ShellCtxt) reset() {
	ctx.pred, ctx.alignment, ctx.target, ctx.reversed = nil, nil, nil, nil
}

// ParseRange reads "a:b" stroke ranges, either side may be empty.
func ParseRange(s string) (iamxml.Range, error) {
	if s == "" {
		return iamxml.All, nil
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return iamxml.All, errors.Errorf("range %q is not start:end", s)
	}
	var rg iamxml.Range
	var err error
	if parts[0] != "" {
		if rg.Start, err = strconv.Atoi(parts[0]); err != nil {
			return iamxml.All, errors.Wrapf(err, "range %q", s)
		}
	}
	if parts[1] != "" {
		if rg.End, err = strconv.Atoi(parts[1]); err != nil {
			return iamxml.All, errors.Wrapf(err, "range %q", s)
		}
	}
	return rg, nil
}

// Load appends the instances of path: a dataset JSON file, an IAM XML file
// or a reMarkable page. The first new instance is selected.
func (ctx *ShellCtxt) Load(path string, rg iamxml.Range) (int, error) {
	var loaded []*dataset.Instance
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var err error
		if loaded, err = dataset.Load(path); err != nil {
			return 0, err
		}
	} else {
		opts, err := ctx.cfg.DatasetOptions(1)
		if err != nil {
			return 0, err
		}
		opts.KeepRaw = true
		opts.Range = rg
		strokes, err := dataset.ReadStrokes(path, rg)
		if err != nil {
			return 0, err
		}
		in, err := dataset.NewInstance(dataset.Source{Path: path}, strokes, opts)
		if err != nil {
			return 0, errors.Wrap(err, path)
		}
		loaded = []*dataset.Instance{in}
	}
	if len(loaded) == 0 {
		return 0, errors.Errorf("%s holds no instances", path)
	}
	ctx.current = len(ctx.instances)
	ctx.instances = append(ctx.instances, loaded...)
	ctx.reset()
	log.Trace.Printf("loaded %d instances from %s", len(loaded), path)
	return len(loaded), nil
}

// Select makes the instance with the given index or id current.
func (ctx *ShellCtxt) Select(arg string) error {
	if i, err := strconv.Atoi(arg); err == nil {
		if i < 0 || i >= len(ctx.instances) {
			return errors.Errorf("instance %d out of range [0, %d)", i, len(ctx.instances))
		}
		ctx.current = i
		ctx.reset()
		return nil
	}
	for i, in := range ctx.instances {
		if in.ID == arg || (len(arg) >= 8 && strings.HasPrefix(in.ID, arg)) {
			ctx.current = i
			ctx.reset()
			return nil
		}
	}
	return errors.Errorf("no instance %q", arg)
}

// Sample redraws the current instance with n points and the given noise and
// uses it as the prediction. n <= 0 keeps the ground truth length.
func (ctx *ShellCtxt) Sample(n int, noise gt.Noise, seed int64) error {
	in, err := ctx.Current()
	if err != nil {
		return err
	}
	if len(in.Raw) == 0 {
		return errors.Errorf("instance %s has no raw strokes", in.ID)
	}
	d, err := stroke.Prepare(in.Raw, ctx.cfg.PrepareOptions())
	if err != nil {
		return err
	}
	opts, err := ctx.cfg.DatasetOptions(seed)
	if err != nil {
		return err
	}
	opts.GT.Noise = noise
	if noise != gt.NoNoise && opts.GT.Rand == nil {
		opts.GT.Rand = rand.New(rand.NewSource(seed))
	}
	if n <= 0 {
		n = len(in.GT)
	}
	seq, err := gt.Build(d, n, in.Format, opts.GT)
	if err != nil {
		return err
	}
	ctx.reset()
	ctx.pred = seq
	return nil
}

// SetPrediction uses rows, in the format of the current instance, as the
// prediction.
func (ctx *ShellCtxt) SetPrediction(rows [][]float64) error {
	in, err := ctx.Current()
	if err != nil {
		return err
	}
	for i, r := range rows {
		if len(r) != len(in.Format) {
			return errors.Errorf("prediction row %d has %d columns, want %d", i, len(r), len(in.Format))
		}
	}
	ctx.reset()
	ctx.pred = &gt.Sequence{Format: in.Format, Rows: rows}
	return nil
}

func xy(seq *gt.Sequence) [][]float64 {
	xi, yi := seq.Format.Index(gt.X), seq.Format.Index(gt.Y)
	out := make([][]float64, len(seq.Rows))
	for i, r := range seq.Rows {
		out[i] = []float64{r[xi], r[yi]}
	}
	return out
}

func starts(seq *gt.Sequence) []int {
	sos := seq.Format.Index(gt.SOS)
	if sos < 0 {
		return []int{0}
	}
	return stroke.SOSArgsRows(seq.Rows, sos)
}

func (ctx *ShellCtxt) ready() (*dataset.Instance, error) {
	in, err := ctx.Current()
	if err != nil {
		return nil, err
	}
	if ctx.pred == nil {
		return nil, ErrNoPrediction
	}
	return in, nil
}

// Align matches the prediction against the current instance. With reverse
// every stroke may be matched backwards.
func (ctx *ShellCtxt) Align(reverse bool, window int) (*dtw.Alignment, error) {
	in, err := ctx.ready()
	if err != nil {
		return nil, err
	}
	seq := in.Sequence()
	pred, targ := xy(ctx.pred), xy(seq)
	opts := []dtw.Option{dtw.WithConstraint(window)}
	if reverse {
		ra, err := dtw.AlignReverse(pred, targ, xy(seq.Reversed()), starts(seq), opts...)
		if err != nil {
			return nil, err
		}
		ctx.alignment, ctx.target, ctx.reversed = ra.Alignment, ra.Target, ra.Reversed
		return ra.Alignment, nil
	}
	al, err := dtw.Align(pred, targ, opts...)
	if err != nil {
		return nil, err
	}
	ctx.alignment, ctx.target, ctx.reversed = al, targ, nil
	return al, nil
}

// Reversed reports which strokes the last reverse alignment flipped.
func (ctx *ShellCtxt) Reversed() []bool {
	return ctx.reversed
}

// Costs returns the top most expensive strokes of the alignment; top <= 0
// returns all of them in stroke order.
func (ctx *ShellCtxt) Costs(top int) ([]dtw.StrokeCost, error) {
	in, err := ctx.ready()
	if err != nil {
		return nil, err
	}
	if ctx.alignment == nil {
		return nil, ErrNoAlignment
	}
	costs := dtw.StrokeCosts(ctx.alignment, xy(ctx.pred), ctx.target, starts(in.Sequence()), ctx.cfg.Repair.Normalize)
	if top <= 0 {
		return costs, nil
	}
	return dtw.Worst(costs, top), nil
}

// Repair tries to reverse one badly aligned stroke. An improvement replaces
// the session alignment and target.
func (ctx *ShellCtxt) Repair(opts dtw.RepairOptions) (*dtw.RepairResult, error) {
	in, err := ctx.ready()
	if err != nil {
		return nil, err
	}
	if ctx.alignment == nil {
		return nil, ErrNoAlignment
	}
	res := dtw.Repair(ctx.alignment, xy(ctx.pred), ctx.target, starts(in.Sequence()), opts)
	if res.Improved {
		ctx.alignment, ctx.target = res.Alignment, res.Target
		if ctx.reversed == nil {
			ctx.reversed = make([]bool, len(starts(in.Sequence())))
		}
		if res.Stroke < len(ctx.reversed) {
			ctx.reversed[res.Stroke] = !ctx.reversed[res.Stroke]
		}
	}
	return res, nil
}

// Loss scores the prediction with the configured losses. With relative the
// x and y columns of the prediction are taken as deltas and rebuilt with the
// configured convolution first; the gradient is then mapped back onto
// those deltas. A prediction of another length is scored against the
// ground truth redrawn at its length.
func (ctx *ShellCtxt) Loss(relative bool) (*loss.BatchResult, error) {
	in, err := ctx.ready()
	if err != nil {
		return nil, err
	}
	f, err := ctx.cfg.Format()
	if err != nil {
		return nil, err
	}
	if !sameFormat(f, in.Format) {
		return nil, errors.Errorf("instance format %v does not match configured format %v", in.Format, f)
	}
	defs, err := ctx.cfg.LossDefinitions()
	if err != nil {
		return nil, err
	}
	sl, err := loss.NewStrokeLoss(defs, ctx.reg, ctx.counter, ctx.cfg.Workers)
	if err != nil {
		return nil, err
	}

	seq := in.Sequence()
	pred := ctx.pred.Rows
	cols := []int{f.Index(gt.X), f.Index(gt.Y)}
	var conv *coords.Convolver
	if relative {
		if conv, err = ctx.cfg.Convolver(); err != nil {
			return nil, err
		}
		if len(pred) < len(seq.Rows) {
			return nil, errors.Errorf("%d predictions for %d ground truth points", len(pred), len(seq.Rows))
		}
		pred = conv.Convolve(coords.RelativefyColumns(pred, cols, false), seq.Rows, cols)
	}
	item := &loss.Item{Pred: pred, Targ: seq.Rows, TargReverse: seq.Reversed().Rows}
	if len(pred) != len(seq.Rows) {
		if err := loss.ResampleTargets([]*loss.Item{item}, f); err != nil {
			return nil, err
		}
	}
	res, err := sl.Compute(context.Background(), []*loss.Item{item}, loss.Test)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		res.Grads[0] = conv.Backward(res.Grads[0], len(ctx.pred.Rows), cols)
	}
	return res, nil
}

func sameFormat(a, b gt.Format) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// targetSequence is the aligned target with the start flags of the
// instance, for drawing.
func (ctx *ShellCtxt) targetSequence(in *dataset.Instance) *gt.Sequence {
	if ctx.target == nil {
		return in.Sequence()
	}
	sos := in.Format.Index(gt.SOS)
	rows := make([][]float64, len(ctx.target))
	for i, r := range ctx.target {
		flag := 0.0
		if sos >= 0 {
			flag = in.GT[i][sos]
		}
		rows[i] = []float64{r[0], r[1], flag}
	}
	return &gt.Sequence{Format: gt.Format{gt.X, gt.Y, gt.SOS}, Rows: rows}
}

func (ctx *ShellCtxt) page() (render.Page, error) {
	in, err := ctx.Current()
	if err != nil {
		return render.Page{}, err
	}
	page := render.Page{Title: filepath.Base(in.Source), GT: ctx.targetSequence(in), Pred: ctx.pred}
	if ctx.alignment != nil {
		page.Alignment = &ctx.alignment.Path
	}
	return page, nil
}

// Render writes the current instance, the prediction and the alignment
// links to a PDF.
func (ctx *ShellCtxt) Render(path string, opts render.Options) error {
	page, err := ctx.page()
	if err != nil {
		return err
	}
	return render.WriteFile(path, []render.Page{page}, opts)
}

// RenderTo is Render onto w.
func (ctx *ShellCtxt) RenderTo(w io.Writer, opts render.Options) error {
	page, err := ctx.page()
	if err != nil {
		return err
	}
	return render.Write(w, []render.Page{page}, opts)
}

// Export writes the prediction (or the ground truth) of the current
// instance. ".rm" writes a reMarkable page, ".json" the loaded dataset.
func (ctx *ShellCtxt) Export(path string, pred bool) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if len(ctx.instances) == 0 {
			return ErrNoInstance
		}
		return dataset.Save(path, ctx.instances)
	}
	in, err := ctx.Current()
	if err != nil {
		return err
	}
	seq := in.Sequence()
	if pred {
		if ctx.pred == nil {
			return ErrNoPrediction
		}
		seq = ctx.pred
	}
	if !strings.EqualFold(filepath.Ext(path), ".rm") {
		return errors.Errorf("cannot export to %s, use .rm or .json", path)
	}
	strokes := seq.Strokes()
	// pages are in device units, scale the normalised strokes back
	scale := 1.0
	if len(in.Raw) > 0 {
		scale = rawScale(in.Raw)
	}
	for i := range strokes {
		for j := range strokes[i].Points {
			strokes[i].Points[j].X *= scale
			strokes[i].Points[j].Y *= scale
		}
	}
	data, err := rm.FromStrokes(strokes, rm.FinelinerV5, rm.Medium).MarshalBinary()
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, data, 0644)
}

// rawScale is the y extent of the raw strokes, the unit Prepare divides by.
func rawScale(raw []stroke.Stroke) float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range raw {
		for _, p := range s.Points {
			lo, hi = math.Min(lo, p.Y), math.Max(hi, p.Y)
		}
	}
	if hi <= lo {
		return 1
	}
	return hi - lo
}

// StatsJSON is the loss statistics and counters of the session.
func (ctx *ShellCtxt) StatsJSON() ([]byte, error) {
	return json.MarshalIndent(struct {
		Stats   *stats.Registry `json:"stats"`
		Counter stats.Delta     `json:"counter"`
	}{ctx.reg, ctx.counter.Snapshot()}, "", "  ")
}
