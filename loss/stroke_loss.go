package loss

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/juruen/strokerecovery/log"
	"github.com/juruen/strokerecovery/stats"
)

// Split tells training and test batches apart in stats.
type Split string

const (
	Train Split = "_train"
	Test  Split = "_test"
)

type entry struct {
	def Definition
	fn  Func
}

// StrokeLoss combines several losses over a batch.
type StrokeLoss struct {
	losses  []entry
	stats   *stats.Registry
	counter *stats.Counter
	workers int
}

// NewStrokeLoss builds every definition. workers bounds the number of items
// scored at once; 0 uses the number of CPUs. Definitions with the same name
// share one loss.
func NewStrokeLoss(defs []Definition, reg *stats.Registry, counter *stats.Counter, workers int) (*StrokeLoss, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if reg == nil {
		reg = stats.NewRegistry()
	}
	if counter == nil {
		counter = &stats.Counter{}
	}
	s := &StrokeLoss{stats: reg, counter: counter, workers: workers}
	seen := map[string]bool{}
	for _, d := range defs {
		if d.Name == "" {
			d.Name = string(d.Kind)
		}
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		fn, err := New(d)
		if err != nil {
			return nil, err
		}
		log.Info.Printf("loss %s: kind=%s coef=%g subcoef=%v monitor_only=%v", d.Name, d.Kind, d.Coef, d.Subcoef, d.MonitorOnly)
		s.losses = append(s.losses, entry{def: d, fn: fn})
	}
	if len(s.losses) == 0 {
		return nil, errors.New("no losses defined")
	}
	return s, nil
}

// Definitions returns the losses in evaluation order.
func (s *StrokeLoss) Definitions() []Definition {
	out := make([]Definition, len(s.losses))
	for i, e := range s.losses {
		out[i] = e.def
	}
	return out
}

// BatchResult is the outcome of StrokeLoss.Compute.
type BatchResult struct {
	// Combined is the coefficient weighted sum of the non monitor losses.
	Combined float64
	// PerItem is Combined divided by the batch size.
	PerItem float64
	// Losses is the batch total of every loss by name.
	Losses map[string]float64
	// Grads is the gradient of Combined for every item.
	Grads [][][]float64
	// Items holds the per loss results of every item, in definition order.
	Items [][]*Result
}

// Compute scores a batch. Items are processed concurrently; the results keep
// batch order. The first failing item aborts the batch.
func (s *StrokeLoss) Compute(ctx context.Context, items []*Item, split Split) (*BatchResult, error) {
	results := make([][]*Result, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range items {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out := make([]*Result, len(s.losses))
			for k, e := range s.losses {
				r, err := e.fn.Compute(items[i])
				if err != nil {
					return errors.Wrapf(err, "batch item %d", i)
				}
				out[k] = r
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	br := &BatchResult{
		Losses: make(map[string]float64, len(s.losses)),
		Grads:  make([][][]float64, len(items)),
		Items:  results,
	}
	points := 0
	for i, it := range items {
		points += len(it.Targ)
		br.Grads[i] = zeros(it.Pred)
		for k, e := range s.losses {
			r := results[i][k]
			br.Losses[e.def.Name] += r.Value
			if e.def.MonitorOnly {
				continue
			}
			br.Combined += e.def.Coef * r.Value
			for row := range r.Grad {
				for c, v := range r.Grad[row] {
					br.Grads[i][row][c] += e.def.Coef * v
				}
			}
		}
	}
	if len(items) > 0 {
		br.PerItem = br.Combined / float64(len(items))
	}

	for _, e := range s.losses {
		s.stats.Get(e.def.Name+string(split), stats.EveryUpdate).Accumulate(br.Losses[e.def.Name], float64(len(items)))
	}
	switch split {
	case Train:
		s.counter.Update(stats.Delta{TrainingPredCount: points})
	case Test:
		s.counter.Update(stats.Delta{TestPredCount: points})
	}
	log.Trace.Printf("loss batch of %d: combined %g", len(items), br.Combined)
	return br, nil
}
