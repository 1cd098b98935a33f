package shell

import (
	"errors"

	"github.com/abiosoft/ishell"
	flag "github.com/ogier/pflag"

	"github.com/juruen/strokerecovery/gt"
)

func sampleCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "sample",
		Help: "draw a prediction from the current instance, usage: sample [--points n] [--noise random|lagged] [--seed s]",
		Func: func(c *ishell.Context) {
			flagSet := flag.NewFlagSet("sample", flag.ContinueOnError)
			points := flagSet.Int("points", 0, "number of points, 0 keeps the ground truth length")
			noiseArg := flagSet.String("noise", "", "time noise: random or lagged")
			seed := flagSet.Int64("seed", 1, "random seed")
			if err := flagSet.Parse(c.Args); err != nil {
				if err != flag.ErrHelp {
					c.Err(err)
				}
				return
			}
			noise, err := gt.ParseNoise(*noiseArg)
			if err != nil {
				c.Err(err)
				return
			}
			if err := ctx.Sample(*points, noise, *seed); err != nil {
				c.Err(err)
				return
			}
			c.Printf("prediction of %d points\n", ctx.Prediction().Len())
		},
	}
}

func alignCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "align",
		Help: "align the prediction with the ground truth, usage: align [--reverse] [--window k]",
		Func: func(c *ishell.Context) {
			flagSet := flag.NewFlagSet("align", flag.ContinueOnError)
			reverse := flagSet.Bool("reverse", false, "allow strokes to be matched backwards")
			window := flagSet.Int("window", 0, "band constraint, 0 for none")
			if err := flagSet.Parse(c.Args); err != nil {
				if err != flag.ErrHelp {
					c.Err(err)
				}
				return
			}
			al, err := ctx.Align(*reverse, *window)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("cost %.6f over %d pairs\n", al.Cost, al.Len())
			for i, r := range ctx.Reversed() {
				if r {
					c.Printf("stroke %d reversed\n", i)
				}
			}
		},
	}
}

func costsCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "costs",
		Help: "show the cost of every stroke, usage: costs [--top n]",
		Func: func(c *ishell.Context) {
			flagSet := flag.NewFlagSet("costs", flag.ContinueOnError)
			top := flagSet.Int("top", 0, "only the n most expensive strokes")
			if err := flagSet.Parse(c.Args); err != nil {
				if err != flag.ErrHelp {
					c.Err(err)
				}
				return
			}
			costs, err := ctx.Costs(*top)
			if err != nil {
				c.Err(err)
				return
			}
			for _, sc := range costs {
				c.Printf("stroke %d\t[%d, %d)\t%d pairs\t%.6f\n", sc.Stroke, sc.Start, sc.End, sc.Pairs, sc.Cost)
			}
		},
	}
}

func repairCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "repair",
		Help: "reverse the worst stroke if that lowers the cost, usage: repair [--buffer n] [--candidates n]",
		Func: func(c *ishell.Context) {
			opts := ctx.cfg.RepairOptions()
			flagSet := flag.NewFlagSet("repair", flag.ContinueOnError)
			flagSet.IntVar(&opts.Buffer, "buffer", opts.Buffer, "columns recomputed after the stroke")
			flagSet.IntVar(&opts.Candidates, "candidates", opts.Candidates, "number of strokes tried")
			flagSet.BoolVar(&opts.Normalize, "normalize", opts.Normalize, "rank strokes by cost per pair")
			if err := flagSet.Parse(c.Args); err != nil {
				if err != flag.ErrHelp {
					c.Err(err)
				}
				return
			}
			res, err := ctx.Repair(opts)
			if err != nil {
				c.Err(err)
				return
			}
			if !res.Improved {
				c.Err(errors.New("no stroke reversal lowers the cost"))
				return
			}
			c.Printf("reversed stroke %d, columns [%d, %d], exit %.6f -> %.6f, cost %.6f\n",
				res.Stroke, res.Lo, res.Hi, res.OldExit, res.NewExit, res.Cost)
		},
	}
}

func postprocessCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "postprocess",
		Help: "split the prediction at long jumps and drop stray points, usage: postprocess [--max-dist d] [--keep-strays]",
		Func: func(c *ishell.Context) {
			flagSet := flag.NewFlagSet("postprocess", flag.ContinueOnError)
			maxDist := flagSet.Float64("max-dist", .1, "jump length that starts a new stroke")
			keep := flagSet.Bool("keep-strays", false, "only add stroke starts")
			if err := flagSet.Parse(c.Args); err != nil {
				if err != flag.ErrHelp {
					c.Err(err)
				}
				return
			}
			removed, err := ctx.Postprocess(*maxDist, !*keep)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("prediction of %d points, %d strays removed\n", ctx.Prediction().Len(), removed)
		},
	}
}
