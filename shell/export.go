package shell

import (
	"errors"
	"math"
	"sort"

	"github.com/abiosoft/ishell"
	flag "github.com/ogier/pflag"

	"github.com/juruen/strokerecovery/render"
)

func lossCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "loss",
		Help: "score the prediction with the configured losses, usage: loss [--relative]",
		Func: func(c *ishell.Context) {
			flagSet := flag.NewFlagSet("loss", flag.ContinueOnError)
			relative := flagSet.Bool("relative", false, "treat x and y as deltas rebuilt by the configured convolution")
			if err := flagSet.Parse(c.Args); err != nil {
				if err != flag.ErrHelp {
					c.Err(err)
				}
				return
			}
			res, err := ctx.Loss(*relative)
			if err != nil {
				c.Err(err)
				return
			}
			names := make([]string, 0, len(res.Losses))
			for n := range res.Losses {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				c.Printf("%s\t%.6f\n", n, res.Losses[n])
			}
			norm := 0.0
			for _, row := range res.Grads[0] {
				for _, g := range row {
					norm += g * g
				}
			}
			c.Printf("combined\t%.6f\ngradient norm\t%.6f\n", res.Combined, math.Sqrt(norm))
		},
	}
}

func renderCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "render",
		Help: "draw the instance, prediction and alignment to a pdf, usage: render [--no-links] <out.pdf>",
		Func: func(c *ishell.Context) {
			opts := render.DefaultOptions()
			flagSet := flag.NewFlagSet("render", flag.ContinueOnError)
			noLinks := flagSet.Bool("no-links", false, "do not draw alignment links")
			flagSet.Float64Var(&opts.LineWidth, "width", opts.LineWidth, "stroke width")
			if err := flagSet.Parse(c.Args); err != nil {
				if err != flag.ErrHelp {
					c.Err(err)
				}
				return
			}
			if flagSet.NArg() == 0 {
				c.Err(errors.New("missing output file"))
				return
			}
			opts.Links = !*noLinks
			if err := ctx.Render(flagSet.Arg(0), opts); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		},
	}
}

func exportCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "export",
		Help: "write strokes to a reMarkable page or the dataset to json, usage: export [--pred] <out.rm|out.json>",
		Func: func(c *ishell.Context) {
			flagSet := flag.NewFlagSet("export", flag.ContinueOnError)
			pred := flagSet.Bool("pred", false, "export the prediction instead of the ground truth")
			if err := flagSet.Parse(c.Args); err != nil {
				if err != flag.ErrHelp {
					c.Err(err)
				}
				return
			}
			if flagSet.NArg() == 0 {
				c.Err(errors.New("missing output file"))
				return
			}
			if err := ctx.Export(flagSet.Arg(0), *pred); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		},
	}
}
