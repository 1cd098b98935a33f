package shell

import (
	"errors"
	"path/filepath"

	"github.com/abiosoft/ishell"
	flag "github.com/ogier/pflag"
)

func loadCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "load",
		Help: "load strokes, usage: load [--range start:end] <file.xml|file.rm|dataset.json>",
		Func: func(c *ishell.Context) {
			flagSet := flag.NewFlagSet("load", flag.ContinueOnError)
			var rangeArg string
			flagSet.StringVar(&rangeArg, "range", "", "strokes to keep, as start:end")
			if err := flagSet.Parse(c.Args); err != nil {
				if err != flag.ErrHelp {
					c.Err(err)
				}
				return
			}
			args := flagSet.Args()
			if len(args) == 0 {
				c.Err(errors.New("missing file"))
				return
			}
			rg, err := ParseRange(rangeArg)
			if err != nil {
				c.Err(err)
				return
			}

			for _, path := range args {
				n, err := ctx.Load(path, rg)
				if err != nil {
					c.Err(err)
					return
				}
				c.Printf("loaded %d instance(s) from %s\n", n, path)
			}
			c.SetPrompt(ctx.prompt())
		},
	}
}

func lsCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "ls",
		Help: "list loaded instances",
		Func: func(c *ishell.Context) {
			for i, in := range ctx.Instances() {
				mark := " "
				if i == ctx.current {
					mark = "*"
				}
				c.Printf("%s%d\t%s\t%s\t%d points\t%d strokes\n", mark, i, shortID(in.ID), filepath.Base(in.Source), len(in.GT), len(starts(in.Sequence())))
			}
		},
	}
}

func cdCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "cd",
		Help: "select an instance by index or id",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				return
			}
			if err := ctx.Select(c.Args[0]); err != nil {
				c.Err(err)
				return
			}
			c.SetPrompt(ctx.prompt())
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
