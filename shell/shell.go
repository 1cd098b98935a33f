// Package shell is an interactive session for loading handwriting,
// aligning predictions against it and repairing the alignment.
package shell

import (
	"github.com/abiosoft/ishell"

	"github.com/juruen/strokerecovery/config"
)

func commands(ctx *ShellCtxt) []*ishell.Cmd {
	return []*ishell.Cmd{
		loadCmd(ctx),
		lsCmd(ctx),
		cdCmd(ctx),
		sampleCmd(ctx),
		alignCmd(ctx),
		costsCmd(ctx),
		repairCmd(ctx),
		postprocessCmd(ctx),
		lossCmd(ctx),
		renderCmd(ctx),
		exportCmd(ctx),
		statsCmd(ctx),
	}
}

// RunShell runs args as a single command, or an interactive session when
// there are none.
func RunShell(cfg *config.Config, args []string) error {
	shell := ishell.New()
	ctx := NewShellCtxt(cfg)

	shell.SetPrompt(ctx.prompt())
	for _, cmd := range commands(ctx) {
		shell.AddCmd(cmd)
	}

	if len(args) > 0 {
		return shell.Process(args...)
	}
	shell.Println("stroke recovery shell, type help for commands")
	shell.Run()
	return nil
}
