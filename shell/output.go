package shell

import (
	"github.com/abiosoft/ishell"
)

func statsCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "stats",
		Help: "print loss statistics of the session as json",
		Func: func(c *ishell.Context) {
			output, err := ctx.StatsJSON()
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(string(output))
		},
	}
}
