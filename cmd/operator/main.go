package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "pumpkit-operator"
	app.Usage = "PumpKit AVS operator node"

	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "Register if needed, then answer token tasks until interrupted",
			Action: runOperator,
		},
		{
			Name:   "register",
			Usage:  "Register the operator with the core contracts and the AVS, then exit",
			Action: registerOperator,
		},
		{
			Name:   "status",
			Usage:  "Print the operator's on-chain registration state",
			Action: printStatus,
		},
	}
	app.Action = runOperator

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
