package main

import (
	"os"

	rfctlcmd "github.com/renderfleet/renderfleet/pkg/rfctl/cmd"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := rfctlcmd.NewRootCommand(rfctlcmd.DefaultConfig())
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}
