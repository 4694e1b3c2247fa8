package main

import (
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "deepsearchd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Parse subcommand from os.Args
	subcmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "serve":
		return cmdServe(args)
	case "status":
		return cmdStatus()
	case "stats":
		return cmdStats()
	default:
		return fmt.Errorf("unknown command: %s\nUsage: deepsearchd [serve|status|stats]", subcmd)
	}
}
