package main

import (
	"fmt"
	"os"

	"maestro/cmd"
)

// Set by the release build through -ldflags.
var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	cmd.SetVersionInfo(version, commit, date)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
