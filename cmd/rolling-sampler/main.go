package main

import (
	"os"

	"github.com/petems/rolling-sampler/internal/cmd"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

func main() {
	if err := cmd.NewRootCmd(Version, Commit).Execute(); err != nil {
		os.Exit(1)
	}
}
