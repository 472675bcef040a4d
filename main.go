package main

import (
	"fmt"
	"os"

	landbot "github.com/landbot/landbot/cmd/landbot"
)

// Build-time variables (set via -ldflags)
var (
	version    = "dev"
	commitHash = "unknown"
)

func main() {
	landbot.SetVersionInfo(version, commitHash)

	if err := landbot.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
