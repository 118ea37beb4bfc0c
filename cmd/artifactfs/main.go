package main

import (
	"os"

	"github.com/mlvault/artifactfs/cmd/artifactfs/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintErr("Error: %v", err)
		os.Exit(1)
	}
}
