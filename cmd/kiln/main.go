package main

import (
	"os"

	"github.com/kilnbuild/kiln/cmd/kiln/commands"
	"github.com/kilnbuild/kiln/cmd/kiln/internal/format"
)

// main runs the kiln command. Exit codes follow the error class:
//   - 0: success
//   - 1: unclassified error
//   - 2: configuration error
//   - 3: registration conflict
//   - 4: creation error
//   - 5: graph integrity error
func main() {
	cmd := commands.NewCommand()
	if err := cmd.Execute(); err != nil {
		_ = format.New(os.Stdout, os.Stderr, format.ModeTable, false, true).PrintError(err)
		os.Exit(commands.ExitCode(err))
	}
}
