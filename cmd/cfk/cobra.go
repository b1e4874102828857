package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func init() {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

// warning prints a warning message to standard error.
func warning(message string) {
	fmt.Fprintln(color.Error, color.YellowString("Warning:"), message)
}

// printError prints an error message to standard error.
func printError(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
}

// fatal prints an error message to standard error and terminates the
// process with an error exit code.
func fatal(err error) {
	printError(err)
	os.Exit(1)
}

// mainify wraps a non-standard Cobra entry point (one returning an
// error) and generates a standard Cobra entry point, so that entry
// points can rely on defer-based cleanup instead of calling
// os.Exit directly.
func mainify(entry func(*cobra.Command, []string) error) func(*cobra.Command, []string) {
	return func(command *cobra.Command, arguments []string) {
		if err := entry(command, arguments); err != nil {
			fatal(err)
		}
	}
}
