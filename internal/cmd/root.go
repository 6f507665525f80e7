// Package cmd holds the root cobra command for the ducttape
// demonstration harness, grounded on cli/internal/commands/root.go's
// minimal rootCmd-plus-Execute shape (the teacher's richer
// cli/internal/cmd/root.go wires a daemon, auth, pprof flags and more —
// out of scope for a harness whose only job is exercising the core
// packages, not being a production CLI).
package cmd

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ducttape <command> [<args>]",
	Short: "Workflow compilation and realization engine demonstration harness",
	Long: `ducttape is a demonstration harness around the workflow compilation and
realization engine: it is not the real CLI surface (the workflow DSL's
surface parser and execution scheduler are out of scope) but wires the
builder, unpacker, input checker, and version store together over a
fixture AST so the core can be exercised end to end.`,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

// Execute runs the root command with args (excluding the binary name)
// and returns a process exit code.
func Execute(args []string) int {
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func newLogger(name string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:  name,
		Level: hclog.Info,
	})
}
