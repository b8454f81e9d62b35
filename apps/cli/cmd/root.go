package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "pagespec",
	Short: "Declarative page assertions. No browser scripts.",
	Long: `pagespec loads web pages and checks them against YAML suites.

Each suite names a page and a list of scenarios. Every scenario visits
the page in a fresh session and asserts that elements exist or not, carry
attributes, or contain text.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	os.Exit(exitCode(rootCmd.Execute()))
}

// exitCode reports err on stderr and maps it to a process exit code.
// Errors that are not an *ExitError come from cobra itself (unknown flags,
// wrong argument counts) and are usage errors.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Message != "" {
			fmt.Fprintf(os.Stderr, "Error: %s\n", exitErr.Message)
		}
		return exitErr.Code
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return ExitUsageError
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exitCodesCmd)
}
