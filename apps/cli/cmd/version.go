package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pagespec version %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "Built: %s\n", buildTime)
	},
}

var exitCodesCmd = &cobra.Command{
	Use:   "exit-codes",
	Short: "List the exit codes returned by run",
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%3d  all scenarios passed\n", ExitSuccess)
		fmt.Fprintf(w, "%3d  at least one assertion failed\n", ExitTestFailure)
		fmt.Fprintf(w, "%3d  a suite file could not be parsed\n", ExitParseError)
		fmt.Fprintf(w, "%3d  the configuration is invalid\n", ExitConfigError)
		fmt.Fprintf(w, "%3d  a page or service could not be reached\n", ExitNetworkError)
		fmt.Fprintf(w, "%3d  invalid command line usage\n", ExitUsageError)
	},
}
