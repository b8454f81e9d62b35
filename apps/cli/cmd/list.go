package cmd

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/pagespec/packages/core/parser"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>...",
	Short: "List the scenarios in suite files",
	Long: `List every scenario defined in .page.yaml suite files.

Examples:
  pagespec list home.page.yaml
  pagespec list ./pages/`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return exitErrorf(ExitUsageError, "%v", err)
	}

	if len(files) == 0 {
		return exitErrorf(ExitUsageError, "no suite files (*.page.yaml) found")
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"File", "Suite", "Scenario", "Visit", "Steps", "Tags", "Status"})

	parseErrors := 0
	for _, file := range files {
		suite, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error parsing %s: %v\n", file, err)
			parseErrors++
			continue
		}

		for _, sc := range suite.Scenarios {
			t.AppendRow(table.Row{
				file,
				suite.Name,
				sc.Name,
				sc.Visit,
				countSteps(sc.Steps),
				strings.Join(sc.Tags, ","),
				scenarioStatus(sc),
			})
		}
		if len(suite.After) > 0 {
			t.AppendRow(table.Row{file, suite.Name, "(after all)", suite.Visit, countSteps(suite.After), "", ""})
		}
	}

	t.Render()

	if parseErrors > 0 {
		return &ExitError{Code: ExitParseError}
	}
	return nil
}

func countSteps(steps []*parser.Step) int {
	n := 0
	for _, s := range steps {
		n++
		n += countSteps(s.Steps)
	}
	return n
}

func scenarioStatus(sc *parser.Scenario) string {
	switch {
	case sc.Skip != "":
		return "skip: " + sc.Skip
	case sc.Only:
		return "only"
	}
	return ""
}
