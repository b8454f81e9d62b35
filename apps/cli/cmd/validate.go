package cmd

import (
	"fmt"

	"github.com/abdul-hamid-achik/pagespec/packages/core/parser"
	"github.com/abdul-hamid-achik/pagespec/packages/dom"
	"github.com/spf13/cobra"
)

var strictFlag bool

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>...",
	Short: "Validate suite files without loading pages",
	Long: `Validate suite files for syntax errors without executing them.

Selectors are compiled as well. An invalid selector only fails its own
expectation at run time, so it is reported as a warning unless --strict
is set.

Examples:
  pagespec validate home.page.yaml
  pagespec validate ./pages/ --strict`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func init() {
	validateCmd.Flags().BoolVar(&strictFlag, "strict", false, "Treat invalid selectors as errors")
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return exitErrorf(ExitUsageError, "%v", err)
	}

	if len(files) == 0 {
		return exitErrorf(ExitUsageError, "no suite files (*.page.yaml) found")
	}

	hasErrors := false
	for _, file := range files {
		suite, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
			continue
		}

		problems := selectorProblems(suite)
		for _, p := range problems {
			label := "Warning"
			if strictFlag {
				label = "Error"
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", label, p)
		}
		if strictFlag && len(problems) > 0 {
			hasErrors = true
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d scenarios)\n", file, len(suite.Scenarios))
	}

	if hasErrors {
		return exitErrorf(ExitParseError, "validation failed")
	}

	return nil
}

// selectorProblems compiles every selector in suite and describes the ones
// that do not compile.
func selectorProblems(suite *parser.Suite) []string {
	var problems []string
	check := func(selector string, line int) {
		if selector == "" {
			return
		}
		if _, err := dom.Compile(selector); err != nil {
			problems = append(problems, fmt.Sprintf("%s:%d: %v", suite.Path, line, err))
		}
	}

	var walk func(steps []*parser.Step)
	walk = func(steps []*parser.Step) {
		for _, step := range steps {
			switch step.Type {
			case parser.StepExpect:
				check(step.Expectation.Selector, step.Line)
			case parser.StepWithin:
				check(step.Selector, step.Line)
				walk(step.Steps)
			case parser.StepClick:
				check(step.Selector, step.Line)
			}
		}
	}

	for _, sc := range suite.Scenarios {
		walk(sc.Steps)
	}
	walk(suite.After)
	return problems
}
