package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/core/config"
	"github.com/abdul-hamid-achik/pagespec/packages/history"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	historyDBFlag    string
	historyLimitFlag int
	historyRunFlag   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded runs",
	Long: `Show the runs recorded in the history database.

The database is taken from --db, or from the history setting of
pagespec.yaml, or defaults to .pagespec/history.db.

Examples:
  pagespec history
  pagespec history --limit 5
  pagespec history --run 3f1c...`,
	Args: cobra.NoArgs,
	RunE: historyCommand,
}

func init() {
	historyCmd.Flags().StringVar(&historyDBFlag, "db", getEnvString("PAGESPEC_HISTORY", ""), "History database path (env: PAGESPEC_HISTORY)")
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "l", 20, "Number of runs to show")
	historyCmd.Flags().StringVar(&historyRunFlag, "run", "", "Show the scenarios of one run")
}

func historyPath() (string, error) {
	if historyDBFlag != "" {
		return historyDBFlag, nil
	}
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return "", err
	}
	if cfg.History != "" {
		return cfg.ResolvePath(cfg.History), nil
	}
	return history.DefaultPath, nil
}

func historyCommand(cmd *cobra.Command, args []string) error {
	path, err := historyPath()
	if err != nil {
		return exitErrorf(ExitConfigError, "%v", err)
	}
	if _, err := os.Stat(path); err != nil {
		return exitErrorf(ExitUsageError, "no run history at %s", path)
	}

	store, err := history.Open(path)
	if err != nil {
		return exitErrorf(ExitConfigError, "%v", err)
	}
	defer store.Close()

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)

	if historyRunFlag != "" {
		scenarios, err := store.Scenarios(cmd.Context(), historyRunFlag)
		if err != nil {
			return err
		}
		if len(scenarios) == 0 {
			return exitErrorf(ExitUsageError, "run %s not found", historyRunFlag)
		}
		t.AppendHeader(table.Row{"File", "Scenario", "Result", "Duration", "Message"})
		for _, sc := range scenarios {
			t.AppendRow(table.Row{sc.File, sc.Name, scenarioResultLabel(sc), sc.Duration.Round(time.Millisecond), sc.Message})
		}
		t.Render()
		return nil
	}

	runs, err := store.Recent(cmd.Context(), historyLimitFlag)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
		return nil
	}

	t.AppendHeader(table.Row{"Run", "Started", "Duration", "Files", "Passed", "Failed", "Skipped", "Exit"})
	for _, run := range runs {
		t.AppendRow(table.Row{
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Duration.Round(time.Millisecond),
			run.Files,
			run.Passed,
			run.Failed,
			run.Skipped,
			run.ExitCode,
		})
	}
	t.Render()
	return nil
}

func scenarioResultLabel(sc history.ScenarioRecord) string {
	switch {
	case sc.Skipped:
		return "skipped"
	case sc.Passed:
		return "passed"
	}
	return "failed"
}
