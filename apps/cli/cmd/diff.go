package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/pagespec/packages/history"
	"github.com/abdul-hamid-achik/pagespec/packages/output"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	diffOutputFlag    string
	diffThresholdFlag string
)

var diffCmd = &cobra.Command{
	Use:   "diff <before> <after>",
	Short: "Compare two runs",
	Long: `Compare two runs and show which scenarios started or stopped passing
and which pages got slower.

Each run is either a JSON report written with --output json, or the ID of
a run in the history database ("last" and "previous" name the two most
recent runs).

Examples:
  pagespec diff before.json after.json
  pagespec diff previous last
  pagespec diff before.json after.json --threshold 20%`,
	Args: cobra.ExactArgs(2),
	RunE: diffCommand,
}

func init() {
	diffCmd.Flags().StringVarP(&diffOutputFlag, "output", "o", "console", "Output format: console, json")
	diffCmd.Flags().StringVar(&diffThresholdFlag, "threshold", "", "Fail if any scenario is slower by this percentage (e.g., 10%)")
	diffCmd.Flags().StringVar(&historyDBFlag, "db", getEnvString("PAGESPEC_HISTORY", ""), "History database path (env: PAGESPEC_HISTORY)")
	rootCmd.AddCommand(diffCmd)
}

// runScenario is the part of a scenario result compared by diff.
type runScenario struct {
	File     string
	Name     string
	Passed   bool
	Skipped  bool
	Duration float64 // ms
}

// ScenarioComparison compares one scenario across two runs.
type ScenarioComparison struct {
	Name           string  `json:"name"`
	File           string  `json:"file"`
	Change         string  `json:"change"` // fixed, broken, slower, faster, unchanged, new, removed
	Duration1      float64 `json:"durationBefore"`
	Duration2      float64 `json:"durationAfter"`
	DurationChange float64 `json:"durationChange"` // percent
}

// DiffResult holds the comparison of two runs.
type DiffResult struct {
	Before      string               `json:"before"`
	After       string               `json:"after"`
	Comparisons []ScenarioComparison `json:"comparisons"`
	Fixed       int                  `json:"fixed"`
	Broken      int                  `json:"broken"`
	Slower      int                  `json:"slower"`
	New         int                  `json:"new"`
	Removed     int                  `json:"removed"`
	// ThresholdPassed is false when a scenario got slower than the threshold.
	ThresholdPassed bool `json:"thresholdPassed"`
}

// slowdownPercent is the change below which durations count as unchanged.
const slowdownPercent = 10

func diffCommand(cmd *cobra.Command, args []string) error {
	var threshold float64
	if diffThresholdFlag != "" {
		var err error
		threshold, err = parseThreshold(diffThresholdFlag)
		if err != nil {
			return exitErrorf(ExitUsageError, "%v", err)
		}
	}

	ids := args
	var store *history.Store
	if !isReport(args[0]) || !isReport(args[1]) {
		path, err := historyPath()
		if err != nil {
			return exitErrorf(ExitConfigError, "%v", err)
		}
		store, err = history.Open(path)
		if err != nil {
			return exitErrorf(ExitConfigError, "%v", err)
		}
		defer store.Close()
		ids, err = resolveRunAliases(cmd.Context(), store, args)
		if err != nil {
			return exitErrorf(ExitUsageError, "%v", err)
		}
	}

	before, err := loadRun(cmd.Context(), store, ids[0])
	if err != nil {
		return exitErrorf(ExitUsageError, "failed to load %s: %v", args[0], err)
	}
	after, err := loadRun(cmd.Context(), store, ids[1])
	if err != nil {
		return exitErrorf(ExitUsageError, "failed to load %s: %v", args[1], err)
	}

	diff := compareRuns(ids[0], ids[1], before, after, threshold)

	switch strings.ToLower(diffOutputFlag) {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(diff); err != nil {
			return err
		}
	case "console", "":
		writeDiffConsole(cmd.OutOrStdout(), diff)
	default:
		return exitErrorf(ExitUsageError, "unknown output format %q (expected console or json)", diffOutputFlag)
	}

	if diff.Broken > 0 || !diff.ThresholdPassed {
		return &ExitError{Code: ExitTestFailure}
	}
	return nil
}

func isReport(arg string) bool {
	if !strings.HasSuffix(arg, ".json") {
		return false
	}
	_, err := os.Stat(arg)
	return err == nil
}

// resolveRunAliases replaces "last" and "previous" with run IDs.
func resolveRunAliases(ctx context.Context, store *history.Store, args []string) ([]string, error) {
	ids := append([]string(nil), args...)
	var recent []*history.Run
	for i, arg := range ids {
		var idx int
		switch arg {
		case "last":
			idx = 0
		case "previous":
			idx = 1
		default:
			continue
		}
		if recent == nil {
			var err error
			if recent, err = store.Recent(ctx, 2); err != nil {
				return nil, err
			}
		}
		if idx >= len(recent) {
			return nil, fmt.Errorf("history has no %s run", arg)
		}
		ids[i] = recent[idx].ID
	}
	return ids, nil
}

func loadRun(ctx context.Context, store *history.Store, arg string) ([]runScenario, error) {
	if isReport(arg) {
		return loadReport(arg)
	}
	records, err := store.Scenarios(ctx, arg)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("run not found in history")
	}
	scenarios := make([]runScenario, len(records))
	for i, r := range records {
		scenarios[i] = runScenario{
			File:     r.File,
			Name:     r.Name,
			Passed:   r.Passed,
			Skipped:  r.Skipped,
			Duration: float64(r.Duration.Milliseconds()),
		}
	}
	return scenarios, nil
}

func loadReport(path string) ([]runScenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var report output.JSONOutput
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}

	scenarios := make([]runScenario, len(report.Scenarios))
	for i, s := range report.Scenarios {
		scenarios[i] = runScenario{
			File:     s.File,
			Name:     s.Name,
			Passed:   s.Passed,
			Skipped:  s.Skipped,
			Duration: s.Duration,
		}
	}
	return scenarios, nil
}

func parseThreshold(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid threshold %q: %w", s, err)
	}
	return v, nil
}

func compareRuns(name1, name2 string, before, after []runScenario, threshold float64) *DiffResult {
	diff := &DiffResult{Before: name1, After: name2, ThresholdPassed: true}

	key := func(s runScenario) string { return s.File + "::" + s.Name }
	runs1 := make(map[string]runScenario, len(before))
	runs2 := make(map[string]runScenario, len(after))
	var keys []string
	for _, s := range before {
		runs1[key(s)] = s
		keys = append(keys, key(s))
	}
	for _, s := range after {
		if _, ok := runs1[key(s)]; !ok {
			keys = append(keys, key(s))
		}
		runs2[key(s)] = s
	}
	sort.Strings(keys)

	for _, k := range keys {
		s1, in1 := runs1[k]
		s2, in2 := runs2[k]

		comp := ScenarioComparison{Duration1: s1.Duration, Duration2: s2.Duration}
		if in1 {
			comp.Name, comp.File = s1.Name, s1.File
		} else {
			comp.Name, comp.File = s2.Name, s2.File
		}

		switch {
		case !in2:
			comp.Change = "removed"
			diff.Removed++
		case !in1:
			comp.Change = "new"
			diff.New++
		case s1.Skipped || s2.Skipped:
			comp.Change = "unchanged"
		case s1.Passed && !s2.Passed:
			comp.Change = "broken"
			diff.Broken++
		case !s1.Passed && s2.Passed:
			comp.Change = "fixed"
			diff.Fixed++
		default:
			if s1.Duration > 0 {
				comp.DurationChange = (s2.Duration - s1.Duration) / s1.Duration * 100
			}
			switch {
			case comp.DurationChange > slowdownPercent:
				comp.Change = "slower"
				diff.Slower++
			case comp.DurationChange < -slowdownPercent:
				comp.Change = "faster"
			default:
				comp.Change = "unchanged"
			}
			if threshold > 0 && comp.DurationChange > threshold {
				diff.ThresholdPassed = false
			}
		}

		diff.Comparisons = append(diff.Comparisons, comp)
	}

	return diff
}

func writeDiffConsole(w io.Writer, diff *DiffResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(w, "\n%s\n", bold("Run Comparison"))
	fmt.Fprintf(w, "  %s: %s\n", cyan("Before"), diff.Before)
	fmt.Fprintf(w, "  %s:  %s\n\n", cyan("After"), diff.After)

	for _, c := range diff.Comparisons {
		var label string
		switch c.Change {
		case "fixed", "faster":
			label = green(c.Change)
		case "broken":
			label = red(c.Change)
		case "slower":
			label = yellow(fmt.Sprintf("slower (%+.0f%%)", c.DurationChange))
		case "unchanged":
			continue
		default:
			label = cyan(c.Change)
		}
		fmt.Fprintf(w, "  %-10s %s > %s\n", label, c.File, c.Name)
	}

	fmt.Fprintf(w, "\n%s\n", bold("Summary"))
	fmt.Fprintf(w, "  Fixed:   %d\n", diff.Fixed)
	fmt.Fprintf(w, "  Broken:  %d\n", diff.Broken)
	fmt.Fprintf(w, "  Slower:  %d\n", diff.Slower)
	fmt.Fprintf(w, "  New:     %d\n", diff.New)
	fmt.Fprintf(w, "  Removed: %d\n", diff.Removed)
	if !diff.ThresholdPassed {
		fmt.Fprintf(w, "\n%s\n", red("Threshold exceeded"))
	}
}
