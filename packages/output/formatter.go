package output

import (
	"fmt"
	"io"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/core/runner"
)

// Formatter renders run results as they arrive.
type Formatter interface {
	FormatResult(result *runner.RunResult)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable is implemented by formatters that write once every file has run.
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// Formats lists the names accepted by New.
var Formats = []string{"console", "json", "junit", "tap", "html"}

// New returns the formatter for name writing to w.
func New(name string, w io.Writer, verbose, noColor bool) (Formatter, error) {
	switch name {
	case "", "console":
		return NewConsoleFormatter(WithWriter(w), WithVerbose(verbose), WithNoColor(noColor)), nil
	case "json":
		return NewJSONFormatter(JSONWithWriter(w)), nil
	case "junit":
		return NewJUnitFormatter(JUnitWithWriter(w)), nil
	case "tap":
		return NewTAPFormatter(TAPWithWriter(w)), nil
	case "html":
		return NewHTMLFormatter(HTMLWithWriter(w)), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (expected console, json, junit, tap or html)", name)
	}
}

// formatValue formats a value for display, truncating long values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

// failureReason is the one-line reason a scenario failed.
func failureReason(r *runner.ScenarioResult) string {
	if r.Error != nil {
		return r.Error.Error()
	}
	for _, a := range r.Assertions {
		if !a.Passed {
			return fmt.Sprintf("%s: %s", a.Description, a.Message)
		}
	}
	return ""
}
