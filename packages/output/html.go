package output

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/core/runner"
)

// HTMLOutput represents the complete HTML output structure
type HTMLOutput struct {
	Version        string
	Summary        HTMLSummary
	Scenarios      []HTMLScenario
	Duration       float64
	Time           string
	PassedPercent  float64
	FailedPercent  float64
	SkippedPercent float64
}

// HTMLSummary represents the run summary for HTML output
type HTMLSummary struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// HTMLScenario represents a single scenario result for HTML output
type HTMLScenario struct {
	Name        string
	Suite       string
	File        string
	Passed      bool
	Skipped     bool
	SkipReason  string
	Duration    float64
	URL         string
	Error       string
	StatusClass string
	Assertions  []HTMLAssertion
}

// HTMLAssertion represents an assertion result for HTML output
type HTMLAssertion struct {
	Description string
	Kind        string
	ExpectedStr string
	ActualStr   string
	Passed      bool
	Message     string
	Line        int
}

// HTMLFormatter formats run results as a single HTML page
type HTMLFormatter struct {
	writer  io.Writer
	results []HTMLScenario
	version string
}

// HTMLOption is a functional option for HTMLFormatter
type HTMLOption func(*HTMLFormatter)

// NewHTMLFormatter creates a new HTML formatter
func NewHTMLFormatter(opts ...HTMLOption) *HTMLFormatter {
	f := &HTMLFormatter{
		writer:  os.Stdout,
		results: make([]HTMLScenario, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// HTMLWithWriter sets the output writer
func HTMLWithWriter(w io.Writer) HTMLOption {
	return func(f *HTMLFormatter) {
		f.writer = w
	}
}

// FormatResult accumulates the scenarios of one suite
func (f *HTMLFormatter) FormatResult(result *runner.RunResult) {
	for _, r := range result.Results {
		sc := HTMLScenario{
			Name:     r.Name,
			Suite:    result.Suite,
			File:     result.File,
			Passed:   r.Passed,
			Skipped:  r.Skipped,
			Duration: float64(r.Duration.Milliseconds()),
			URL:      r.URL,
		}

		// Set status class for CSS
		if r.Skipped {
			sc.StatusClass = "skipped"
		} else if r.Passed {
			sc.StatusClass = "passed"
		} else {
			sc.StatusClass = "failed"
		}

		if r.SkipReason != "" && r.SkipReason != "filtered out" {
			sc.SkipReason = r.SkipReason
		}

		if r.Error != nil {
			sc.Error = r.Error.Error()
		}

		if len(r.Assertions) > 0 {
			sc.Assertions = make([]HTMLAssertion, len(r.Assertions))
			for i, a := range r.Assertions {
				sc.Assertions[i] = HTMLAssertion{
					Description: a.Description,
					Kind:        a.Kind,
					ExpectedStr: formatValue(a.Expected, 200),
					ActualStr:   formatValue(a.Actual, 200),
					Passed:      a.Passed,
					Message:     a.Message,
					Line:        a.Line,
				}
			}
		}

		f.results = append(f.results, sc)
	}
}

// FormatError handles errors (no-op for HTML, errors are in scenario results)
func (f *HTMLFormatter) FormatError(err error) {
	// Errors are included in individual scenario results
}

// FormatHeader captures the version for the HTML report
func (f *HTMLFormatter) FormatHeader(version string) {
	f.version = version
}

// Flush writes the accumulated HTML output
func (f *HTMLFormatter) Flush(totalDuration time.Duration) error {
	var passed, failed, skipped int
	for _, s := range f.results {
		if s.Skipped {
			skipped++
		} else if s.Passed {
			passed++
		} else {
			failed++
		}
	}

	total := len(f.results)
	var passedPct, failedPct, skippedPct float64
	if total > 0 {
		passedPct = float64(passed) / float64(total) * 100
		failedPct = float64(failed) / float64(total) * 100
		skippedPct = float64(skipped) / float64(total) * 100
	}

	output := HTMLOutput{
		Version: f.version,
		Summary: HTMLSummary{
			Total:   total,
			Passed:  passed,
			Failed:  failed,
			Skipped: skipped,
		},
		Scenarios:      f.results,
		Duration:       float64(totalDuration.Milliseconds()),
		Time:           time.Now().Format("2006-01-02 15:04:05"),
		PassedPercent:  passedPct,
		FailedPercent:  failedPct,
		SkippedPercent: skippedPct,
	}

	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse HTML template: %w", err)
	}

	return tmpl.Execute(f.writer, output)
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>pagespec Report</title>
    <style>
        :root {
            --bg-primary: #1a1a2e;
            --bg-secondary: #16213e;
            --text-primary: #eee;
            --text-secondary: #aaa;
            --success: #00d26a;
            --error: #ff4757;
            --warning: #ffa502;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            margin: 0;
            padding: 2rem;
        }
        .container { max-width: 1000px; margin: 0 auto; }
        h1 { margin-bottom: 0.5rem; }
        .meta { color: var(--text-secondary); margin-bottom: 2rem; }
        .summary { display: grid; grid-template-columns: repeat(auto-fit, minmax(120px, 1fr)); gap: 1rem; margin-bottom: 1rem; }
        .card { background: var(--bg-secondary); padding: 1rem; border-radius: 8px; text-align: center; }
        .card .value { font-size: 1.5rem; font-weight: bold; }
        .card.passed .value { color: var(--success); }
        .card.failed .value { color: var(--error); }
        .card.skipped .value { color: var(--warning); }
        .bar { display: flex; height: 8px; border-radius: 4px; overflow: hidden; margin-bottom: 2rem; background: var(--bg-secondary); }
        .bar .passed { background: var(--success); }
        .bar .failed { background: var(--error); }
        .bar .skipped { background: var(--warning); }
        .scenario { background: var(--bg-secondary); border-radius: 8px; padding: 1rem; margin-bottom: 0.75rem; border-left: 4px solid var(--text-secondary); }
        .scenario.passed { border-left-color: var(--success); }
        .scenario.failed { border-left-color: var(--error); }
        .scenario.skipped { border-left-color: var(--warning); }
        .scenario .file, .scenario .url { color: var(--text-secondary); font-size: 0.85rem; }
        .error { color: var(--error); margin-top: 0.5rem; }
        ul.assertions { list-style: none; padding-left: 0; margin: 0.5rem 0 0; }
        ul.assertions li { padding: 0.25rem 0; font-family: ui-monospace, monospace; font-size: 0.85rem; }
        ul.assertions li.passed::before { content: "✓ "; color: var(--success); }
        ul.assertions li.failed::before { content: "✗ "; color: var(--error); }
        .detail { color: var(--text-secondary); padding-left: 1.2rem; }
    </style>
</head>
<body>
    <div class="container">
        <h1>pagespec Report</h1>
        <div class="meta">{{if .Version}}pagespec {{.Version}} · {{end}}{{.Time}} · {{printf "%.0f" .Duration}}ms</div>
        <div class="summary">
            <div class="card"><div class="value">{{.Summary.Total}}</div><div>Total</div></div>
            <div class="card passed"><div class="value">{{.Summary.Passed}}</div><div>Passed</div></div>
            <div class="card failed"><div class="value">{{.Summary.Failed}}</div><div>Failed</div></div>
            <div class="card skipped"><div class="value">{{.Summary.Skipped}}</div><div>Skipped</div></div>
        </div>
        <div class="bar">
            <div class="passed" style="width: {{printf "%.1f" .PassedPercent}}%"></div>
            <div class="failed" style="width: {{printf "%.1f" .FailedPercent}}%"></div>
            <div class="skipped" style="width: {{printf "%.1f" .SkippedPercent}}%"></div>
        </div>
        {{range .Scenarios}}
        <div class="scenario {{.StatusClass}}">
            <div><strong>{{.Name}}</strong> <span class="file">{{if .Suite}}{{.Suite}} · {{end}}{{.File}} · {{printf "%.0f" .Duration}}ms</span></div>
            {{if .URL}}<div class="url">{{.URL}}</div>{{end}}
            {{if .Skipped}}<div class="detail">skipped{{if .SkipReason}}: {{.SkipReason}}{{end}}</div>{{end}}
            {{if .Error}}<div class="error">{{.Error}}</div>{{end}}
            {{if .Assertions}}
            <ul class="assertions">
                {{range .Assertions}}
                <li class="{{if .Passed}}passed{{else}}failed{{end}}">{{.Description}}{{if .Line}} <span class="detail">line {{.Line}}</span>{{end}}
                    {{if not .Passed}}<div class="detail">{{.Message}}</div>{{end}}
                </li>
                {{end}}
            </ul>
            {{end}}
        </div>
        {{end}}
    </div>
</body>
</html>`
