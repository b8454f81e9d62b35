// Package notify sends run summaries to chat services.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/core/runner"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when scenarios fail
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when every scenario passes
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends notifications on failure and on the first
	// passing run after a failure
	NotifyRecovery NotifyOn = "recovery"
)

// ParseNotifyOn validates a policy name. An empty name means failure.
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch NotifyOn(s) {
	case "":
		return NotifyFailure, nil
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return NotifyOn(s), nil
	default:
		return "", fmt.Errorf("invalid notify policy %q (expected always, failure, success or recovery)", s)
	}
}

// RunSummary represents the summary of a run for notifications
type RunSummary struct {
	TotalFiles       int              `json:"total_files"`
	ParseErrors      int              `json:"parse_errors,omitempty"`
	TotalScenarios   int              `json:"total_scenarios"`
	PassedScenarios  int              `json:"passed_scenarios"`
	FailedScenarios  int              `json:"failed_scenarios"`
	SkippedScenarios int              `json:"skipped_scenarios"`
	Duration         time.Duration    `json:"duration"`
	Environment      string           `json:"environment,omitempty"`
	BaseURL          string           `json:"base_url,omitempty"`
	FailedResults    []FailedScenario `json:"failed_results,omitempty"`
	IsRecovery       bool             `json:"is_recovery,omitempty"`
}

// FailedScenario represents a failed scenario for notifications
type FailedScenario struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Errors []string `json:"errors,omitempty"`
}

// maxErrorsPerScenario keeps chat messages readable.
const maxErrorsPerScenario = 3

// Succeeded reports whether every suite parsed and no scenario failed.
func (s *RunSummary) Succeeded() bool {
	return s.ParseErrors == 0 && s.FailedScenarios == 0
}

// Summarize builds a RunSummary from runner results. parseErrors counts the
// suite files that never reached the runner.
func Summarize(results []*runner.RunResult, parseErrors int, duration time.Duration) *RunSummary {
	s := &RunSummary{
		TotalFiles:  len(results) + parseErrors,
		ParseErrors: parseErrors,
		Duration:    duration,
	}
	for _, rr := range results {
		s.PassedScenarios += rr.Passed
		s.FailedScenarios += rr.Failed
		s.SkippedScenarios += rr.Skipped

		for _, sr := range rr.Results {
			if sr.Passed || sr.Skipped {
				continue
			}
			ft := FailedScenario{Name: sr.Name, File: rr.File}
			if sr.Error != nil {
				ft.Errors = append(ft.Errors, sr.Error.Error())
			}
			for _, a := range sr.Failures() {
				if len(ft.Errors) == maxErrorsPerScenario {
					break
				}
				ft.Errors = append(ft.Errors, fmt.Sprintf("%s: %s", a.Description, a.Message))
			}
			s.FailedResults = append(s.FailedResults, ft)
		}
	}
	s.TotalScenarios = s.PassedScenarios + s.FailedScenarios + s.SkippedScenarios
	return s
}

// Notifier is the interface for notification services
type Notifier interface {
	// Notify sends a notification about run results
	Notify(ctx context.Context, summary *RunSummary) error

	// Name returns the name of the notifier
	Name() string
}

// Manager manages multiple notifiers
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	lastState bool // true if last run was successful
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true, // Assume success initially
	}
}

// SetLastState seeds the outcome of the previous run, e.g. from history.
func (m *Manager) SetLastState(success bool) {
	m.lastState = success
}

// Notify sends notifications based on the configured policy. Errors from
// individual notifiers are joined; one failing service does not stop the
// others.
func (m *Manager) Notify(ctx context.Context, summary *RunSummary) error {
	shouldNotify := false
	currentSuccess := summary.Succeeded()

	switch m.notifyOn {
	case NotifyAlways:
		shouldNotify = true
	case NotifyFailure:
		shouldNotify = !currentSuccess
	case NotifySuccess:
		shouldNotify = currentSuccess
	case NotifyRecovery:
		if !m.lastState && currentSuccess {
			shouldNotify = true
			summary.IsRecovery = true
		}
		if !currentSuccess {
			shouldNotify = true
		}
	}

	m.lastState = currentSuccess

	if !shouldNotify {
		return nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}

	return errors.Join(errs...)
}

// stat is a labelled value shown by every notifier.
type stat struct {
	Label string
	Value string
}

// report is the service-independent content of a notification.
type report struct {
	Title    string
	Failed   bool
	Stats    []stat
	Context  []stat
	Failures []failureLines
}

type failureLines struct {
	Heading string
	Errors  []string
}

func buildReport(summary *RunSummary) report {
	r := report{
		Stats: []stat{
			{"Scenarios", strconv.Itoa(summary.TotalScenarios)},
			{"Passed", strconv.Itoa(summary.PassedScenarios)},
			{"Failed", strconv.Itoa(summary.FailedScenarios)},
			{"Duration", summary.Duration.Round(time.Millisecond).String()},
		},
	}

	switch {
	case summary.ParseErrors > 0:
		r.Title, r.Failed = fmt.Sprintf("%d suite file(s) failed to parse", summary.ParseErrors), true
	case summary.FailedScenarios > 0:
		r.Title, r.Failed = fmt.Sprintf("%d scenario(s) failed", summary.FailedScenarios), true
	case summary.IsRecovery:
		r.Title = "Pages recovered!"
	default:
		r.Title = "All scenarios passed!"
	}

	if summary.ParseErrors > 0 {
		r.Stats = append(r.Stats, stat{"Unparsed files", strconv.Itoa(summary.ParseErrors)})
	}
	if summary.Environment != "" {
		r.Context = append(r.Context, stat{"Environment", summary.Environment})
	}
	if summary.BaseURL != "" {
		r.Context = append(r.Context, stat{"Site", summary.BaseURL})
	}

	for _, ft := range summary.FailedResults {
		heading := "`" + ft.Name + "`"
		if ft.File != "" {
			heading += " (" + ft.File + ")"
		}
		r.Failures = append(r.Failures, failureLines{Heading: heading, Errors: ft.Errors})
	}
	return r
}

// postJSON sends a webhook payload. Any status outside accepted is an error.
func postJSON(ctx context.Context, client *http.Client, url string, payload any, accepted ...int) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	for _, code := range accepted {
		if resp.StatusCode == code {
			return nil
		}
	}
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
}
