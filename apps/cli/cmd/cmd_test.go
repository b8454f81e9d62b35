package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/abdul-hamid-achik/pagespec/packages/notify"
	"github.com/abdul-hamid-achik/pagespec/packages/output"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sitePage = `<!DOCTYPE html>
<html>
<head><title>Caffeinated Thoughts</title></head>
<body>
  <header>
    <a class="header-link-home" href="/">Home</a>
    <nav><a href="/about/">About</a></nav>
  </header>
  <h1>Caffeinated Thoughts</h1>
  <article>
    <h2>New Beginnings</h2>
    <time datetime="2020-01-05">January 5, 2020</time>
  </article>
  <footer>Copyright 2020</footer>
</body>
</html>`

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.URL.Path {
		case "/", "/about/":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, sitePage)
		default:
			nethttp.Error(w, "boom", nethttp.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// executeCommand runs the root command with fresh flag values in an empty
// working directory, so no pagespec.yaml is picked up by accident.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeSuite(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected *ExitError, got %v", err)
	assert.Equal(t, code, exitErr.Code)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, exitCode(nil))
	assert.Equal(t, ExitNetworkError, exitCode(&ExitError{Code: ExitNetworkError}))
	assert.Equal(t, ExitParseError, exitCode(fmt.Errorf("wrapped: %w", &ExitError{Code: ExitParseError, Message: "bad suite"})))
	assert.Equal(t, ExitUsageError, exitCode(errors.New("unknown flag: --nope")))
}

func TestExitError(t *testing.T) {
	assert.Equal(t, "exit status 4", (&ExitError{Code: 4}).Error())
	assert.Equal(t, "config broken", exitErrorf(ExitConfigError, "config %s", "broken").Error())
}

func TestRun_InitScaffoldPasses(t *testing.T) {
	site := newSite(t)
	dir := t.TempDir()
	t.Chdir(dir)

	out, err := executeCommand(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "pagespec project initialized!")
	assert.FileExists(t, filepath.Join(dir, "pagespec.yaml"))

	out, err = executeCommand(t, "run", filepath.Join(dir, "pages"), "--base-url", site.URL, "--no-color", "--no-history")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ has blog title")
	assert.Contains(t, out, "✓ old twitter handle is gone")
	assert.Contains(t, out, "✓ after all")
	assert.Contains(t, out, "✓ Latest post > shows a title and a date")
	assert.Contains(t, out, "✓ Footer > has a copyright line")
}

func TestInit_RefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := executeCommand(t, "init")
	require.NoError(t, err)

	_, err = executeCommand(t, "init")
	requireExitCode(t, err, ExitUsageError)

	_, err = executeCommand(t, "init", "--force")
	require.NoError(t, err)
}

func TestRun_AssertionFailure(t *testing.T) {
	site := newSite(t)
	dir := t.TempDir()
	t.Chdir(dir)
	suite := writeSuite(t, dir, "home.page.yaml", `
visit: /
scenarios:
  - name: wrong title
    steps:
      - selector: h1
        contains: Decaf Thoughts
`)

	out, err := executeCommand(t, "run", suite, "--base-url", site.URL, "--no-color")
	requireExitCode(t, err, ExitTestFailure)
	assert.Contains(t, out, "✗ wrong title")
	assert.Contains(t, out, `to contain "Decaf Thoughts"`)
}

func TestRun_NavigationError(t *testing.T) {
	site := newSite(t)
	dir := t.TempDir()
	t.Chdir(dir)
	suite := writeSuite(t, dir, "broken.page.yaml", `
visit: /broken/
scenarios:
  - name: broken page
    steps:
      - selector: h1
`)

	out, err := executeCommand(t, "run", suite, "--base-url", site.URL, "--no-color")
	requireExitCode(t, err, ExitNetworkError)
	assert.Contains(t, out, "status 500")
}

func TestRun_ParseError(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	suite := writeSuite(t, dir, "bad.page.yaml", `
visit: /
scenarios:
  - name: typo
    steps:
      - selector: h1
        contain: oops
`)

	_, err := executeCommand(t, "run", suite, "--base-url", "http://127.0.0.1:1")
	requireExitCode(t, err, ExitParseError)
}

func TestRun_ConfigError(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	suite := writeSuite(t, dir, "home.page.yaml", "visit: /\nscenarios:\n  - name: x\n    steps:\n      - selector: h1\n")
	writeSuite(t, dir, "pagespec.yaml", "driver: netscape\n")

	_, err := executeCommand(t, "run", suite)
	requireExitCode(t, err, ExitConfigError)

	_, err = executeCommand(t, "run", suite, "--config", filepath.Join(dir, "missing.yaml"))
	requireExitCode(t, err, ExitConfigError)
}

func TestRun_UsageErrors(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := executeCommand(t, "run", filepath.Join(dir, "nope"))
	requireExitCode(t, err, ExitUsageError)

	_, err = executeCommand(t, "run", dir)
	requireExitCode(t, err, ExitUsageError)

	suite := writeSuite(t, dir, "home.page.yaml", "visit: /\nscenarios:\n  - name: x\n    steps:\n      - selector: h1\n")
	_, err = executeCommand(t, "run", suite, "--output", "yaml")
	requireExitCode(t, err, ExitUsageError)
}

func TestRun_JSONOutputFile(t *testing.T) {
	site := newSite(t)
	dir := t.TempDir()
	t.Chdir(dir)
	suite := writeSuite(t, dir, "home.page.yaml", `
name: Home
visit: /
scenarios:
  - name: has title
    steps:
      - selector: h1
        contains: Caffeinated
  - name: skipped one
    skip: not ready
    steps:
      - selector: h1
`)
	report := filepath.Join(dir, "report.json")

	_, err := executeCommand(t, "run", suite, "--base-url", site.URL, "-o", "json", "--output-file", report)
	require.NoError(t, err)

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	var out output.JSONOutput
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, 2, out.Summary.Total)
	assert.Equal(t, 1, out.Summary.Passed)
	assert.Equal(t, 1, out.Summary.Skipped)
	assert.Equal(t, "Home", out.Scenarios[0].Suite)
}

func TestRun_DryRun(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	suite := writeSuite(t, dir, "home.page.yaml", "visit: /\nscenarios:\n  - name: x\n    steps:\n      - selector: h1\n")

	out, err := executeCommand(t, "run", suite, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Would run: "+suite+" (1 scenarios)")
}

func TestRun_HistoryAndDiff(t *testing.T) {
	site := newSite(t)
	dir := t.TempDir()
	t.Chdir(dir)
	db := filepath.Join(dir, "history.db")
	suite := writeSuite(t, dir, "home.page.yaml", `
visit: /
scenarios:
  - name: has title
    steps:
      - selector: h1
`)

	for i := 0; i < 2; i++ {
		_, err := executeCommand(t, "run", suite, "--base-url", site.URL, "--history", db, "--no-color")
		require.NoError(t, err)
	}

	out, err := executeCommand(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "PASSED")

	out, err = executeCommand(t, "diff", "previous", "last", "--db", db, "-o", "json")
	require.NoError(t, err)
	var diff DiffResult
	require.NoError(t, json.Unmarshal([]byte(out), &diff))
	require.Len(t, diff.Comparisons, 1)
	assert.Equal(t, "has title", diff.Comparisons[0].Name)
	assert.Zero(t, diff.Broken)
}

func TestHistory_Missing(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	_, err := executeCommand(t, "history", "--db", filepath.Join(dir, "none.db"))
	requireExitCode(t, err, ExitUsageError)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	good := writeSuite(t, dir, "good.page.yaml", "visit: /\nscenarios:\n  - name: x\n    steps:\n      - selector: h1\n")
	odd := writeSuite(t, dir, "odd.page.yaml", "visit: /\nscenarios:\n  - name: x\n    steps:\n      - selector: 'div[[['\n")

	out, err := executeCommand(t, "validate", good, odd)
	require.NoError(t, err)
	assert.Contains(t, out, "Valid: "+good)
	assert.Contains(t, out, "Warning: "+odd+":5: invalid selector")

	_, err = executeCommand(t, "validate", odd, "--strict")
	requireExitCode(t, err, ExitParseError)

	bad := writeSuite(t, dir, "bad.page.yaml", "visit: /\nscenarios: []\n")
	_, err = executeCommand(t, "validate", bad)
	requireExitCode(t, err, ExitParseError)
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeSuite(t, dir, "home.page.yaml", `
name: Home
visit: /
tags: [smoke]
scenarios:
  - name: has title
    steps:
      - within: header
        steps:
          - selector: a
  - name: later
    skip: needs login
    steps:
      - selector: h1
`)

	out, err := executeCommand(t, "list", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "has title")
	assert.Contains(t, out, "smoke")
	assert.Contains(t, out, "skip: needs login")
}

func TestVersionAndExitCodes(t *testing.T) {
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "pagespec version dev")

	out, err = executeCommand(t, "exit-codes")
	require.NoError(t, err)
	assert.Contains(t, out, " 64  invalid command line usage")
}

type summaryRecorder struct {
	summaries []*notify.RunSummary
}

func (s *summaryRecorder) Notify(_ context.Context, summary *notify.RunSummary) error {
	s.summaries = append(s.summaries, summary)
	return nil
}

func (s *summaryRecorder) Name() string { return "recorder" }

func TestFinishRun_ParseErrorIsNotASuccess(t *testing.T) {
	outcome := &runOutcome{files: 1, parseErrors: 1}
	require.Equal(t, ExitParseError, outcome.exitCode())

	onSuccess := &summaryRecorder{}
	finishRun(context.Background(), outcome, nil, notify.NewManager(notify.NotifySuccess, onSuccess), "", "", zap.NewNop())
	assert.Empty(t, onSuccess.summaries)

	onFailure := &summaryRecorder{}
	finishRun(context.Background(), outcome, nil, notify.NewManager(notify.NotifyFailure, onFailure), "dev", "http://localhost", zap.NewNop())
	require.Len(t, onFailure.summaries, 1)
	assert.Equal(t, 1, onFailure.summaries[0].ParseErrors)
	assert.Equal(t, "dev", onFailure.summaries[0].Environment)
}
