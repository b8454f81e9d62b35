package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/browser"
	"github.com/abdul-hamid-achik/pagespec/packages/core/config"
	"github.com/abdul-hamid-achik/pagespec/packages/core/env"
	"github.com/abdul-hamid-achik/pagespec/packages/core/parser"
	"github.com/abdul-hamid-achik/pagespec/packages/core/runner"
	"github.com/abdul-hamid-achik/pagespec/packages/history"
	"github.com/abdul-hamid-achik/pagespec/packages/http"
	"github.com/abdul-hamid-achik/pagespec/packages/logger"
	"github.com/abdul-hamid-achik/pagespec/packages/metrics"
	"github.com/abdul-hamid-achik/pagespec/packages/notify"
	"github.com/abdul-hamid-achik/pagespec/packages/output"
	"github.com/abdul-hamid-achik/pagespec/packages/snapshot"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>...",
	Short: "Run page suites",
	Long: `Run the scenarios defined in .page.yaml suite files.

Examples:
  pagespec run home.page.yaml
  pagespec run ./pages/ --env staging
  pagespec run ./pages/ --tags smoke --bail
  pagespec run blog.page.yaml --name "post"
  pagespec run ./pages/ --driver rod --headless=false
  pagespec run ./pages/ --output junit --output-file report.xml
  pagespec run ./pages/ --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	envFlag          string
	envFileFlag      string
	configFlag       string
	nameFlag         string
	tagsFlag         string
	verboseFlag      int // 0=off, 1=-v, 2=-vv
	quietFlag        bool
	noColorFlag      bool
	outputFlag       string
	outputFileFlag   string
	bailFlag         bool
	timeoutFlag      string
	pollTimeoutFlag  string
	pollIntervalFlag string
	dryRunFlag       bool
	watchFlag        bool
	baseURLFlag      string
	proxyFlag        string
	insecureFlag     bool

	// Driver flags
	driverFlag     string
	headlessFlag   bool
	browserBinFlag string

	// Readiness flags
	waitForFlag        string
	waitForTimeoutFlag string

	// History flags
	historyFlag     string
	noHistoryFlag   bool
	historyKeepFlag int

	// Logging flags
	logLevelFlag  string
	logFormatFlag string

	// Notification flags
	notifyFlag       string
	notifyOnFlag     string
	slackWebhookFlag string
	slackChannelFlag string
	teamsWebhookFlag string

	// Snapshot testing flags
	updateSnapshotsFlag bool
)

func init() {
	// Core flags
	runCmd.Flags().StringVarP(&envFlag, "env", "e", getEnvString("PAGESPEC_ENV", ""), "Environment to use (default: defaultEnvironment from config) (env: PAGESPEC_ENV)")
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("PAGESPEC_ENV_FILE", ""), "Path to .env file for variable interpolation (env: PAGESPEC_ENV_FILE)")
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("PAGESPEC_CONFIG", ""), "Path to config file (env: PAGESPEC_CONFIG)")
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only scenarios matching name pattern")
	runCmd.Flags().StringVarP(&tagsFlag, "tags", "t", getEnvString("PAGESPEC_TAGS", ""), "Run only suites or scenarios with specified tags (comma-separated) (env: PAGESPEC_TAGS)")
	runCmd.Flags().StringVar(&baseURLFlag, "base-url", getEnvString("PAGESPEC_BASE_URL", ""), "Base URL for relative visits (env: PAGESPEC_BASE_URL)")

	// Output flags
	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v shows passed assertions and URLs)")
	runCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", getEnvBool("PAGESPEC_QUIET", false), "Suppress console output, rely on the exit code (env: PAGESPEC_QUIET)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("PAGESPEC_NO_COLOR", false), "Disable colored output (env: PAGESPEC_NO_COLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("PAGESPEC_OUTPUT", ""), "Output format: console, json, junit, tap, html (env: PAGESPEC_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("PAGESPEC_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: PAGESPEC_OUTPUT_FILE)")
	runCmd.Flags().StringVar(&logLevelFlag, "log-level", getEnvString("PAGESPEC_LOG_LEVEL", ""), "Diagnostic log level: debug, info, warn, error (env: PAGESPEC_LOG_LEVEL)")
	runCmd.Flags().StringVar(&logFormatFlag, "log-format", getEnvString("PAGESPEC_LOG_FORMAT", ""), "Diagnostic log format: console, json (env: PAGESPEC_LOG_FORMAT)")

	// Execution flags
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("PAGESPEC_BAIL", false), "Stop on first failure (env: PAGESPEC_BAIL)")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("PAGESPEC_TIMEOUT", ""), "Navigation timeout (e.g., 10s, 1m) (env: PAGESPEC_TIMEOUT)")
	runCmd.Flags().StringVar(&pollTimeoutFlag, "poll-timeout", getEnvString("PAGESPEC_POLL_TIMEOUT", ""), "How long expectations wait on live pages (env: PAGESPEC_POLL_TIMEOUT)")
	runCmd.Flags().StringVar(&pollIntervalFlag, "poll-interval", getEnvString("PAGESPEC_POLL_INTERVAL", ""), "Delay between DOM reads while waiting (env: PAGESPEC_POLL_INTERVAL)")
	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Parse and show what would run without loading pages")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch suite files for changes and re-run")

	// Driver flags
	runCmd.Flags().StringVar(&driverFlag, "driver", getEnvString("PAGESPEC_DRIVER", ""), "Page driver: http, rod, playwright (env: PAGESPEC_DRIVER)")
	runCmd.Flags().BoolVar(&headlessFlag, "headless", getEnvBool("PAGESPEC_HEADLESS", true), "Run browser drivers without a window (env: PAGESPEC_HEADLESS)")
	runCmd.Flags().StringVar(&browserBinFlag, "browser-bin", getEnvString("PAGESPEC_BROWSER_BIN", ""), "Chrome binary for the rod driver (env: PAGESPEC_BROWSER_BIN)")

	// Network flags
	runCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("PAGESPEC_PROXY", ""), "Proxy URL for page requests (env: PAGESPEC_PROXY)")
	runCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("PAGESPEC_INSECURE", false), "Disable SSL certificate validation (env: PAGESPEC_INSECURE)")
	runCmd.Flags().StringVar(&waitForFlag, "wait-for", getEnvString("PAGESPEC_WAIT_FOR", ""), "URL to poll until it answers 2xx before running (env: PAGESPEC_WAIT_FOR)")
	runCmd.Flags().StringVar(&waitForTimeoutFlag, "wait-for-timeout", getEnvString("PAGESPEC_WAIT_FOR_TIMEOUT", ""), "How long to wait for --wait-for (env: PAGESPEC_WAIT_FOR_TIMEOUT)")

	// History flags
	runCmd.Flags().StringVar(&historyFlag, "history", getEnvString("PAGESPEC_HISTORY", ""), "Record runs in this sqlite file (env: PAGESPEC_HISTORY)")
	runCmd.Flags().BoolVar(&noHistoryFlag, "no-history", false, "Do not record this run")
	runCmd.Flags().IntVar(&historyKeepFlag, "history-keep", getEnvInt("PAGESPEC_HISTORY_KEEP", 100), "Number of runs kept in history, 0 keeps all (env: PAGESPEC_HISTORY_KEEP)")

	// Notification flags
	runCmd.Flags().StringVar(&notifyFlag, "notify", getEnvString("PAGESPEC_NOTIFY", ""), "Notification service: slack, teams (env: PAGESPEC_NOTIFY)")
	runCmd.Flags().StringVar(&notifyOnFlag, "notify-on", getEnvString("PAGESPEC_NOTIFY_ON", "failure"), "When to notify: always, failure, success, recovery (env: PAGESPEC_NOTIFY_ON)")
	runCmd.Flags().StringVar(&slackWebhookFlag, "slack-webhook", getEnvString("SLACK_WEBHOOK", ""), "Slack webhook URL (env: SLACK_WEBHOOK)")
	runCmd.Flags().StringVar(&slackChannelFlag, "slack-channel", getEnvString("SLACK_CHANNEL", ""), "Slack channel override (env: SLACK_CHANNEL)")
	runCmd.Flags().StringVar(&teamsWebhookFlag, "teams-webhook", getEnvString("TEAMS_WEBHOOK", ""), "Microsoft Teams webhook URL (env: TEAMS_WEBHOOK)")

	// Snapshot testing flags
	runCmd.Flags().BoolVar(&updateSnapshotsFlag, "update-snapshots", getEnvBool("PAGESPEC_UPDATE_SNAPSHOTS", false), "Update snapshot files instead of comparing (env: PAGESPEC_UPDATE_SNAPSHOTS)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// explicitBool returns val when the flag was given on the command line or
// through its environment variable, so config file values are not
// overridden by flag defaults.
func explicitBool(cmd *cobra.Command, name, envKey string, val bool) *bool {
	if cmd.Flags().Changed(name) || os.Getenv(envKey) != "" {
		return config.BoolPtr(val)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// loadRunConfig loads the config file and applies flag and environment
// overrides on top.
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, err
	}
	fileConfig.History = fileConfig.ResolvePath(fileConfig.History)

	overrides := &config.Config{
		BaseURL:      baseURLFlag,
		Driver:       driverFlag,
		BrowserBin:   browserBinFlag,
		Timeout:      timeoutFlag,
		PollTimeout:  pollTimeoutFlag,
		PollInterval: pollIntervalFlag,
		Proxy:        proxyFlag,
		Reporter:     outputFlag,
		OutputFile:   outputFileFlag,
		History:      historyFlag,
		LogLevel:     logLevelFlag,
		LogFormat:    logFormatFlag,
		Headless:     explicitBool(cmd, "headless", "PAGESPEC_HEADLESS", headlessFlag),
		Bail:         explicitBool(cmd, "bail", "PAGESPEC_BAIL", bailFlag),
		NoColor:      explicitBool(cmd, "no-color", "PAGESPEC_NO_COLOR", noColorFlag),
	}
	if verboseFlag > 0 {
		overrides.Verbose = config.BoolPtr(true)
	}
	if insecureFlag {
		overrides.ValidateSSL = config.BoolPtr(false)
	}
	if waitForFlag != "" {
		overrides.WaitFor = &config.WaitForConfig{URL: waitForFlag, Timeout: waitForTimeoutFlag}
	}
	if notifyFlag != "" {
		overrides.Notify = &config.NotifyConfig{
			Services:     splitList(notifyFlag),
			On:           notifyOnFlag,
			SlackWebhook: slackWebhookFlag,
			SlackChannel: slackChannelFlag,
			TeamsWebhook: teamsWebhookFlag,
		}
	}

	cfg := fileConfig.Merge(overrides)
	if noHistoryFlag {
		cfg.History = ""
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildNotifyManager returns nil when no service is configured. Webhook
// URLs may reference variables, e.g. {{$SLACK_WEBHOOK}}.
func buildNotifyManager(nc *config.NotifyConfig, resolver *env.Resolver) (*notify.Manager, error) {
	if nc == nil || len(nc.Services) == 0 {
		return nil, nil
	}

	notifyOn, err := notify.ParseNotifyOn(nc.On)
	if err != nil {
		return nil, err
	}

	var notifiers []notify.Notifier
	for _, service := range nc.Services {
		switch strings.ToLower(strings.TrimSpace(service)) {
		case "slack":
			webhook := resolver.Resolve(firstNonEmpty(nc.SlackWebhook, slackWebhookFlag))
			if webhook == "" {
				return nil, fmt.Errorf("--slack-webhook or notify.slackWebhook is required when using slack notifications")
			}
			var opts []notify.SlackOption
			if channel := firstNonEmpty(nc.SlackChannel, slackChannelFlag); channel != "" {
				opts = append(opts, notify.WithSlackChannel(channel))
			}
			notifiers = append(notifiers, notify.NewSlackNotifier(webhook, opts...))

		case "teams":
			webhook := resolver.Resolve(firstNonEmpty(nc.TeamsWebhook, teamsWebhookFlag))
			if webhook == "" {
				return nil, fmt.Errorf("--teams-webhook or notify.teamsWebhook is required when using teams notifications")
			}
			notifiers = append(notifiers, notify.NewTeamsNotifier(webhook))

		default:
			return nil, fmt.Errorf("unknown notify service %q (expected slack or teams)", service)
		}
	}

	return notify.NewManager(notifyOn, notifiers...), nil
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return exitErrorf(ExitConfigError, "%v", err)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return exitErrorf(ExitConfigError, "%v", err)
	}
	defer func() { _ = log.Sync() }()

	files, err := collectFiles(args)
	if err != nil {
		return exitErrorf(ExitUsageError, "%v", err)
	}
	if len(files) == 0 {
		return exitErrorf(ExitUsageError, "no suite files (*.page.yaml) found")
	}

	if dryRunFlag {
		return dryRun(cmd, files)
	}

	timeout, err := cfg.GetTimeout()
	if err != nil {
		return exitErrorf(ExitConfigError, "%v", err)
	}
	pollTimeout, err := cfg.GetPollTimeout()
	if err != nil {
		return exitErrorf(ExitConfigError, "%v", err)
	}
	pollInterval, err := cfg.GetPollInterval()
	if err != nil {
		return exitErrorf(ExitConfigError, "%v", err)
	}

	envName := firstNonEmpty(envFlag, cfg.DefaultEnvironment)
	environment, err := env.LoadEnvironment(envName, cfg.Environments, envFileFlag)
	if err != nil {
		return exitErrorf(ExitConfigError, "loading environment %q: %v", envName, err)
	}

	resolver := env.NewResolver()
	resolver.SetWarnFunc(log.Sugar().Warnf)
	resolver.SetVariables(env.LoadSystemEnv("PAGESPEC_VAR_"))
	resolver.SetVariables(environment.Variables)

	baseURL := cfg.ResolveBaseURL(envName)
	if baseURLFlag != "" {
		baseURL = baseURLFlag
	}
	baseURL = resolver.Resolve(baseURL)

	manager, err := buildNotifyManager(cfg.Notify, resolver)
	if err != nil {
		return exitErrorf(ExitConfigError, "%v", err)
	}

	format := strings.ToLower(firstNonEmpty(cfg.Reporter, "console"))
	var out io.Writer = cmd.OutOrStdout()
	if cfg.OutputFile != "" {
		f, err := os.Create(cfg.OutputFile)
		if err != nil {
			return exitErrorf(ExitUsageError, "cannot create output file: %v", err)
		}
		defer f.Close()
		out = f
	} else if quietFlag && format == "console" {
		out = io.Discard
	}
	noColor := cfg.GetNoColor() || cfg.OutputFile != ""
	newFormatter := func() (output.Formatter, error) {
		return output.New(format, out, cfg.GetVerbose(), noColor)
	}
	if _, err := newFormatter(); err != nil {
		return exitErrorf(ExitUsageError, "%v", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clientOpts := []http.ClientOption{
		http.WithTimeout(timeout),
		http.WithFollowRedirects(cfg.GetFollowRedirects()),
		http.WithMaxRedirects(cfg.MaxRedirects),
		http.WithValidateSSL(cfg.GetValidateSSL()),
		http.WithDefaultHeaders(resolver.ResolveAll(cfg.Headers)),
		http.WithLogger(log),
	}
	if cfg.Proxy != "" {
		clientOpts = append(clientOpts, http.WithProxy(resolver.Resolve(cfg.Proxy)))
	}
	client := http.NewClient(clientOpts...)

	if cfg.WaitFor != nil {
		waitTimeout, _ := cfg.WaitFor.GetTimeout()
		waitInterval, _ := cfg.WaitFor.GetInterval()
		err := runner.WaitForService(ctx, client, runner.WaitForOptions{
			URL:      resolver.Resolve(cfg.WaitFor.URL),
			Timeout:  waitTimeout,
			Interval: waitInterval,
			Logger:   log,
		})
		if err != nil {
			return exitErrorf(ExitNetworkError, "%v", err)
		}
	}

	driver, err := browser.Open(ctx, browser.Options{
		Driver:     cfg.Driver,
		Headless:   cfg.GetHeadless(),
		BrowserBin: cfg.BrowserBin,
		Client:     client,
		Logger:     log,
	})
	if err != nil {
		return exitErrorf(ExitConfigError, "starting %s driver: %v", cfg.Driver, err)
	}
	defer func() {
		if err := driver.Close(); err != nil {
			log.Warn("closing driver", zap.Error(err))
		}
	}()

	var store *history.Store
	if cfg.History != "" {
		store, err = history.Open(cfg.History)
		if err != nil {
			log.Warn("run history disabled", zap.String("path", cfg.History), zap.Error(err))
			store = nil
		} else {
			defer store.Close()
		}
	}
	if manager != nil && store != nil {
		if last, err := store.LastRun(ctx); err == nil && last != nil {
			manager.SetLastState(last.Succeeded())
		}
	}

	navRecorder := metrics.NewRecorder()
	r := runner.NewRunner(driver, &runner.Config{
		BaseURL:      baseURL,
		Timeout:      timeout,
		PollTimeout:  pollTimeout,
		PollInterval: pollInterval,
		Bail:         cfg.GetBail(),
		NameFilter:   nameFlag,
		TagsFilter:   splitList(tagsFlag),
	},
		runner.WithResolver(resolver),
		runner.WithSnapshots(snapshot.NewManager(updateSnapshotsFlag)),
		runner.WithRecorder(navRecorder),
		runner.WithLogger(log),
	)

	execute := func(files []string) (*runOutcome, error) {
		formatter, err := newFormatter()
		if err != nil {
			return nil, err
		}
		formatter.FormatHeader(version)

		outcome := runFiles(ctx, r, files, formatter, cfg.GetBail())

		// Flush output for formatters that accumulate results
		if flushable, ok := formatter.(output.Flushable); ok {
			if err := flushable.Flush(outcome.duration); err != nil {
				return outcome, fmt.Errorf("error writing output: %w", err)
			}
		}

		finishRun(context.WithoutCancel(ctx), outcome, store, manager, envName, baseURL, log)
		logNavigation(log, navRecorder.Summary())
		return outcome, nil
	}

	outcome, err := execute(files)
	if err != nil {
		return exitErrorf(ExitUsageError, "%v", err)
	}

	if !watchFlag {
		if code := outcome.exitCode(); code != ExitSuccess {
			return &ExitError{Code: code}
		}
		return nil
	}

	return watchFiles(ctx, cmd, args, func() {
		files, err := collectFiles(args)
		if err != nil {
			log.Error("collecting suite files", zap.Error(err))
			return
		}
		if _, err := execute(files); err != nil {
			log.Error("re-running suites", zap.Error(err))
		}
	}, log)
}

// logNavigation reports latency totals for the session. In watch mode they
// accumulate across reruns.
func logNavigation(log *zap.Logger, s metrics.Summary) {
	if s.Navigations == 0 {
		return
	}
	for _, p := range s.Pages {
		log.Debug("page latency",
			zap.String("page", p.Page),
			zap.Int64("navigations", p.Navigations),
			zap.Int64("errors", p.Errors),
			zap.Duration("p50", p.P50),
			zap.Duration("p95", p.P95),
			zap.Duration("max", p.Max))
	}
	log.Info("navigation latency",
		zap.Int64("navigations", s.Navigations),
		zap.Int64("errors", s.Errors),
		zap.Duration("p50", s.P50),
		zap.Duration("p95", s.P95),
		zap.Duration("p99", s.P99),
		zap.Duration("max", s.Max))
}

// runOutcome aggregates the results of one pass over the suite files.
type runOutcome struct {
	startedAt   time.Time
	duration    time.Duration
	files       int
	results     []*runner.RunResult
	parseErrors int
}

func runFiles(ctx context.Context, r *runner.Runner, files []string, formatter output.Formatter, bail bool) *runOutcome {
	o := &runOutcome{startedAt: time.Now(), files: len(files)}

	for _, file := range files {
		if ctx.Err() != nil {
			break
		}

		result, err := r.RunFile(ctx, file)
		if err != nil {
			o.parseErrors++
			formatter.FormatError(err)
			if bail {
				break
			}
			continue
		}

		formatter.FormatResult(result)
		o.results = append(o.results, result)

		if bail && result.Failed > 0 {
			break
		}
	}

	o.duration = time.Since(o.startedAt)
	return o
}

// exitCode maps the outcome to a process exit code. A parse error wins over
// a navigation error, which wins over an assertion failure.
func (o *runOutcome) exitCode() int {
	if o.parseErrors > 0 {
		return ExitParseError
	}
	failed := false
	for _, res := range o.results {
		if res.HasNavigationError() {
			return ExitNetworkError
		}
		if res.Failed > 0 {
			failed = true
		}
	}
	if failed {
		return ExitTestFailure
	}
	return ExitSuccess
}

func (o *runOutcome) historyRun() *history.Run {
	run := &history.Run{
		StartedAt: o.startedAt,
		Duration:  o.duration,
		Files:     o.files,
		ExitCode:  o.exitCode(),
	}
	for _, res := range o.results {
		run.Passed += res.Passed
		run.Failed += res.Failed
		run.Skipped += res.Skipped
		for _, sr := range res.Results {
			run.Scenarios = append(run.Scenarios, history.ScenarioRecord{
				File:     res.File,
				Name:     sr.Name,
				Passed:   sr.Passed,
				Skipped:  sr.Skipped,
				Duration: sr.Duration,
				Message:  scenarioMessage(sr),
			})
		}
	}
	return run
}

// scenarioMessage is the one-line reason a scenario did not pass.
func scenarioMessage(sr *runner.ScenarioResult) string {
	switch {
	case sr.Skipped:
		return sr.SkipReason
	case sr.Error != nil:
		return sr.Error.Error()
	}
	if failures := sr.Failures(); len(failures) > 0 {
		return fmt.Sprintf("%s: %s", failures[0].Description, failures[0].Message)
	}
	return ""
}

// finishRun records the outcome in history and sends notifications. Both
// are best effort and never change the exit code.
func finishRun(ctx context.Context, o *runOutcome, store *history.Store, manager *notify.Manager, envName, baseURL string, log *zap.Logger) {
	if store != nil {
		id, err := store.Record(ctx, o.historyRun())
		if err != nil {
			log.Warn("failed to record run history", zap.Error(err))
		} else {
			log.Debug("run recorded", zap.String("id", id))
		}
		if historyKeepFlag > 0 {
			if _, err := store.Prune(ctx, historyKeepFlag); err != nil {
				log.Warn("failed to prune run history", zap.Error(err))
			}
		}
	}

	if manager != nil {
		summary := notify.Summarize(o.results, o.parseErrors, o.duration)
		summary.Environment = envName
		summary.BaseURL = baseURL
		if err := manager.Notify(ctx, summary); err != nil {
			log.Warn("failed to send notification", zap.Error(err))
		}
	}
}

func dryRun(cmd *cobra.Command, files []string) error {
	parseErrors := 0
	for _, file := range files {
		suite, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			parseErrors++
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Would run: %s (%d scenarios)\n", file, len(suite.Scenarios))
	}
	if parseErrors > 0 {
		return &ExitError{Code: ExitParseError}
	}
	return nil
}

// watchFiles re-runs the suites whenever a suite file under args changes,
// until ctx is cancelled. Runs never overlap.
func watchFiles(ctx context.Context, cmd *cobra.Command, args []string, rerun func(), log *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			arg = filepath.Dir(arg)
		}
		_ = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil || !d.IsDir() || watchedDirs[path] {
				return nil
			}
			if err := watcher.Add(path); err != nil {
				log.Warn("failed to watch directory", zap.String("dir", path), zap.Error(err))
			}
			watchedDirs[path] = true
			return nil
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	// Debounce timer for rapid file changes
	var debounceTimer *time.Timer
	changed := make(chan string, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !parser.IsSuiteFile(event.Name) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case changed <- name:
				default:
				}
			})

		case name := <-changed:
			fmt.Fprintf(cmd.OutOrStdout(), "\n\nFile changed: %s\nRe-running suites...\n\n", name)
			rerun()
			fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("watcher error", zap.Error(err))
		}
	}
}

// collectFiles expands args into suite files. Directories are searched
// recursively for *.page.yaml files; files named explicitly only need a
// YAML extension.
func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			err := filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && parser.IsSuiteFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			continue
		}

		switch filepath.Ext(arg) {
		case ".yaml", ".yml":
			files = append(files, arg)
		default:
			return nil, fmt.Errorf("%s is not a YAML suite file", arg)
		}
	}

	return files, nil
}
