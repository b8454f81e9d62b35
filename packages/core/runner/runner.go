package runner

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/assertions"
	"github.com/abdul-hamid-achik/pagespec/packages/browser"
	"github.com/abdul-hamid-achik/pagespec/packages/core/env"
	"github.com/abdul-hamid-achik/pagespec/packages/core/parser"
	"github.com/abdul-hamid-achik/pagespec/packages/metrics"
	"github.com/abdul-hamid-achik/pagespec/packages/snapshot"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single navigation or click.
	DefaultTimeout = 10 * time.Second
	// AfterScenarioName names the synthetic scenario that runs after steps.
	AfterScenarioName = "after all"
)

type Runner struct {
	driver    browser.Driver
	resolver  *env.Resolver
	config    *Config
	snapshots *snapshot.Manager
	recorder  *metrics.Recorder
	logger    *zap.Logger
}

type Config struct {
	BaseURL      string
	Timeout      time.Duration
	PollTimeout  time.Duration
	PollInterval time.Duration
	Bail         bool
	NameFilter   string
	TagsFilter   []string
}

// Option is a functional option for configuring a Runner.
type Option func(*Runner)

// WithResolver sets the variable resolver. Suite variables are layered on a
// clone of it, so it is never modified.
func WithResolver(res *env.Resolver) Option {
	return func(r *Runner) {
		if res != nil {
			r.resolver = res
		}
	}
}

// WithSnapshots enables snapshot expectations.
func WithSnapshots(m *snapshot.Manager) Option {
	return func(r *Runner) {
		r.snapshots = m
	}
}

// WithRecorder adds every navigation timing to rec in addition to the
// per-file summary.
func WithRecorder(rec *metrics.Recorder) Option {
	return func(r *Runner) {
		r.recorder = rec
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRunner(driver browser.Driver, cfg *Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	r := &Runner{
		driver:   driver,
		resolver: env.NewResolver(),
		config:   cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunResult is the outcome of one suite file.
type RunResult struct {
	File       string
	Suite      string
	Results    []*ScenarioResult
	Duration   time.Duration
	Passed     int
	Failed     int
	Skipped    int
	Navigation metrics.Summary
}

// HasNavigationError reports whether any scenario ended on a page that
// could not be loaded.
func (res *RunResult) HasNavigationError() bool {
	for _, sr := range res.Results {
		if browser.IsNavigationError(sr.Error) {
			return true
		}
	}
	return false
}

// ScenarioResult is the outcome of one scenario. Assertions are in step
// order; Error holds the failure that ended the scenario early, if any.
type ScenarioResult struct {
	Name       string
	Passed     bool
	Skipped    bool
	SkipReason string
	Duration   time.Duration
	URL        string
	Assertions []*assertions.Result
	Error      error
}

// Failures returns the failed assertions.
func (s *ScenarioResult) Failures() []*assertions.Result {
	var failed []*assertions.Result
	for _, a := range s.Assertions {
		if !a.Passed {
			failed = append(failed, a)
		}
	}
	return failed
}

// RunFile parses and runs the suite at path. Parse failures are returned as
// errors wrapping *parser.ParseError; everything else is reported in the
// result.
func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	suite, err := parser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}
	return r.RunSuite(ctx, suite), nil
}

// RunSuite runs every selected scenario of suite, then its after steps.
func (r *Runner) RunSuite(ctx context.Context, suite *parser.Suite) *RunResult {
	start := time.Now()
	result := &RunResult{File: suite.Path, Suite: suite.Name}
	recorder := metrics.NewRecorder()
	resolver := r.suiteResolver(suite)
	log := r.logger.With(zap.String("suite", suite.Name))

	hasOnly := false
	for _, sc := range suite.Scenarios {
		if sc.Only {
			hasOnly = true
			break
		}
	}

	ran, bailed := 0, false
	for _, sc := range suite.Scenarios {
		var sr *ScenarioResult
		switch {
		case bailed:
			sr = &ScenarioResult{Name: sc.Name, Skipped: true, SkipReason: "bail: previous scenario failed"}
		case ctx.Err() != nil:
			sr = &ScenarioResult{Name: sc.Name, Skipped: true, SkipReason: "run cancelled"}
		case !r.shouldRun(sc, hasOnly):
			sr = &ScenarioResult{Name: sc.Name, Skipped: true, SkipReason: "filtered out"}
		case sc.Skip != "":
			sr = &ScenarioResult{Name: sc.Name, Skipped: true, SkipReason: sc.Skip}
		default:
			sr = r.runScenario(ctx, suite, sc.Name, sc.Visit, sc.Steps, resolver, recorder, log)
			ran++
		}
		result.add(sr)
		if !sr.Passed && !sr.Skipped && r.config.Bail {
			bailed = true
		}
	}

	if len(suite.After) > 0 && ran > 0 && ctx.Err() == nil {
		result.add(r.runScenario(ctx, suite, AfterScenarioName, suite.Visit, suite.After, resolver, recorder, log))
	}

	result.Duration = time.Since(start)
	result.Navigation = recorder.Summary()
	if r.recorder != nil {
		r.recorder.Merge(recorder)
	}
	return result
}

func (res *RunResult) add(sr *ScenarioResult) {
	res.Results = append(res.Results, sr)
	switch {
	case sr.Skipped:
		res.Skipped++
	case sr.Passed:
		res.Passed++
	default:
		res.Failed++
	}
}

func (r *Runner) suiteResolver(suite *parser.Suite) *env.Resolver {
	resolver := r.resolver.Clone()
	if !resolver.HasVariable("baseUrl") && r.config.BaseURL != "" {
		resolver.SetVariable("baseUrl", r.config.BaseURL)
	}
	for name, value := range suite.Variables {
		resolver.SetVariable(name, resolver.Resolve(value))
	}
	return resolver
}

func (r *Runner) shouldRun(sc *parser.Scenario, hasOnly bool) bool {
	if hasOnly && !sc.Only {
		return false
	}

	if r.config.NameFilter != "" && !matchesPattern(sc.Name, r.config.NameFilter) {
		return false
	}

	if len(r.config.TagsFilter) > 0 && !hasAnyTag(sc.Tags, r.config.TagsFilter) {
		return false
	}

	return true
}

func (r *Runner) runScenario(ctx context.Context, suite *parser.Suite, name, visit string, steps []*parser.Step,
	resolver *env.Resolver, recorder *metrics.Recorder, log *zap.Logger) *ScenarioResult {
	start := time.Now()
	result := &ScenarioResult{Name: name}
	log = log.With(zap.String("scenario", name))
	defer func() {
		result.Duration = time.Since(start)
		log.Debug("scenario finished", zap.Bool("passed", result.Passed), zap.Duration("duration", result.Duration))
	}()

	page, err := r.driver.NewPage(ctx)
	if err != nil {
		result.Error = fmt.Errorf("opening page: %w", err)
		return result
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Warn("closing page", zap.Error(err))
		}
	}()

	target, err := resolveURL(r.config.BaseURL, resolver.Resolve(visit))
	if err != nil {
		result.Error = &browser.NavigationError{URL: visit, Err: err}
		return result
	}

	navStart := time.Now()
	nctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	err = page.Navigate(nctx, target)
	cancel()
	recorder.Record(pagePath(target), time.Since(navStart), err)
	if err != nil {
		log.Debug("navigation failed", zap.String("url", target), zap.Error(err))
		result.Error = err
		result.URL = target
		return result
	}

	evaluator := assertions.NewEvaluator(page,
		assertions.WithPolling(r.config.PollTimeout, r.config.PollInterval),
		assertions.WithSnapshots(r.snapshots, suite.Path, name),
		assertions.WithLogger(log))

	if err := r.runSteps(ctx, page, evaluator, steps, resolver, result); err != nil {
		result.Error = err
	}
	result.URL = page.URL()
	result.Passed = result.Error == nil && len(result.Failures()) == 0
	return result
}

// runSteps executes steps in order. It returns an error only when the
// scenario cannot continue.
func (r *Runner) runSteps(ctx context.Context, page browser.Page, ev *assertions.Evaluator, steps []*parser.Step,
	resolver *env.Resolver, result *ScenarioResult) error {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch step.Type {
		case parser.StepExpect:
			exp := resolveExpectation(step.Expectation, resolver)
			result.Assertions = append(result.Assertions, ev.Evaluate(ctx, exp))

		case parser.StepWithin:
			ev.PushScope(resolver.Resolve(step.Selector))
			err := r.runSteps(ctx, page, ev, step.Steps, resolver, result)
			ev.PopScope()
			if err != nil {
				return err
			}

		case parser.StepClick:
			selector := resolver.Resolve(step.Selector)
			desc := "click " + selector
			cctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
			err := page.Click(cctx, selector)
			cancel()
			if err != nil {
				result.Assertions = append(result.Assertions, assertions.Failure(desc, step.Line, err))
				var navErr *browser.NavigationError
				if errors.As(err, &navErr) {
					return err
				}
				continue
			}
			result.Assertions = append(result.Assertions, assertions.Success(desc, step.Line))

		case parser.StepURL:
			check := *step.URL
			check.Value = resolver.Resolve(check.Value)
			result.Assertions = append(result.Assertions, ev.CheckURL(&check, step.Line))

		default:
			return fmt.Errorf("unknown step type %v", step.Type)
		}
	}
	return nil
}

func resolveExpectation(exp *parser.Expectation, resolver *env.Resolver) *parser.Expectation {
	out := *exp
	out.Selector = resolver.Resolve(exp.Selector)
	out.Attribute = resolver.Resolve(exp.Attribute)
	if exp.Kind != parser.KindJSONSchema {
		out.Expected = resolver.Resolve(exp.Expected)
	}
	if s, ok := exp.JSONValue.(string); ok {
		out.JSONValue = resolver.Resolve(s)
	}
	return &out
}

// resolveURL resolves target against base. Absolute targets are returned
// unchanged.
func resolveURL(base, target string) (string, error) {
	t, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", target, err)
	}
	if t.IsAbs() {
		return target, nil
	}
	if base == "" {
		return "", fmt.Errorf("relative url %q needs a baseUrl", target)
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid baseUrl %q: %w", base, err)
	}
	return b.ResolveReference(t).String(), nil
}

// pagePath keys navigation metrics by path so that hosts do not multiply
// entries.
func pagePath(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

func matchesPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}

	if len(pattern) > 1 && pattern[0] == '*' && pattern[len(pattern)-1] == '*' {
		return strings.Contains(name, pattern[1:len(pattern)-1])
	}

	if pattern[0] == '*' {
		return strings.HasSuffix(name, pattern[1:])
	}

	if pattern[len(pattern)-1] == '*' {
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	}

	return name == pattern
}

func hasAnyTag(tags []string, filters []string) bool {
	for _, filter := range filters {
		for _, tag := range tags {
			if tag == filter {
				return true
			}
		}
	}
	return false
}
