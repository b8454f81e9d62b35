package assertions

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/abdul-hamid-achik/pagespec/packages/core/parser"
	"github.com/abdul-hamid-achik/pagespec/packages/dom"
	"github.com/abdul-hamid-achik/pagespec/packages/snapshot"
	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Result is the outcome of one expectation or url check. A failed Result is
// an assertion failure; it never aborts the scenario.
type Result struct {
	Passed      bool
	Message     string
	Description string
	Kind        string
	Selector    string
	Expected    any
	Actual      any
	Line        int
}

// Source is the page an Evaluator reads from.
type Source interface {
	Document(ctx context.Context) (*dom.Document, error)
	URL() string
	Live() bool
}

type Evaluator struct {
	src          Source
	scope        dom.Scope
	pollTimeout  time.Duration
	pollInterval time.Duration
	snapshots    *snapshot.Manager
	suiteFile    string
	scenario     string
	logger       *zap.Logger
}

// EvaluatorOption is a functional option for configuring an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithPolling sets how long positive expectations are retried on live pages
// and how often the DOM is re-read. A zero timeout disables polling.
func WithPolling(timeout, interval time.Duration) EvaluatorOption {
	return func(e *Evaluator) {
		e.pollTimeout = timeout
		e.pollInterval = interval
	}
}

// WithSnapshots enables snapshot expectations for the given suite file and
// scenario.
func WithSnapshots(m *snapshot.Manager, suiteFile, scenario string) EvaluatorOption {
	return func(e *Evaluator) {
		e.snapshots = m
		e.suiteFile = suiteFile
		e.scenario = scenario
	}
}

func WithLogger(l *zap.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewEvaluator(src Source, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		src:          src,
		pollInterval: 100 * time.Millisecond,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.pollInterval <= 0 {
		e.pollInterval = 100 * time.Millisecond
	}
	return e
}

// PushScope narrows subsequent queries to descendants of the first element
// matching selector within the current scope.
func (e *Evaluator) PushScope(selector string) {
	e.scope = e.scope.Push(selector)
}

// PopScope restores the scope that was active before the last PushScope.
func (e *Evaluator) PopScope() {
	if len(e.scope) > 0 {
		e.scope = e.scope[:len(e.scope)-1]
	}
}

func (e *Evaluator) Scope() dom.Scope {
	return e.scope
}

// Evaluate checks exp against the current page.
func (e *Evaluator) Evaluate(ctx context.Context, exp *parser.Expectation) *Result {
	result := &Result{
		Description: exp.String(),
		Kind:        exp.Kind.String(),
		Selector:    exp.Selector,
		Expected:    expectedValue(exp),
		Line:        exp.Line,
	}

	matcher, err := dom.Compile(exp.Selector)
	if err != nil {
		result.Message = err.Error()
		return result
	}

	if !e.shouldPoll(exp.Kind) {
		e.attempt(ctx, exp, matcher, result)
		return result
	}

	pctx, cancel := context.WithTimeout(ctx, e.pollTimeout)
	defer cancel()
	limiter := rate.NewLimiter(rate.Every(e.pollInterval), 1)

	for attempt := 1; ; attempt++ {
		if err := limiter.Wait(pctx); err != nil {
			if attempt == 1 {
				e.attempt(ctx, exp, matcher, result)
			}
			return result
		}
		e.attempt(pctx, exp, matcher, result)
		if result.Passed {
			return result
		}
		e.logger.Debug("expectation not met, retrying",
			zap.String("expectation", result.Description),
			zap.Int("attempt", attempt),
			zap.String("reason", result.Message))
	}
}

func (e *Evaluator) shouldPoll(kind parser.Kind) bool {
	if e.pollTimeout <= 0 || !e.src.Live() {
		return false
	}
	return kind != parser.KindNotExists && kind != parser.KindSnapshot
}

// attempt runs a single check and overwrites the outcome fields of result.
func (e *Evaluator) attempt(ctx context.Context, exp *parser.Expectation, m goquery.Matcher, result *Result) {
	result.Passed = false
	result.Actual = nil

	doc, err := e.src.Document(ctx)
	if err != nil {
		result.Message = fmt.Sprintf("reading document: %v", err)
		return
	}
	root, err := doc.Resolve(e.scope)
	if err != nil {
		result.Message = err.Error()
		return
	}

	matches := root.FindMatcher(m)
	result.Passed, result.Message = e.check(exp, matches, result)
	if result.Passed {
		result.Message = ""
	}
}

func (e *Evaluator) check(exp *parser.Expectation, matches *goquery.Selection, result *Result) (bool, string) {
	n := matches.Length()

	switch exp.Kind {
	case parser.KindExists:
		result.Actual = n
		if n > 0 {
			return true, ""
		}
		return false, fmt.Sprintf("expected %s to exist, found no elements", exp.Selector)

	case parser.KindNotExists:
		result.Actual = n
		if n == 0 {
			return true, ""
		}
		return false, fmt.Sprintf("expected %s not to exist, found %d element(s), first %s", exp.Selector, n, dom.Describe(matches))

	case parser.KindCount:
		result.Actual = n
		if n == exp.Count {
			return true, ""
		}
		return false, fmt.Sprintf("expected %d element(s) matching %s, found %d", exp.Count, exp.Selector, n)
	}

	if n == 0 {
		return false, fmt.Sprintf("no elements match %s", exp.Selector)
	}

	switch exp.Kind {
	case parser.KindHasAttribute:
		v, ok := dom.Attr(matches, exp.Attribute)
		if !ok {
			return false, fmt.Sprintf("expected %s to have attribute %q", dom.Describe(matches), exp.Attribute)
		}
		result.Actual = v
		return true, ""

	case parser.KindAttributeEquals:
		v, ok := dom.Attr(matches, exp.Attribute)
		if !ok {
			return false, fmt.Sprintf("expected %s to have attribute %q", dom.Describe(matches), exp.Attribute)
		}
		result.Actual = v
		if v == exp.Expected {
			return true, ""
		}
		return false, fmt.Sprintf("expected attribute %q to equal %q, got %q", exp.Attribute, exp.Expected, v)

	case parser.KindContainsText:
		text := dom.Text(matches)
		result.Actual = text
		return containsText(text, exp.Expected, exp.IgnoreCase)

	case parser.KindMatchesPattern:
		text := dom.Text(matches)
		result.Actual = text
		re, err := parser.CompilePattern(exp.Expected, exp.IgnoreCase)
		if err != nil {
			return false, fmt.Sprintf("invalid regex pattern: %v", err)
		}
		if re.MatchString(text) {
			return true, ""
		}
		return false, fmt.Sprintf("expected %q to match /%s/", text, exp.Expected)

	case parser.KindJSONPath:
		return jsonPath(matches, exp, result)

	case parser.KindJSONSchema:
		return schema(matches, exp.Expected)

	case parser.KindSnapshot:
		return e.snapshot(matches, exp)

	default:
		return false, fmt.Sprintf("unknown expectation kind: %v", exp.Kind)
	}
}

func containsText(text, want string, ignoreCase bool) (bool, string) {
	want = dom.NormalizeSpace(want)
	haystack, needle := text, want
	if ignoreCase {
		haystack, needle = strings.ToLower(text), strings.ToLower(want)
	}
	if strings.Contains(haystack, needle) {
		return true, ""
	}
	return false, fmt.Sprintf("expected %q to contain %q", excerpt(text), want)
}

func jsonPath(matches *goquery.Selection, exp *parser.Expectation, result *Result) (bool, string) {
	raw := matches.First().Text()
	if !gjson.Valid(raw) {
		return false, fmt.Sprintf("text of %s is not valid JSON", dom.Describe(matches))
	}
	value := gjson.Get(raw, exp.JSONPath)
	if !value.Exists() {
		return false, fmt.Sprintf("json path %q not found", exp.JSONPath)
	}
	result.Actual = value.Value()
	if exp.JSONValue == nil {
		return true, ""
	}
	return equals(value.Value(), exp.JSONValue)
}

func schema(matches *goquery.Selection, schemaPath string) (bool, string) {
	schemaData, err := os.ReadFile(schemaPath)
	if err != nil {
		return false, fmt.Sprintf("failed to read schema file: %v", err)
	}

	raw := matches.First().Text()
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaData), gojsonschema.NewStringLoader(raw))
	if err != nil {
		return false, fmt.Sprintf("schema validation error: %v", err)
	}
	if result.Valid() {
		return true, ""
	}

	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return false, fmt.Sprintf("schema validation failed: %s", strings.Join(errs, "; "))
}

func (e *Evaluator) snapshot(matches *goquery.Selection, exp *parser.Expectation) (bool, string) {
	if e.snapshots == nil {
		return false, "snapshots are not enabled"
	}
	html, err := dom.OuterHTML(matches)
	if err != nil {
		return false, fmt.Sprintf("rendering %s: %v", exp.Selector, err)
	}
	name := exp.Expected
	if name == "" {
		name = exp.Selector
	}

	result := e.snapshots.Compare(e.suiteFile, e.scenario, name, html)
	if !result.Passed {
		return false, result.Message
	}
	return true, ""
}

// CheckURL compares the page's current URL.
func (e *Evaluator) CheckURL(check *parser.URLCheck, line int) *Result {
	current := e.src.URL()
	result := &Result{
		Description: check.String(),
		Kind:        "url",
		Expected:    check.Value,
		Actual:      current,
		Line:        line,
	}

	got, want := current, check.Value
	if check.IgnoreCase && check.Op != parser.URLMatches {
		got, want = strings.ToLower(got), strings.ToLower(want)
	}

	switch check.Op {
	case parser.URLIncludes:
		result.Passed = strings.Contains(got, want)
		if !result.Passed {
			result.Message = fmt.Sprintf("expected url %q to include %q", current, check.Value)
		}
	case parser.URLEquals:
		result.Passed = got == want
		if !result.Passed {
			result.Message = fmt.Sprintf("expected url %q to equal %q", current, check.Value)
		}
	case parser.URLMatches:
		re, err := parser.CompilePattern(check.Value, check.IgnoreCase)
		if err != nil {
			result.Message = fmt.Sprintf("invalid regex pattern: %v", err)
			return result
		}
		result.Passed = re.MatchString(current)
		if !result.Passed {
			result.Message = fmt.Sprintf("expected url %q to match /%s/", current, check.Value)
		}
	default:
		result.Message = fmt.Sprintf("unknown url check: %v", check.Op)
	}
	return result
}

// Failure builds a failed Result for a step that could not be evaluated,
// such as a click on a missing element.
func Failure(description string, line int, err error) *Result {
	return &Result{
		Description: description,
		Kind:        "step",
		Message:     err.Error(),
		Line:        line,
	}
}

// Success builds a passed Result for a step without an expectation.
func Success(description string, line int) *Result {
	return &Result{
		Passed:      true,
		Description: description,
		Kind:        "step",
		Line:        line,
	}
}

func expectedValue(exp *parser.Expectation) any {
	switch exp.Kind {
	case parser.KindExists, parser.KindNotExists:
		return nil
	case parser.KindHasAttribute:
		return exp.Attribute
	case parser.KindCount:
		return exp.Count
	case parser.KindJSONPath:
		return exp.JSONValue
	default:
		return exp.Expected
	}
}

func equals(actual, expected any) (bool, string) {
	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}

	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)
	if aOk && eOk && actualNum == expectedNum {
		return true, ""
	}

	if fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected) {
		return true, ""
	}

	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// excerpt shortens s to at most limit runes.
func excerpt(s string) string {
	const limit = 120
	n := 0
	for i := range s {
		if n == limit {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
