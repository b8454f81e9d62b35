package parser

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// SuiteExtensions lists the file suffixes recognised as suites when a
// directory is searched.
var SuiteExtensions = []string{".page.yaml", ".page.yml"}

// IsSuiteFile reports whether path has a suite suffix.
func IsSuiteFile(path string) bool {
	for _, ext := range SuiteExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

type rawSuite struct {
	Name      string            `yaml:"name"`
	Visit     string            `yaml:"visit"`
	Tags      []string          `yaml:"tags"`
	Variables map[string]string `yaml:"variables"`
	Scenarios []rawEntry        `yaml:"scenarios"`
	Groups    []rawGroup        `yaml:"groups"`
	After     []rawStep         `yaml:"after"`
}

type rawGroup struct {
	Name      string        `yaml:"name"`
	Visit     string        `yaml:"visit"`
	Tags      []string      `yaml:"tags"`
	Scenarios []rawEntry `yaml:"scenarios"`
	Groups    []rawGroup `yaml:"groups"`
	line      int
}

func (g *rawGroup) UnmarshalYAML(n *yaml.Node) error {
	if err := checkKeys(n, "name", "visit", "tags", "scenarios", "groups"); err != nil {
		return err
	}
	type plain rawGroup
	if err := n.Decode((*plain)(g)); err != nil {
		return err
	}
	g.line = n.Line
	return nil
}

// rawEntry is an item of a scenarios list: a scenario, or a group when the
// item has scenarios or groups of its own. Groups and scenarios can then
// alternate in one list, like nested describe and it blocks.
type rawEntry struct {
	scenario *rawScenario
	group    *rawGroup
}

func (e *rawEntry) UnmarshalYAML(n *yaml.Node) error {
	if hasKey(n, "scenarios") || hasKey(n, "groups") {
		e.group = &rawGroup{}
		return n.Decode(e.group)
	}
	e.scenario = &rawScenario{}
	return n.Decode(e.scenario)
}

func hasKey(n *yaml.Node, key string) bool {
	if n.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return true
		}
	}
	return false
}

type rawScenario struct {
	Name  string    `yaml:"name"`
	Visit string    `yaml:"visit"`
	Tags  []string  `yaml:"tags"`
	Skip  skipValue `yaml:"skip"`
	Only  bool      `yaml:"only"`
	Steps []rawStep `yaml:"steps"`
	line  int
}

func (s *rawScenario) UnmarshalYAML(n *yaml.Node) error {
	if err := checkKeys(n, "name", "visit", "tags", "skip", "only", "steps"); err != nil {
		return err
	}
	type plain rawScenario
	if err := n.Decode((*plain)(s)); err != nil {
		return err
	}
	s.line = n.Line
	return nil
}

// skipValue accepts `skip: true` or `skip: "reason"`.
type skipValue string

func (v *skipValue) UnmarshalYAML(n *yaml.Node) error {
	var b bool
	if err := n.Decode(&b); err == nil {
		if b {
			*v = "skipped"
		}
		return nil
	}
	var s string
	if err := n.Decode(&s); err != nil {
		return fmt.Errorf("skip must be a boolean or a reason")
	}
	*v = skipValue(s)
	return nil
}

type rawJSON struct {
	Path   string `yaml:"path"`
	Equals any    `yaml:"equals"`
}

type rawURL struct {
	Includes   *string `yaml:"includes"`
	Equals     *string `yaml:"equals"`
	Matches    *string `yaml:"matches"`
	IgnoreCase bool    `yaml:"ignoreCase"`
}

type rawStep struct {
	Selector   string    `yaml:"selector"`
	Exists     *bool     `yaml:"exists"`
	NotExists  *bool     `yaml:"notExists"`
	Attr       string    `yaml:"attr"`
	Equals     *string   `yaml:"equals"`
	Contains   *string   `yaml:"contains"`
	Matches    *string   `yaml:"matches"`
	IgnoreCase bool      `yaml:"ignoreCase"`
	Count      *int      `yaml:"count"`
	JSON       *rawJSON  `yaml:"json"`
	Schema     string    `yaml:"schema"`
	Snapshot   string    `yaml:"snapshot"`
	Within     string    `yaml:"within"`
	Steps      []rawStep `yaml:"steps"`
	Click      string    `yaml:"click"`
	URL        *rawURL   `yaml:"url"`
	line       int
}

func (s *rawStep) UnmarshalYAML(n *yaml.Node) error {
	if err := checkKeys(n, stepKeys...); err != nil {
		return err
	}
	type plain rawStep
	if err := n.Decode((*plain)(s)); err != nil {
		return err
	}
	s.line = n.Line
	return nil
}

var stepKeys = []string{
	"selector", "exists", "notExists", "attr", "equals", "contains", "matches",
	"ignoreCase", "count", "json", "schema", "snapshot", "within", "steps", "click", "url",
}

// checkKeys rejects unknown mapping keys. yaml.v3 does not carry
// KnownFields into custom unmarshalers.
func checkKeys(n *yaml.Node, allowed ...string) error {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		if !slices.Contains(allowed, key.Value) {
			return fmt.Errorf("line %d: unknown field %q", key.Line, key.Value)
		}
	}
	return nil
}

// ParseFile reads and parses the suite at path.
func ParseFile(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, path)
}

// Parse parses suite YAML. path is used for error messages, the default
// suite name and resolving relative schema files.
func Parse(data []byte, path string) (*Suite, error) {
	var raw rawSuite
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{File: path, Message: "empty suite"}
		}
		return nil, &ParseError{File: path, Message: err.Error()}
	}

	p := &parser{path: path}
	suite := &Suite{
		Path:      path,
		Name:      raw.Name,
		Visit:     raw.Visit,
		Tags:      raw.Tags,
		Variables: raw.Variables,
	}
	if suite.Name == "" {
		suite.Name = defaultSuiteName(path)
	}

	scenarios, err := p.members(raw.Scenarios, raw.Groups, "", raw.Visit, raw.Tags)
	if err != nil {
		return nil, err
	}
	suite.Scenarios = scenarios

	if len(suite.Scenarios) == 0 {
		return nil, &ParseError{File: path, Message: "suite declares no scenarios"}
	}

	after, err := p.steps(raw.After, false)
	if err != nil {
		return nil, err
	}
	if len(after) > 0 && raw.Visit == "" {
		return nil, &ParseError{File: path, Message: "after steps need a suite-level visit"}
	}
	suite.After = after

	return suite, nil
}

func defaultSuiteName(path string) string {
	base := filepath.Base(path)
	for _, ext := range []string{".page.yaml", ".page.yml", ".yaml", ".yml"} {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return base
}

type parser struct {
	path string
}

func (p *parser) errorf(line int, format string, args ...any) error {
	return &ParseError{File: p.path, Line: line, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) group(g rawGroup, prefix, visit string, tags []string) ([]*Scenario, error) {
	if g.Name == "" {
		return nil, p.errorf(g.line, "group has no name")
	}
	name := joinName(prefix, g.Name)
	if g.Visit != "" {
		visit = g.Visit
	}
	tags = mergeTags(tags, g.Tags)

	return p.members(g.Scenarios, g.Groups, name, visit, tags)
}

// members flattens scenarios and groups in the order they appear in the
// file, whichever list they were declared in.
func (p *parser) members(entries []rawEntry, groups []rawGroup, prefix, visit string, tags []string) ([]*Scenario, error) {
	type member struct {
		line     int
		scenario *rawScenario
		group    *rawGroup
	}
	ms := make([]member, 0, len(entries)+len(groups))
	for _, e := range entries {
		if e.group != nil {
			ms = append(ms, member{line: e.group.line, group: e.group})
		} else {
			ms = append(ms, member{line: e.scenario.line, scenario: e.scenario})
		}
	}
	for i := range groups {
		ms = append(ms, member{line: groups[i].line, group: &groups[i]})
	}
	slices.SortStableFunc(ms, func(a, b member) int { return cmp.Compare(a.line, b.line) })

	var out []*Scenario
	for _, m := range ms {
		if m.group != nil {
			scs, err := p.group(*m.group, prefix, visit, tags)
			if err != nil {
				return nil, err
			}
			out = append(out, scs...)
			continue
		}
		sc, err := p.scenario(*m.scenario, prefix, visit, tags)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

func (p *parser) scenario(rs rawScenario, prefix, visit string, tags []string) (*Scenario, error) {
	if rs.Name == "" {
		return nil, p.errorf(rs.line, "scenario has no name")
	}
	if rs.Visit != "" {
		visit = rs.Visit
	}
	if visit == "" {
		return nil, p.errorf(rs.line, "scenario %q has no visit target", rs.Name)
	}

	steps, err := p.steps(rs.Steps, false)
	if err != nil {
		return nil, err
	}

	return &Scenario{
		Name:  joinName(prefix, rs.Name),
		Visit: visit,
		Tags:  mergeTags(tags, rs.Tags),
		Skip:  string(rs.Skip),
		Only:  rs.Only,
		Steps: steps,
		Line:  rs.line,
	}, nil
}

func (p *parser) steps(raw []rawStep, inWithin bool) ([]*Step, error) {
	steps := make([]*Step, 0, len(raw))
	for _, rs := range raw {
		st, err := p.step(rs, inWithin)
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, nil
}

func (p *parser) step(rs rawStep, inWithin bool) (*Step, error) {
	forms := 0
	for _, set := range []bool{rs.Selector != "", rs.Within != "", rs.Click != "", rs.URL != nil} {
		if set {
			forms++
		}
	}
	if forms != 1 {
		return nil, p.errorf(rs.line, "step must have exactly one of selector, within, click or url")
	}

	switch {
	case rs.Within != "":
		if len(rs.Steps) == 0 {
			return nil, p.errorf(rs.line, "within %q has no steps", rs.Within)
		}
		nested, err := p.steps(rs.Steps, true)
		if err != nil {
			return nil, err
		}
		return &Step{Type: StepWithin, Selector: rs.Within, Steps: nested, Line: rs.line}, nil

	case rs.Click != "":
		if inWithin {
			return nil, p.errorf(rs.line, "click is not allowed inside within")
		}
		return &Step{Type: StepClick, Selector: rs.Click, Line: rs.line}, nil

	case rs.URL != nil:
		check, err := p.urlCheck(rs.URL, rs.line)
		if err != nil {
			return nil, err
		}
		return &Step{Type: StepURL, URL: check, Line: rs.line}, nil
	}

	if len(rs.Steps) > 0 {
		return nil, p.errorf(rs.line, "steps are only allowed under within")
	}
	exp, err := p.expectation(rs)
	if err != nil {
		return nil, err
	}
	return &Step{Type: StepExpect, Expectation: exp, Line: rs.line}, nil
}

func (p *parser) expectation(rs rawStep) (*Expectation, error) {
	exp := &Expectation{Selector: rs.Selector, Kind: KindExists, IgnoreCase: rs.IgnoreCase, Line: rs.line}

	var declared []string
	declare := func(name string) { declared = append(declared, name) }

	if rs.Exists != nil {
		declare("exists")
		if !*rs.Exists {
			exp.Kind = KindNotExists
		}
	}
	if rs.NotExists != nil {
		declare("notExists")
		exp.Kind = KindNotExists
		if !*rs.NotExists {
			exp.Kind = KindExists
		}
	}
	if rs.Attr != "" {
		declare("attr")
		exp.Kind = KindHasAttribute
		exp.Attribute = rs.Attr
		if rs.Equals != nil {
			exp.Kind = KindAttributeEquals
			exp.Expected = *rs.Equals
		}
	} else if rs.Equals != nil {
		return nil, p.errorf(rs.line, "equals requires attr")
	}
	if rs.Contains != nil {
		declare("contains")
		exp.Kind = KindContainsText
		exp.Expected = *rs.Contains
		if src, icase, ok := ParsePattern(*rs.Contains); ok {
			exp.Kind = KindMatchesPattern
			exp.Expected = src
			exp.IgnoreCase = exp.IgnoreCase || icase
		}
	}
	if rs.Matches != nil {
		declare("matches")
		exp.Kind = KindMatchesPattern
		exp.Expected = *rs.Matches
		if src, icase, ok := ParsePattern(*rs.Matches); ok {
			exp.Expected = src
			exp.IgnoreCase = exp.IgnoreCase || icase
		}
	}
	if rs.Count != nil {
		declare("count")
		if *rs.Count < 0 {
			return nil, p.errorf(rs.line, "count must not be negative")
		}
		exp.Kind = KindCount
		exp.Count = *rs.Count
	}
	if rs.JSON != nil {
		declare("json")
		if rs.JSON.Path == "" {
			return nil, p.errorf(rs.line, "json requires a path")
		}
		exp.Kind = KindJSONPath
		exp.JSONPath = rs.JSON.Path
		exp.JSONValue = rs.JSON.Equals
	}
	if rs.Schema != "" {
		declare("schema")
		exp.Kind = KindJSONSchema
		exp.Expected = p.relative(rs.Schema)
	}
	if rs.Snapshot != "" {
		declare("snapshot")
		exp.Kind = KindSnapshot
		exp.Expected = rs.Snapshot
	}

	if len(declared) > 1 {
		return nil, p.errorf(rs.line, "step declares more than one assertion (%s)", strings.Join(declared, ", "))
	}

	if exp.Kind == KindMatchesPattern {
		if _, err := CompilePattern(exp.Expected, exp.IgnoreCase); err != nil {
			return nil, p.errorf(rs.line, "invalid pattern %q: %v", exp.Expected, err)
		}
	}

	return exp, nil
}

func (p *parser) urlCheck(ru *rawURL, line int) (*URLCheck, error) {
	var checks []*URLCheck
	if ru.Includes != nil {
		checks = append(checks, &URLCheck{Op: URLIncludes, Value: *ru.Includes, IgnoreCase: ru.IgnoreCase})
	}
	if ru.Equals != nil {
		checks = append(checks, &URLCheck{Op: URLEquals, Value: *ru.Equals, IgnoreCase: ru.IgnoreCase})
	}
	if ru.Matches != nil {
		c := &URLCheck{Op: URLMatches, Value: *ru.Matches, IgnoreCase: ru.IgnoreCase}
		if src, icase, ok := ParsePattern(c.Value); ok {
			c.Value = src
			c.IgnoreCase = c.IgnoreCase || icase
		}
		if _, err := CompilePattern(c.Value, c.IgnoreCase); err != nil {
			return nil, p.errorf(line, "invalid url pattern %q: %v", c.Value, err)
		}
		checks = append(checks, c)
	}
	if len(checks) != 1 {
		return nil, p.errorf(line, "url step must have exactly one of includes, equals or matches")
	}
	return checks[0], nil
}

func (p *parser) relative(file string) string {
	if filepath.IsAbs(file) || p.path == "" {
		return file
	}
	return filepath.Join(filepath.Dir(p.path), file)
}

var patternLiteral = regexp.MustCompile(`^/(.*)/([a-z]*)$`)

// ParsePattern recognises a /source/flags literal. Only the i flag is
// meaningful; other flags are ignored.
func ParsePattern(s string) (source string, ignoreCase bool, ok bool) {
	m := patternLiteral.FindStringSubmatch(s)
	if m == nil || m[1] == "" {
		return "", false, false
	}
	return m[1], strings.Contains(m[2], "i"), true
}

// CompilePattern compiles a regular expression source.
func CompilePattern(source string, ignoreCase bool) (*regexp.Regexp, error) {
	if ignoreCase {
		source = "(?i)" + source
	}
	return regexp.Compile(source)
}

func joinName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + " > " + name
}

func mergeTags(base, extra []string) []string {
	if len(extra) == 0 {
		return base
	}
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, t := range append(append([]string{}, base...), extra...) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
