package parser

import "fmt"

type Suite struct {
	Path      string
	Name      string
	Visit     string
	Tags      []string
	Variables map[string]string
	// Scenarios holds every scenario, with group scenarios flattened in
	// declaration order.
	Scenarios []*Scenario
	After     []*Step
}

type Scenario struct {
	// Name is prefixed with enclosing group names, e.g. "Bio > shows avatar".
	Name  string
	Visit string
	Tags  []string
	Skip  string
	Only  bool
	Steps []*Step
	Line  int
}

type StepType int

const (
	StepExpect StepType = iota
	StepWithin
	StepClick
	StepURL
)

func (t StepType) String() string {
	switch t {
	case StepExpect:
		return "expect"
	case StepWithin:
		return "within"
	case StepClick:
		return "click"
	case StepURL:
		return "url"
	default:
		return "unknown"
	}
}

type Step struct {
	Type        StepType
	Expectation *Expectation
	// Selector is the scope of a within step or the target of a click.
	Selector string
	Steps    []*Step
	URL      *URLCheck
	Line     int
}

type Kind int

const (
	KindExists Kind = iota
	KindNotExists
	KindHasAttribute
	KindAttributeEquals
	KindContainsText
	KindMatchesPattern
	KindCount
	KindJSONPath
	KindJSONSchema
	KindSnapshot
)

func (k Kind) String() string {
	switch k {
	case KindExists:
		return "exists"
	case KindNotExists:
		return "not-exists"
	case KindHasAttribute:
		return "has-attribute"
	case KindAttributeEquals:
		return "attribute-equals"
	case KindContainsText:
		return "contains-text"
	case KindMatchesPattern:
		return "matches-pattern"
	case KindCount:
		return "count"
	case KindJSONPath:
		return "json-path"
	case KindJSONSchema:
		return "json-schema"
	case KindSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// Expectation is one condition on the elements matched by Selector.
type Expectation struct {
	Selector string
	Kind     Kind
	// Attribute names the attribute for has-attribute and attribute-equals.
	Attribute string
	// Expected holds the attribute value, text, regular expression source,
	// JSON schema path or snapshot name, depending on Kind.
	Expected   string
	IgnoreCase bool
	Count      int
	// JSONPath and JSONValue drive json-path. A nil JSONValue only checks
	// that the path exists.
	JSONPath  string
	JSONValue any
	Line      int
}

func (e *Expectation) String() string {
	switch e.Kind {
	case KindExists, KindNotExists:
		return fmt.Sprintf("%s %s", e.Selector, e.Kind)
	case KindHasAttribute:
		return fmt.Sprintf("%s has attribute %s", e.Selector, e.Attribute)
	case KindAttributeEquals:
		return fmt.Sprintf("%s[%s] == %q", e.Selector, e.Attribute, e.Expected)
	case KindContainsText:
		return fmt.Sprintf("%s contains %q", e.Selector, e.Expected)
	case KindMatchesPattern:
		flags := ""
		if e.IgnoreCase {
			flags = "i"
		}
		return fmt.Sprintf("%s matches /%s/%s", e.Selector, e.Expected, flags)
	case KindCount:
		return fmt.Sprintf("%s count == %d", e.Selector, e.Count)
	case KindJSONPath:
		if e.JSONValue == nil {
			return fmt.Sprintf("%s json %s exists", e.Selector, e.JSONPath)
		}
		return fmt.Sprintf("%s json %s == %v", e.Selector, e.JSONPath, e.JSONValue)
	case KindJSONSchema:
		return fmt.Sprintf("%s matches schema %s", e.Selector, e.Expected)
	case KindSnapshot:
		return fmt.Sprintf("%s matches snapshot %s", e.Selector, e.Expected)
	default:
		return e.Selector
	}
}

type URLOp int

const (
	URLIncludes URLOp = iota
	URLEquals
	URLMatches
)

func (op URLOp) String() string {
	switch op {
	case URLIncludes:
		return "includes"
	case URLEquals:
		return "equals"
	case URLMatches:
		return "matches"
	default:
		return "unknown"
	}
}

type URLCheck struct {
	Op         URLOp
	Value      string
	IgnoreCase bool
}

func (c *URLCheck) String() string {
	return fmt.Sprintf("url %s %q", c.Op, c.Value)
}

type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	if e.File != "" {
		return e.File + ": " + e.Message
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}
