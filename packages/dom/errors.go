package dom

import "fmt"

// SelectorSyntaxError reports a selector that cannot be compiled.
type SelectorSyntaxError struct {
	Selector string
	Err      error
}

func (e *SelectorSyntaxError) Error() string {
	return fmt.Sprintf("invalid selector %q: %v", e.Selector, e.Err)
}

func (e *SelectorSyntaxError) Unwrap() error {
	return e.Err
}

// ScopeError reports a scope selector that matched nothing.
type ScopeError struct {
	Selector string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("scope selector %q matched no elements", e.Selector)
}
