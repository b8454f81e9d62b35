package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Document is an immutable snapshot of a loaded page.
type Document struct {
	doc *goquery.Document
	url string
}

// Scope is a chain of selectors. Each entry is resolved against the first
// match of the previous one, starting from the document root.
type Scope []string

// Push returns a new scope with selector appended. The receiver is not modified.
func (s Scope) Push(selector string) Scope {
	next := make(Scope, len(s), len(s)+1)
	copy(next, s)
	return append(next, selector)
}

// Parse reads an HTML document from r.
func Parse(r io.Reader, pageURL string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	return &Document{doc: goquery.NewDocumentFromNode(root), url: pageURL}, nil
}

// ParseString parses an HTML string.
func ParseString(s, pageURL string) (*Document, error) {
	return Parse(strings.NewReader(s), pageURL)
}

// URL returns the address the document was loaded from.
func (d *Document) URL() string {
	return d.url
}

// Compile parses a selector.
func Compile(selector string) (cascadia.Selector, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, &SelectorSyntaxError{Selector: selector, Err: err}
	}
	return sel, nil
}

// Query returns the nodes matching selector within scope, in document order.
// It never fails: an unresolvable scope or invalid selector gives an empty
// selection.
func (d *Document) Query(scope Scope, selector string) *goquery.Selection {
	root, err := d.Resolve(scope)
	if err != nil {
		return d.doc.Selection.Slice(0, 0)
	}
	m, err := Compile(selector)
	if err != nil {
		return root.Slice(0, 0)
	}
	return root.FindMatcher(m)
}

// Resolve walks scope from the document root and returns its innermost
// element. It returns *SelectorSyntaxError or *ScopeError when a link of the
// chain cannot be resolved.
func (d *Document) Resolve(scope Scope) (*goquery.Selection, error) {
	cur := d.doc.Selection
	for _, selector := range scope {
		m, err := Compile(selector)
		if err != nil {
			return nil, err
		}
		next := cur.FindMatcher(m).First()
		if next.Length() == 0 {
			return nil, &ScopeError{Selector: selector}
		}
		cur = next
	}
	return cur, nil
}

// Text returns the whitespace-normalised text of every node in sel, joined
// by single spaces.
func Text(sel *goquery.Selection) string {
	parts := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		if t := NormalizeSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}

// NormalizeSpace collapses runs of whitespace and trims the ends.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Attr returns the named attribute of the first node in sel.
func Attr(sel *goquery.Selection, name string) (string, bool) {
	return sel.First().Attr(name)
}

// OuterHTML renders the first node in sel including its own tag.
func OuterHTML(sel *goquery.Selection) (string, error) {
	if sel.Length() == 0 {
		return "", nil
	}
	return goquery.OuterHtml(sel.First())
}

// Describe renders a short tag summary of the first node, e.g. <a class="x">.
func Describe(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return "<none>"
	}
	n := sel.Get(0)
	if n.Type != html.ElementNode {
		return "<#" + n.Data + ">"
	}
	var b strings.Builder
	b.WriteString("<")
	b.WriteString(n.Data)
	for _, a := range n.Attr {
		fmt.Fprintf(&b, " %s=%q", a.Key, a.Val)
	}
	b.WriteString(">")
	return b.String()
}
