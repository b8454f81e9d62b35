package dom

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const blogPost = `<!DOCTYPE html>
<html>
<body>
  <header class="global-header">
    <a class="header-link-home" href="/">Caffeinated
      Thoughts</a>
  </header>
  <main>
    <article class="blog-post" itemscope itemtype="http://schema.org/Article">
      <h1 itemprop="headline">New Beginnings</h1>
      <p class="published-date">January 01, 2021</p>
      <section itemprop="articleBody"><p>Hello</p><p>World</p></section>
    </article>
    <a rel="prev" href="/older/">Older</a>
    <a href='https://twitter.com/dkpk_'>twitter</a>
  </main>
  <footer>footer</footer>
</body>
</html>`

func mustParse(t *testing.T, s string) *Document {
	t.Helper()
	doc, err := ParseString(s, "http://example.test/new-beginnings/")
	require.NoError(t, err)
	return doc
}

func TestQuery(t *testing.T) {
	doc := mustParse(t, blogPost)

	tests := []struct {
		selector string
		want     int
	}{
		{"h1", 1},
		{`h1[itemprop="headline"]`, 1},
		{`article[class="blog-post"]`, 1},
		{"a[href='https://twitter.com/dkpk_']", 1},
		{"a[href='https://twitter.com/dkpk']", 0},
		{"section p", 2},
		{".published-date", 1},
		{"nav", 0},
		{"a[", 0},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			assert.Equal(t, tt.want, doc.Query(nil, tt.selector).Length())
		})
	}
}

func TestQuery_Scoped(t *testing.T) {
	doc := mustParse(t, blogPost)

	scope := Scope{`header[class="global-header"]`}
	links := doc.Query(scope, `a[class="header-link-home"]`)
	require.Equal(t, 1, links.Length())
	assert.Equal(t, "Caffeinated Thoughts", Text(links))

	// the twitter link lives outside the header
	assert.Equal(t, 0, doc.Query(scope, "a[href^='https://twitter.com']").Length())

	// unresolvable scope yields empty results
	assert.Equal(t, 0, doc.Query(Scope{"aside"}, "a").Length())
}

func TestResolve(t *testing.T) {
	doc := mustParse(t, blogPost)

	sel, err := doc.Resolve(Scope{"main", "article"})
	require.NoError(t, err)
	assert.Equal(t, "article", sel.Get(0).Data)

	_, err = doc.Resolve(Scope{"main", "aside"})
	var scopeErr *ScopeError
	require.True(t, errors.As(err, &scopeErr))
	assert.Equal(t, "aside", scopeErr.Selector)

	_, err = doc.Resolve(Scope{"main", "a[["})
	var syntaxErr *SelectorSyntaxError
	require.True(t, errors.As(err, &syntaxErr))
	assert.Equal(t, "a[[", syntaxErr.Selector)
}

func TestScopePush_DoesNotAlias(t *testing.T) {
	base := make(Scope, 1, 4)
	base[0] = "main"
	a := base.Push("article")
	b := base.Push("footer")
	assert.Equal(t, Scope{"main", "article"}, a)
	assert.Equal(t, Scope{"main", "footer"}, b)
	assert.Equal(t, Scope{"main"}, base)
}

func TestCompile(t *testing.T) {
	_, err := Compile(`a[class="header-link-home"]`)
	assert.NoError(t, err)

	_, err = Compile("a[href=")
	var syntaxErr *SelectorSyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	assert.Contains(t, syntaxErr.Error(), `invalid selector "a[href="`)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestAttr(t *testing.T) {
	doc := mustParse(t, blogPost)
	article := doc.Query(nil, "article")

	v, ok := Attr(article, "itemtype")
	assert.True(t, ok)
	assert.Equal(t, "http://schema.org/Article", v)

	v, ok = Attr(article, "itemscope")
	assert.True(t, ok)
	assert.Equal(t, "", v)

	_, ok = Attr(article, "lang")
	assert.False(t, ok)
}

func TestText(t *testing.T) {
	doc := mustParse(t, blogPost)
	assert.Equal(t, "Hello World", Text(doc.Query(nil, "section p")))
	assert.Equal(t, "", Text(doc.Query(nil, "nav")))
}

func TestOuterHTMLAndDescribe(t *testing.T) {
	doc := mustParse(t, blogPost)
	h1 := doc.Query(nil, "h1")

	out, err := OuterHTML(h1)
	require.NoError(t, err)
	assert.Equal(t, `<h1 itemprop="headline">New Beginnings</h1>`, out)
	assert.Equal(t, `<h1 itemprop="headline">`, Describe(h1))
	assert.Equal(t, "<none>", Describe(doc.Query(nil, "nav")))
}

func TestURL(t *testing.T) {
	doc := mustParse(t, "<p>x</p>")
	assert.Equal(t, "http://example.test/new-beginnings/", doc.URL())
}

func TestQuery_Idempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		classes := rapid.SliceOfN(rapid.StringMatching(`[a-c]{1,2}`), 1, 12).Draw(rt, "classes")
		var b strings.Builder
		b.WriteString("<div>")
		for i, c := range classes {
			fmt.Fprintf(&b, `<p class="%s" id="n%d">%s</p>`, c, i, c)
		}
		b.WriteString("</div>")

		doc, err := ParseString(b.String(), "")
		if err != nil {
			rt.Fatalf("parse: %v", err)
		}

		selector := "p." + rapid.StringMatching(`[a-c]{1,2}`).Draw(rt, "class")
		first := doc.Query(nil, selector)
		second := doc.Query(nil, selector)

		if first.Length() != second.Length() {
			rt.Fatalf("lengths differ: %d vs %d", first.Length(), second.Length())
		}
		for i := range first.Nodes {
			if first.Nodes[i] != second.Nodes[i] {
				rt.Fatalf("node %d differs", i)
			}
		}

		want := 0
		for _, c := range classes {
			if "p."+c == selector {
				want++
			}
		}
		if first.Length() != want {
			rt.Fatalf("got %d matches for %s, want %d", first.Length(), selector, want)
		}
	})
}
