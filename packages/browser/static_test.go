package browser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/abdul-hamid-achik/pagespec/packages/dom"
	pshttp "github.com/abdul-hamid-achik/pagespec/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><h1>Home</h1><a class="post" href="/post/"><span>Read</span></a><p id="plain">no link</p><a class="mail" href="mailto:me@blog.test">Mail</a><a class="js" href="javascript:void(0)">Menu</a><a class="top" href="#top">Top</a></body></html>`))
	})
	mux.HandleFunc("/post/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><h1>Post</h1><a class="home" href="..">Home</a></body></html>`))
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/post/", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/feed.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newStaticPage(t *testing.T) Page {
	t.Helper()
	page, err := NewStaticDriver(pshttp.NewClient(), nil).NewPage(context.Background())
	require.NoError(t, err)
	return page
}

func TestStaticPage_Navigate(t *testing.T) {
	srv := newSite(t)
	page := newStaticPage(t)
	ctx := context.Background()

	require.NoError(t, page.Navigate(ctx, srv.URL+"/"))
	assert.Equal(t, srv.URL+"/", page.URL())
	assert.False(t, page.Live())

	doc, err := page.Document(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Home", dom.Text(doc.Query(nil, "h1")))
}

func TestStaticPage_NavigateFollowsRedirects(t *testing.T) {
	srv := newSite(t)
	page := newStaticPage(t)

	require.NoError(t, page.Navigate(context.Background(), srv.URL+"/moved"))
	assert.Equal(t, srv.URL+"/post/", page.URL())
}

func TestStaticPage_NavigationErrors(t *testing.T) {
	srv := newSite(t)

	tests := []struct {
		name       string
		url        string
		wantStatus int
	}{
		{"not found", srv.URL + "/missing", http.StatusNotFound},
		{"not html", srv.URL + "/feed.json", http.StatusOK},
		{"unreachable", "http://127.0.0.1:1/", 0},
		{"bad scheme", "ftp://example.com/", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newStaticPage(t)
			err := page.Navigate(context.Background(), tt.url)

			var navErr *NavigationError
			require.True(t, errors.As(err, &navErr), "got %v", err)
			assert.Equal(t, tt.url, navErr.URL)
			assert.Equal(t, tt.wantStatus, navErr.StatusCode)
			assert.True(t, IsNavigationError(err))
		})
	}
}

func TestStaticPage_DocumentBeforeNavigate(t *testing.T) {
	page := newStaticPage(t)
	_, err := page.Document(context.Background())
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestStaticPage_Click(t *testing.T) {
	srv := newSite(t)
	page := newStaticPage(t)
	ctx := context.Background()

	require.NoError(t, page.Navigate(ctx, srv.URL+"/"))

	// clicking a child of a link follows the enclosing anchor
	require.NoError(t, page.Click(ctx, "a.post span"))
	assert.Equal(t, srv.URL+"/post/", page.URL())

	require.NoError(t, page.Click(ctx, `a[class="home"]`))
	assert.Equal(t, srv.URL+"/", page.URL())
}

func TestStaticPage_ClickErrors(t *testing.T) {
	srv := newSite(t)
	page := newStaticPage(t)
	ctx := context.Background()
	require.NoError(t, page.Navigate(ctx, srv.URL+"/"))

	err := page.Click(ctx, "nav a")
	assert.ErrorContains(t, err, "matched no elements")

	err = page.Click(ctx, "#plain")
	assert.ErrorContains(t, err, "no link to follow")

	err = page.Click(ctx, "a[")
	var syntaxErr *dom.SelectorSyntaxError
	assert.ErrorAs(t, err, &syntaxErr)

	for _, sel := range []string{"a.mail", "a.js"} {
		err = page.Click(ctx, sel)
		require.Error(t, err, sel)
		assert.ErrorContains(t, err, "cannot be followed")
		assert.False(t, IsNavigationError(err), "clicking %s is not a navigation failure", sel)
	}

	assert.Equal(t, srv.URL+"/", page.URL())
}

func TestStaticPage_ClickFragmentStaysOnPage(t *testing.T) {
	srv := newSite(t)
	page := newStaticPage(t)
	ctx := context.Background()
	require.NoError(t, page.Navigate(ctx, srv.URL+"/"))

	require.NoError(t, page.Click(ctx, "a.top"))
	assert.Equal(t, srv.URL+"/#top", page.URL())

	doc, err := page.Document(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Home", dom.Text(doc.Query(nil, "h1")))
}

func TestLinkTarget(t *testing.T) {
	tests := []struct {
		name      string
		page      string
		href      string
		target    string
		navigates bool
		wantErr   bool
	}{
		{"relative", "http://blog.test/posts/", "../about/", "http://blog.test/about/", true, false},
		{"same page reloads", "http://blog.test/", "/", "http://blog.test/", true, false},
		{"fragment", "http://blog.test/post/", "#comments", "http://blog.test/post/#comments", false, false},
		{"fragment on other page", "http://blog.test/", "/post/#comments", "http://blog.test/post/#comments", true, false},
		{"absolute", "http://blog.test/", "https://twitter.com/x", "https://twitter.com/x", true, false},
		{"mailto", "http://blog.test/", "mailto:me@blog.test", "", false, true},
		{"javascript", "http://blog.test/", "javascript:void(0)", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, navigates, err := linkTarget(tt.page, tt.href)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.target, target)
			assert.Equal(t, tt.navigates, navigates)
		})
	}
}

func TestOpen(t *testing.T) {
	d, err := Open(context.Background(), Options{Driver: DriverHTTP})
	require.NoError(t, err)
	assert.IsType(t, &StaticDriver{}, d)
	assert.NoError(t, d.Close())

	_, err = Open(context.Background(), Options{Driver: "lynx"})
	assert.ErrorContains(t, err, `unknown driver "lynx"`)
}

func TestNavigationError_Error(t *testing.T) {
	err := &NavigationError{URL: "http://x/", StatusCode: 503}
	assert.Equal(t, "navigation to http://x/ failed: status 503", err.Error())

	cause := errors.New("boom")
	err = &NavigationError{URL: "http://x/", Err: cause}
	assert.Equal(t, "navigation to http://x/ failed: boom", err.Error())
	assert.ErrorIs(t, err, cause)
}
