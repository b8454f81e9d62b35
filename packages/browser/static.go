package browser

import (
	"bytes"
	"context"
	"fmt"
	neturl "net/url"
	"strings"

	"github.com/abdul-hamid-achik/pagespec/packages/dom"
	"github.com/abdul-hamid-achik/pagespec/packages/http"
	"github.com/abdul-hamid-achik/pagespec/packages/logger"
	"go.uber.org/zap"
)

// StaticDriver loads pages with an HTTP client. Clicking an element follows
// its link.
type StaticDriver struct {
	client *http.Client
	logger *zap.Logger
}

func NewStaticDriver(client *http.Client, l *zap.Logger) *StaticDriver {
	return &StaticDriver{client: client, logger: logger.OrNop(l)}
}

func (d *StaticDriver) NewPage(ctx context.Context) (Page, error) {
	return &staticPage{client: d.client.Session(), logger: d.logger}, nil
}

func (d *StaticDriver) Close() error {
	return nil
}

type staticPage struct {
	client *http.Client
	logger *zap.Logger
	doc    *dom.Document
	url    string
}

func (p *staticPage) Navigate(ctx context.Context, url string) error {
	resp, err := p.client.Get(ctx, url, nil)
	if err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	if !resp.IsSuccess() {
		return &NavigationError{URL: url, StatusCode: resp.StatusCode}
	}
	if !resp.IsHTML() {
		return &NavigationError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected content type %q", resp.ContentType())}
	}

	doc, err := dom.Parse(bytes.NewReader(resp.Body), resp.URL)
	if err != nil {
		return &NavigationError{URL: url, StatusCode: resp.StatusCode, Err: err}
	}

	p.doc = doc
	p.url = resp.URL
	p.logger.Debug("page loaded", zap.String("url", resp.URL), zap.Duration("duration", resp.Duration))
	return nil
}

func (p *staticPage) Document(ctx context.Context) (*dom.Document, error) {
	if p.doc == nil {
		return nil, ErrNotLoaded
	}
	return p.doc, nil
}

func (p *staticPage) Click(ctx context.Context, selector string) error {
	if p.doc == nil {
		return ErrNotLoaded
	}
	if _, err := dom.Compile(selector); err != nil {
		return err
	}

	el := p.doc.Query(nil, selector).First()
	if el.Length() == 0 {
		return fmt.Errorf("selector %q matched no elements", selector)
	}

	href, ok := el.Attr("href")
	if !ok {
		link := el.Closest("a[href]")
		if link.Length() == 0 {
			return fmt.Errorf("element %s has no link to follow", dom.Describe(el))
		}
		href, _ = link.Attr("href")
	}

	target, navigates, err := linkTarget(p.url, href)
	if err != nil {
		return fmt.Errorf("element %s: %w", dom.Describe(el), err)
	}
	if !navigates {
		p.url = target
		return nil
	}

	p.logger.Debug("following link", zap.String("selector", selector), zap.String("href", target))
	return p.Navigate(ctx, target)
}

func (p *staticPage) URL() string {
	return p.url
}

func (p *staticPage) Live() bool {
	return false
}

func (p *staticPage) Close() error {
	p.doc = nil
	return nil
}

// linkTarget resolves href against the page URL. navigates is false for a
// link to a fragment of the current document. Links other than http and
// https cannot be followed.
func linkTarget(pageURL, href string) (target string, navigates bool, err error) {
	ref, err := neturl.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false, fmt.Errorf("invalid href %q: %w", href, err)
	}
	base, err := neturl.Parse(pageURL)
	if err != nil {
		return "", false, fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}

	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false, fmt.Errorf("link %q cannot be followed", href)
	}

	if u.Fragment != "" || strings.HasSuffix(href, "#") {
		current, next := *base, *u
		current.Fragment, next.Fragment = "", ""
		if current.String() == next.String() {
			return u.String(), false, nil
		}
	}
	return u.String(), true, nil
}
