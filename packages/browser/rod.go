package browser

import (
	"context"
	"fmt"

	"github.com/abdul-hamid-achik/pagespec/packages/dom"
	"github.com/abdul-hamid-achik/pagespec/packages/logger"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

type RodOptions struct {
	Headless bool
	// Bin is the Chrome executable. Found on PATH or downloaded when empty.
	Bin    string
	Logger *zap.Logger
}

// RodDriver drives a local Chrome over the DevTools protocol. Every page
// runs in its own incognito context.
type RodDriver struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	logger   *zap.Logger
}

func NewRodDriver(ctx context.Context, opts RodOptions) (*RodDriver, error) {
	path := opts.Bin
	if path == "" {
		path, _ = launcher.LookPath()
	}

	l := launcher.New().Context(ctx).Bin(path).Headless(opts.Headless)
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching chrome: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connecting to chrome: %w", err)
	}

	log := logger.OrNop(opts.Logger)
	log.Debug("chrome started", zap.String("control_url", u))
	return &RodDriver{launcher: l, browser: b, logger: log}, nil
}

func (d *RodDriver) NewPage(ctx context.Context) (Page, error) {
	incognito, err := d.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("creating incognito context: %w", err)
	}
	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("opening page: %w", err)
	}
	return &rodPage{browser: incognito, page: page, logger: d.logger}, nil
}

func (d *RodDriver) Close() error {
	err := d.browser.Close()
	d.launcher.Kill()
	return err
}

type rodPage struct {
	browser *rod.Browser
	page    *rod.Page
	logger  *zap.Logger
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	page, cancel := p.page.Context(ctx).WithCancel()
	defer cancel()

	wait := awaitDocument(page)
	if err := page.Navigate(url); err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	if status, err := wait(); err != nil {
		return &NavigationError{URL: url, Err: err}
	} else if status < 200 || status > 299 {
		return &NavigationError{URL: url, StatusCode: status}
	}
	p.logger.Debug("page loaded", zap.String("url", p.URL()))
	return nil
}

// awaitDocument subscribes to the next main-frame document response and
// load event. Subscribe before the action that navigates. The returned func
// blocks until both have arrived or the page context is done.
func awaitDocument(page *rod.Page) func() (int, error) {
	var status int
	waitResponse := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument {
			return false
		}
		if e.FrameID != "" && e.FrameID != page.FrameID {
			return false
		}
		status = e.Response.Status
		return true
	})
	waitLoad := page.WaitNavigation(proto.PageLifecycleEventNameLoad)

	return func() (int, error) {
		waitResponse()
		waitLoad()
		if err := page.GetContext().Err(); err != nil {
			return 0, err
		}
		return status, nil
	}
}

func (p *rodPage) Document(ctx context.Context) (*dom.Document, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return nil, fmt.Errorf("reading page html: %w", err)
	}
	return dom.ParseString(html, p.URL())
}

// linkHref returns the absolute href of the link an element sits in, or ""
// when it is not in a link or the link opens another window.
const linkHref = `() => {
	const a = this.closest("a[href]");
	if (!a || (a.target && a.target !== "_self")) return "";
	return a.href;
}`

func (p *rodPage) Click(ctx context.Context, selector string) error {
	if _, err := dom.Compile(selector); err != nil {
		return err
	}

	page, cancel := p.page.Context(ctx).WithCancel()
	defer cancel()

	el, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("selector %q matched no elements: %w", selector, err)
	}

	// Only link clicks wait for a new document; script handlers and
	// fragment links leave the page in place.
	var wait func() (int, error)
	target := p.URL()
	if res, err := el.Eval(linkHref); err == nil {
		if href := res.Value.Str(); href != "" {
			if t, navigates, err := linkTarget(target, href); err == nil && navigates {
				target = t
				wait = awaitDocument(page)
			}
		}
	}

	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("clicking %q: %w", selector, err)
	}
	if wait == nil {
		return nil
	}

	status, err := wait()
	if err != nil {
		return &NavigationError{URL: target, Err: err}
	}
	if status < 200 || status > 299 {
		return &NavigationError{URL: target, StatusCode: status}
	}
	p.logger.Debug("followed link", zap.String("selector", selector), zap.String("url", p.URL()))
	return nil
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) Live() bool {
	return true
}

func (p *rodPage) Close() error {
	_ = p.page.Close()
	return p.browser.Close()
}
