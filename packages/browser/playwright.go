package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/dom"
	"github.com/abdul-hamid-achik/pagespec/packages/logger"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// defaultPlaywrightTimeout applies when a call's context has no deadline.
const defaultPlaywrightTimeout = 30 * time.Second

type PlaywrightOptions struct {
	Headless bool
	Logger   *zap.Logger
}

// PlaywrightDriver drives Chromium through Playwright. Every page gets a
// fresh browser context.
type PlaywrightDriver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	logger  *zap.Logger
}

func NewPlaywrightDriver(opts PlaywrightOptions) (*PlaywrightDriver, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launching chromium: %w", err)
	}

	return &PlaywrightDriver{pw: pw, browser: b, logger: logger.OrNop(opts.Logger)}, nil
}

func (d *PlaywrightDriver) NewPage(ctx context.Context) (Page, error) {
	bctx, err := d.browser.NewContext()
	if err != nil {
		return nil, fmt.Errorf("creating browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("opening page: %w", err)
	}
	return &playwrightPage{bctx: bctx, page: page, logger: d.logger}, nil
}

func (d *PlaywrightDriver) Close() error {
	if err := d.browser.Close(); err != nil {
		_ = d.pw.Stop()
		return err
	}
	return d.pw.Stop()
}

type playwrightPage struct {
	bctx   playwright.BrowserContext
	page   playwright.Page
	logger *zap.Logger
}

func (p *playwrightPage) Navigate(ctx context.Context, url string) error {
	resp, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(timeoutMS(ctx, defaultPlaywrightTimeout)),
	})
	if err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	if resp != nil && (resp.Status() < 200 || resp.Status() >= 300) {
		return &NavigationError{URL: url, StatusCode: resp.Status()}
	}
	p.logger.Debug("page loaded", zap.String("url", p.page.URL()))
	return nil
}

func (p *playwrightPage) Document(ctx context.Context) (*dom.Document, error) {
	content, err := p.page.Content()
	if err != nil {
		return nil, fmt.Errorf("reading page content: %w", err)
	}
	return dom.ParseString(content, p.page.URL())
}

func (p *playwrightPage) Click(ctx context.Context, selector string) error {
	if _, err := dom.Compile(selector); err != nil {
		return err
	}

	timeout := playwright.Float(timeoutMS(ctx, defaultPlaywrightTimeout))
	if err := p.page.Locator(selector).First().Click(playwright.LocatorClickOptions{Timeout: timeout}); err != nil {
		return fmt.Errorf("clicking %q: %w", selector, err)
	}

	err := p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateLoad,
		Timeout: playwright.Float(timeoutMS(ctx, defaultPlaywrightTimeout)),
	})
	if err != nil {
		return &NavigationError{URL: p.page.URL(), Err: err}
	}
	return nil
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) Live() bool {
	return true
}

func (p *playwrightPage) Close() error {
	return p.bctx.Close()
}
