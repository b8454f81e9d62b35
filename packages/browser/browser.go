// Package browser loads pages for assertion.
//
// A Driver hands out isolated Pages. Three drivers are available:
//
//   - http: fetches the page with a plain HTTP client and parses the
//     response. No scripts run, so the document never changes after load.
//   - rod: drives a local Chrome over the DevTools protocol.
//   - playwright: drives Chromium through Playwright.
//
// Each Page has its own cookie jar or browser context, so scenarios never
// share state.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/dom"
	"github.com/abdul-hamid-achik/pagespec/packages/http"
	"go.uber.org/zap"
)

// Driver names accepted by Open.
const (
	DriverHTTP       = "http"
	DriverRod        = "rod"
	DriverPlaywright = "playwright"
)

// ErrNotLoaded is returned when a page is read before any navigation.
var ErrNotLoaded = errors.New("page not loaded")

// Driver creates pages.
type Driver interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single tab or session. It is not safe for concurrent use.
type Page interface {
	// Navigate loads url and blocks until the page has loaded or ctx is done.
	// Failures are reported as *NavigationError.
	Navigate(ctx context.Context, url string) error
	// Document returns a snapshot of the current DOM.
	Document(ctx context.Context) (*dom.Document, error)
	// Click clicks the first element matching selector and waits for any
	// resulting navigation to load.
	Click(ctx context.Context, selector string) error
	// URL is the address of the current page.
	URL() string
	// Live reports whether the DOM can change after load (scripts run).
	Live() bool
	Close() error
}

// NavigationError reports a page that could not be loaded.
type NavigationError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NavigationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("navigation to %s failed: status %d", e.URL, e.StatusCode)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// IsNavigationError reports whether err wraps a *NavigationError.
func IsNavigationError(err error) bool {
	var navErr *NavigationError
	return errors.As(err, &navErr)
}

// Options configures Open.
type Options struct {
	Driver   string
	Headless bool
	// BrowserBin overrides the Chrome binary used by the rod driver.
	BrowserBin string
	// Client is used by the http driver. A default client is created when nil.
	Client *http.Client
	Logger *zap.Logger
}

// Open starts the driver named in opts.
func Open(ctx context.Context, opts Options) (Driver, error) {
	switch opts.Driver {
	case "", DriverHTTP:
		client := opts.Client
		if client == nil {
			client = http.NewClient(http.WithLogger(opts.Logger))
		}
		return NewStaticDriver(client, opts.Logger), nil
	case DriverRod:
		return NewRodDriver(ctx, RodOptions{Headless: opts.Headless, Bin: opts.BrowserBin, Logger: opts.Logger})
	case DriverPlaywright:
		return NewPlaywrightDriver(PlaywrightOptions{Headless: opts.Headless, Logger: opts.Logger})
	default:
		return nil, fmt.Errorf("unknown driver %q (expected %s, %s or %s)", opts.Driver, DriverHTTP, DriverRod, DriverPlaywright)
	}
}

// timeoutMS converts the time left on ctx to milliseconds, or returns
// fallback when ctx has no deadline.
func timeoutMS(ctx context.Context, fallback time.Duration) float64 {
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline)
		if left < time.Millisecond {
			left = time.Millisecond
		}
		return float64(left.Milliseconds())
	}
	return float64(fallback.Milliseconds())
}
