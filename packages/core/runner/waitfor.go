package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/http"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// WaitForOptions configures WaitForService.
type WaitForOptions struct {
	URL      string
	Timeout  time.Duration
	Interval time.Duration
	Logger   *zap.Logger
}

// WaitForService polls a URL until it answers with a 2xx status or the
// timeout elapses.
func WaitForService(ctx context.Context, client *http.Client, opts WaitForOptions) error {
	if opts.URL == "" {
		return nil
	}
	if opts.Interval <= 0 {
		opts.Interval = 500 * time.Millisecond
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	log.Info("waiting for service",
		zap.String("url", opts.URL),
		zap.Duration("timeout", opts.Timeout),
		zap.Duration("interval", opts.Interval))

	wctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	limiter := rate.NewLimiter(rate.Every(opts.Interval), 1)

	var lastErr error
	lastStatus := 0

	for {
		if err := limiter.Wait(wctx); err != nil {
			break
		}
		resp, err := client.Get(wctx, opts.URL, nil)
		if err != nil {
			lastErr = err
			continue
		}
		lastStatus = resp.StatusCode
		if resp.IsSuccess() {
			log.Info("service is ready", zap.String("url", opts.URL), zap.Int("status", resp.StatusCode))
			return nil
		}
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	if lastStatus != 0 {
		return fmt.Errorf("service %s not ready after %v: got status %d", opts.URL, opts.Timeout, lastStatus)
	}
	if lastErr != nil {
		return fmt.Errorf("service %s not ready after %v: %w", opts.URL, opts.Timeout, lastErr)
	}
	return fmt.Errorf("service %s not ready after %v", opts.URL, opts.Timeout)
}
