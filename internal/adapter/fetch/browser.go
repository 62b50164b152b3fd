package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"websearch/internal/domain"
	"websearch/internal/infra/config"
	"websearch/internal/infra/tracer"
	"websearch/internal/security"
)

// Compile-time interface assertion.
var _ domain.PageFetcher = (*BrowserFetcher)(nil)

// BrowserFetcher implements domain.PageFetcher with Chrome via
// chromedp, for pages that render their content with JavaScript. It
// either launches a local instance or attaches to a remote DevTools
// endpoint; the session starts lazily on first use and is reused
// until Close.
type BrowserFetcher struct {
	mu           sync.Mutex
	allocCancel  context.CancelFunc
	browserCtx   context.Context
	browserStop  context.CancelFunc
	started      bool
	cdpURL       string
	headless     bool
	timeout      time.Duration
	maxChars     int
	allowPrivate bool
	logger       *slog.Logger
}

// NewBrowserFetcher creates a fetcher; Chrome is not launched until
// the first Fetch call.
func NewBrowserFetcher(cfg config.FetchConfig, logger *slog.Logger) *BrowserFetcher {
	timeout := cfg.BrowserTimeout
	if timeout <= 0 {
		timeout = 40 * time.Second
	}
	return &BrowserFetcher{
		cdpURL:       cfg.CDPURL,
		headless:     cfg.Headless,
		timeout:      timeout,
		maxChars:     cfg.MaxChars,
		allowPrivate: cfg.AllowPrivate,
		logger:       logger,
	}
}

// start launches or attaches the shared browser instance. Caller must
// hold mu.
func (f *BrowserFetcher) start() error {
	if f.started {
		return nil
	}

	var allocCtx context.Context
	if f.cdpURL != "" {
		allocCtx, f.allocCancel = chromedp.NewRemoteAllocator(context.Background(), f.cdpURL)
	} else {
		// Copy default options to avoid mutating the package-level slice.
		opts := make([]chromedp.ExecAllocatorOption, len(chromedp.DefaultExecAllocatorOptions))
		copy(opts, chromedp.DefaultExecAllocatorOptions[:])
		opts = append(opts,
			chromedp.Flag("headless", f.headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.WindowSize(1280, 720),
		)
		allocCtx, f.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}
	f.browserCtx, f.browserStop = chromedp.NewContext(allocCtx)

	// Probe the browser so a missing Chrome binary or unreachable
	// remote endpoint fails here, not mid-navigation.
	probeCtx, cancel := context.WithTimeout(f.browserCtx, f.timeout)
	defer cancel()
	if err := chromedp.Run(probeCtx); err != nil {
		f.stopLocked()
		return fmt.Errorf("start browser: %w", err)
	}

	f.started = true
	if f.cdpURL != "" {
		f.logger.Info("connected to remote browser", "url", f.cdpURL)
	} else {
		f.logger.Info("browser launched", "headless", f.headless)
	}
	return nil
}

func (f *BrowserFetcher) stopLocked() {
	if f.browserStop != nil {
		f.browserStop()
		f.browserStop = nil
	}
	if f.allocCancel != nil {
		f.allocCancel()
		f.allocCancel = nil
	}
	f.started = false
}

// Close shuts the browser down. Safe to call without a prior Fetch.
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopLocked()
	return nil
}

// Fetch implements domain.PageFetcher.
func (f *BrowserFetcher) Fetch(ctx context.Context, rawURL string) (*domain.PageResult, error) {
	ctx, span := tracer.StartSpan(ctx, "fetch.browser")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("fetch.url", rawURL))

	if !f.allowPrivate {
		if err := security.ValidateURL(rawURL); err != nil {
			tracer.RecordError(span, err)
			return nil, err
		}
	}

	f.mu.Lock()
	if err := f.start(); err != nil {
		f.mu.Unlock()
		tracer.RecordError(span, err)
		return nil, err
	}
	browserCtx := f.browserCtx
	f.mu.Unlock()

	// Each fetch runs in its own tab so concurrent calls do not fight
	// over navigation state.
	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()
	runCtx, cancelRun := context.WithTimeout(tabCtx, f.timeout)
	defer cancelRun()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancelRun()
		case <-done:
		}
	}()
	defer close(done)

	// Present the same user agent as the http backend.
	var title, html string
	err := chromedp.Run(runCtx,
		emulation.SetUserAgentOverride(userAgent),
		chromedp.Navigate(rawURL),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("render page: %w", err)
	}

	_, text := extractReadableText(html)
	if cut, wasCut := clampChars(text, f.maxChars); wasCut {
		text = cut + truncationMarker
	}
	result := &domain.PageResult{
		Engine: domain.EngineFetch,
		URL:    rawURL,
		Title:  title,
		Text:   text,
	}

	span.SetAttributes(tracer.IntAttr("fetch.bytes", len(html)))
	tracer.SetOK(span)
	f.logger.Debug("page rendered", "url", rawURL, "bytes", len(html))

	return result, nil
}

// Name implements domain.PageFetcher.
func (f *BrowserFetcher) Name() string { return "browser" }
