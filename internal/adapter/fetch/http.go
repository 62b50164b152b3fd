// Package fetch retrieves web pages and extracts readable text. The
// default backend is a plain HTTP client behind the SSRF-safe
// transport; an optional chromedp backend renders JavaScript-heavy
// pages when enabled.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"websearch/internal/domain"
	"websearch/internal/infra/config"
	"websearch/internal/infra/tracer"
	"websearch/internal/security"
)

// userAgent identifies page fetches. Some hosts refuse requests with
// no UA at all.
const userAgent = "Mozilla/5.0 (compatible; websearch/1.0)"

// truncationMarker is appended when the body hit the download cap.
const truncationMarker = "\n\n[content truncated]"

const maxRedirects = 5

// Compile-time interface assertion.
var _ domain.PageFetcher = (*HTTPFetcher)(nil)

// HTTPFetcher implements domain.PageFetcher over net/http with SSRF
// protection and bounded downloads.
type HTTPFetcher struct {
	client       *http.Client
	maxBodyBytes int64
	maxChars     int
	allowPrivate bool
	logger       *slog.Logger
}

// NewHTTPFetcher creates a fetcher with the configured timeout and
// body cap. Unless cfg.AllowPrivate is set, both the initial URL and
// every redirect hop are validated against private address ranges, and
// the dialer re-checks resolved IPs to defeat DNS rebinding.
func NewHTTPFetcher(cfg config.FetchConfig, logger *slog.Logger) *HTTPFetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 * 1024 * 1024
	}

	var transport http.RoundTripper
	if cfg.AllowPrivate {
		transport = http.DefaultTransport
	} else {
		transport = security.NewSafeTransport()
	}

	return &HTTPFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects")
				}
				if !cfg.AllowPrivate {
					if err := security.ValidateURL(req.URL.String()); err != nil {
						return err
					}
				}
				return nil
			},
		},
		maxBodyBytes: maxBody,
		maxChars:     cfg.MaxChars,
		allowPrivate: cfg.AllowPrivate,
		logger:       logger,
	}
}

// Fetch implements domain.PageFetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*domain.PageResult, error) {
	ctx, span := tracer.StartSpan(ctx, "fetch.page")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("fetch.url", rawURL))

	if f.allowPrivate {
		// Still require a well-formed http(s) URL.
		u, err := url.Parse(rawURL)
		if err != nil {
			tracer.RecordError(span, err)
			return nil, fmt.Errorf("invalid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			err := fmt.Errorf("unsupported scheme: %q", u.Scheme)
			tracer.RecordError(span, err)
			return nil, err
		}
	} else if err := security.ValidateURL(rawURL); err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := domain.NewStatusError(resp.StatusCode, body)
		tracer.RecordError(span, err)
		return nil, err
	}

	truncated := int64(len(body)) >= f.maxBodyBytes
	result := buildPageResult(rawURL, resp.Header.Get("Content-Type"), string(body), truncated, f.maxChars)

	span.SetAttributes(tracer.IntAttr("fetch.bytes", len(body)))
	tracer.SetOK(span)
	f.logger.Debug("page fetched",
		"url", rawURL,
		"status", resp.StatusCode,
		"bytes", len(body),
		"truncated", truncated,
	)

	return result, nil
}

// Name implements domain.PageFetcher.
func (f *HTTPFetcher) Name() string { return "http" }

// buildPageResult extracts readable content from a response body.
// HTML gets title and text extraction; everything else passes through
// as-is.
func buildPageResult(rawURL, contentType, body string, truncated bool, maxChars int) *domain.PageResult {
	result := &domain.PageResult{
		Engine: domain.EngineFetch,
		URL:    rawURL,
	}

	if isHTML(contentType, body) {
		title, text := extractReadableText(body)
		result.Title = title
		result.Text = text
	} else {
		result.Text = strings.TrimSpace(body)
	}

	text, cut := clampChars(result.Text, maxChars)
	result.Text = text
	if truncated || cut {
		result.Text += truncationMarker
	}
	return result
}

// clampChars cuts text to at most max runes. Zero max means no cap.
func clampChars(text string, max int) (string, bool) {
	if max <= 0 || len(text) <= max {
		return text, false
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text, false
	}
	return strings.TrimSpace(string(runes[:max])), true
}

func isHTML(contentType, body string) bool {
	if strings.Contains(contentType, "html") {
		return true
	}
	if contentType != "" {
		return false
	}
	head := strings.ToLower(body)
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// extractReadableText parses HTML and returns the page title plus body
// text with scripts, styles, and whitespace noise stripped.
func extractReadableText(body string) (title, text string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		// Unparseable markup degrades to raw text.
		return "", strings.TrimSpace(body)
	}

	title = extractTitle(doc)

	doc.Find("script, style, noscript, iframe, svg").Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	text = strings.TrimSpace(whitespaceRE.ReplaceAllString(root.Text(), " "))
	return title, text
}

// extractTitle tries <title>, then the first h1, then the first h2.
func extractTitle(doc *goquery.Document) string {
	if title := doc.Find("title").First().Text(); title != "" {
		return strings.TrimSpace(title)
	}
	if h1 := doc.Find("h1").First().Text(); h1 != "" {
		return strings.TrimSpace(h1)
	}
	if h2 := doc.Find("h2").First().Text(); h2 != "" {
		return strings.TrimSpace(h2)
	}
	return ""
}
