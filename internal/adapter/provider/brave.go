package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"websearch/internal/domain"
	"websearch/internal/infra/config"
	"websearch/internal/infra/tracer"
)

// Compile-time interface assertion.
var _ domain.Searcher = (*BraveClient)(nil)

// BraveClient implements domain.Searcher against the Brave Search API.
// It performs exactly one HTTP attempt per call; throttling and retries
// live in the usecase layer.
type BraveClient struct {
	apiKey     string
	baseURL    string
	count      int
	safeSearch string
	freshness  string
	client     *http.Client
	logger     *slog.Logger
}

// NewBraveClient creates a client with configured timeouts and result
// shaping defaults.
func NewBraveClient(cfg config.BraveConfig, logger *slog.Logger) *BraveClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.search.brave.com/res/v1/web/search"
	}

	return &BraveClient{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		count:      cfg.Count,
		safeSearch: cfg.SafeSearch,
		freshness:  cfg.Freshness,
		client:     NewHTTPClient(cfg.ConnTimeout, cfg.RespTimeout),
		logger:     logger,
	}
}

// Search implements domain.Searcher.
func (c *BraveClient) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchEntry, error) {
	ctx, span := tracer.StartSpan(ctx, "brave.search")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("search.query", query))

	if c.apiKey == "" {
		err := domain.WrapOp("brave", domain.ErrMissingAPIKey)
		tracer.RecordError(span, err)
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	count := opts.Count
	if count <= 0 {
		count = c.count
	}
	params.Set("count", strconv.Itoa(count))
	if isValidSafeSearch(c.safeSearch) {
		params.Set("safesearch", c.safeSearch)
	}
	if isValidFreshness(c.freshness) {
		params.Set("freshness", c.freshness)
	}
	if opts.Offset != nil {
		params.Set("offset", strconv.Itoa(*opts.Offset))
	}

	headers := map[string]string{
		"Accept":               "application/json",
		"X-Subscription-Token": c.apiKey,
	}

	respBody, err := doGetRequest(ctx, c.client, c.baseURL+"?"+params.Encode(), headers)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	var braveResp braveResponse
	if err := json.Unmarshal(respBody, &braveResp); err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	entries := make([]domain.SearchEntry, 0, len(braveResp.Web.Results))
	for _, r := range braveResp.Web.Results {
		entries = append(entries, domain.SearchEntry{
			Title:       r.Title,
			URL:         r.URL,
			Description: r.Description,
		})
	}

	span.SetAttributes(tracer.IntAttr("search.results", len(entries)))
	tracer.SetOK(span)
	c.logger.Debug("brave search completed", "query", query, "results", len(entries))

	return entries, nil
}

// Name implements domain.Searcher.
func (c *BraveClient) Name() string { return "brave" }

// isValidSafeSearch reports whether v is a value the API accepts.
// Anything else is silently omitted rather than sent.
func isValidSafeSearch(v string) bool {
	switch v {
	case "off", "moderate", "strict":
		return true
	}
	return false
}

func isValidFreshness(v string) bool {
	switch v {
	case "pd", "pw", "pm", "py":
		return true
	}
	return false
}

// --- Brave API wire types ---

type braveResponse struct {
	Web braveWeb `json:"web"`
}

type braveWeb struct {
	Results []braveResult `json:"results"`
}

type braveResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}
