// Package domain defines the core types and ports of the websearch
// pipeline. It has no dependencies on adapters or infrastructure; every
// outer layer imports this package, never the reverse.
package domain

import (
	"context"
	"time"
)

// Engine identifies which backend produced (or should produce) a result.
type Engine string

const (
	// EngineBrave is the Brave Search keyword index.
	EngineBrave Engine = "brave"
	// EnginePerplexity is the Perplexity synthesized-answer backend,
	// reached through the OpenRouter gateway.
	EnginePerplexity Engine = "perplexity"
	// EngineBoth fans out to Brave and Perplexity concurrently and
	// merges their results.
	EngineBoth Engine = "both"
	// EngineFetch retrieves and extracts a single web page.
	EngineFetch Engine = "fetch"
)

// Valid reports whether e is one of the supported engines.
func (e Engine) Valid() bool {
	switch e {
	case EngineBrave, EnginePerplexity, EngineBoth, EngineFetch:
		return true
	}
	return false
}

func (e Engine) String() string { return string(e) }

// SearchEntry is a single hit from a keyword search engine.
type SearchEntry struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// WebResult is the outcome of a keyword search.
type WebResult struct {
	Engine  Engine        `json:"engine"`
	Query   string        `json:"query"`
	Results []SearchEntry `json:"results"`
}

// AnswerResult is the outcome of a synthesized-answer query.
type AnswerResult struct {
	Engine Engine `json:"engine"`
	Model  string `json:"model"`
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

// PageResult is the outcome of fetching and extracting a single page.
type PageResult struct {
	Engine Engine `json:"engine"`
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
	Text   string `json:"text"`
}

// CombinedResult merges a Brave search and a Perplexity answer for the
// same query. Either half may be degraded: its Failed flag is set and
// its Error carries the provider failure text, while the other half
// still holds real data.
type CombinedResult struct {
	Engine           Engine        `json:"engine"`
	Query            string        `json:"query"`
	BraveResults     []SearchEntry `json:"brave_results"`
	PerplexityAnswer string        `json:"perplexity_answer"`
	BraveFailed      bool          `json:"brave_failed,omitempty"`
	BraveError       string        `json:"brave_error,omitempty"`
	PerplexityFailed bool          `json:"perplexity_failed,omitempty"`
	PerplexityError  string        `json:"perplexity_error,omitempty"`
}

// Degraded reports whether either half of the merged result failed.
func (r *CombinedResult) Degraded() bool {
	return r.BraveFailed || r.PerplexityFailed
}

// SearchOptions carries per-request knobs for a keyword search.
//
// Offset is a pointer because "no offset" and "offset 0" are distinct
// requests: an omitted offset leaves the provider's default pagination
// in place and produces a different cache identity than an explicit 0.
type SearchOptions struct {
	Offset *int
	Count  int
}

// RetryPolicy bounds the retry loop around a provider call.
// An operation runs at most MaxRetries+1 times; the wait before retry
// attempt n (1-based) is BaseDelay << (n-1).
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultRetryPolicy matches the stock provider configuration:
// three total attempts with waits of 1s then 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, BaseDelay: time.Second}
}

// Searcher is a keyword search backend.
type Searcher interface {
	// Search runs one query and returns the raw entries. Implementations
	// perform a single attempt; retry and throttling wrap them outside.
	Search(ctx context.Context, query string, opts SearchOptions) ([]SearchEntry, error)
	// Name is the stable provider identifier used for logging,
	// throttling, and cache keys.
	Name() string
}

// AnswerProvider is a backend that synthesizes a prose answer with
// citations for a query.
type AnswerProvider interface {
	Answer(ctx context.Context, query string) (string, error)
	// Model is the model identifier reported in results.
	Model() string
	Name() string
}

// PageFetcher retrieves a single URL and extracts readable content.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*PageResult, error)
	Name() string
}
