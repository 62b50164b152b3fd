// Package usecase orchestrates the search pipeline: throttling,
// retries, caching, concurrent fan-out, and history recording around
// the provider adapters.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"websearch/internal/domain"
	"websearch/internal/infra/tracer"
)

// Deps carries the collaborators for Service. Brave, Answer, and
// Fetcher are the provider ports; a nil Cache disables caching and a
// nil History disables the query log.
type Deps struct {
	Brave   domain.Searcher
	Answer  domain.AnswerProvider
	Fetcher domain.PageFetcher

	Cache   *ResultCache
	History domain.HistoryStore
	Logger  *slog.Logger

	BraveRetry     domain.RetryPolicy
	AnswerRetry    domain.RetryPolicy
	FetchRetry     domain.RetryPolicy
	BraveThrottle  *Throttle
	AnswerThrottle *Throttle
}

// Service is the application core behind every frontend (CLI, MCP
// serve mode, TUI). It treats providers as opaque single-attempt calls
// and owns all resilience policy around them.
type Service struct {
	deps Deps
}

// NewService wires a Service from its dependencies.
func NewService(deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{deps: deps}
}

// Search runs a Brave keyword search for query. The result is served
// from cache when fresh; otherwise the provider is called under the
// throttle and retry policy and the result is cached best-effort.
func (s *Service) Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.WebResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if s.deps.Brave == nil {
		return nil, domain.WrapOp("brave", domain.ErrMissingAPIKey)
	}

	ctx, span := tracer.StartSpan(ctx, "search.brave")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("query", query))

	start := time.Now()
	key := CacheKey(query, domain.EngineBrave, opts.Offset)

	if hit, ok := cacheLookup[domain.WebResult](s.deps.Cache, key); ok {
		span.SetAttributes(tracer.BoolAttr("cache_hit", true))
		tracer.SetOK(span)
		s.deps.Logger.Debug("cache hit", "engine", "brave", "query", query)
		s.record(ctx, domain.HistoryEntry{
			Engine:  domain.EngineBrave,
			Query:   query,
			Offset:  opts.Offset,
			Results: len(hit.Results),
			Cached:  true,
			Took:    time.Since(start),
		})
		return hit, nil
	}

	if err := s.deps.BraveThrottle.Wait(ctx); err != nil {
		return nil, err
	}

	entries, err := runWithRetry(ctx, s.deps.Logger, "brave", s.deps.BraveRetry,
		func(ctx context.Context) ([]domain.SearchEntry, error) {
			return s.deps.Brave.Search(ctx, query, opts)
		})
	if err != nil {
		tracer.RecordError(span, err)
		s.record(ctx, domain.HistoryEntry{
			Engine: domain.EngineBrave,
			Query:  query,
			Offset: opts.Offset,
			Took:   time.Since(start),
			Error:  err.Error(),
		})
		return nil, err
	}

	if entries == nil {
		entries = []domain.SearchEntry{}
	}
	result := &domain.WebResult{Engine: domain.EngineBrave, Query: query, Results: entries}
	cacheStore(s.deps.Cache, key, result)

	span.SetAttributes(tracer.IntAttr("results", len(entries)))
	tracer.SetOK(span)
	s.record(ctx, domain.HistoryEntry{
		Engine:  domain.EngineBrave,
		Query:   query,
		Offset:  opts.Offset,
		Results: len(entries),
		Took:    time.Since(start),
	})
	return result, nil
}

// Answer asks the synthesized-answer provider for a cited prose answer.
func (s *Service) Answer(ctx context.Context, query string) (*domain.AnswerResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if s.deps.Answer == nil {
		return nil, domain.WrapOp("perplexity", domain.ErrMissingAPIKey)
	}

	ctx, span := tracer.StartSpan(ctx, "search.perplexity")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("query", query))

	start := time.Now()
	key := CacheKey(query, domain.EnginePerplexity, nil)

	if hit, ok := cacheLookup[domain.AnswerResult](s.deps.Cache, key); ok {
		span.SetAttributes(tracer.BoolAttr("cache_hit", true))
		tracer.SetOK(span)
		s.deps.Logger.Debug("cache hit", "engine", "perplexity", "query", query)
		s.record(ctx, domain.HistoryEntry{
			Engine:  domain.EnginePerplexity,
			Query:   query,
			Results: 1,
			Cached:  true,
			Took:    time.Since(start),
		})
		return hit, nil
	}

	if err := s.deps.AnswerThrottle.Wait(ctx); err != nil {
		return nil, err
	}

	answer, err := runWithRetry(ctx, s.deps.Logger, "perplexity", s.deps.AnswerRetry,
		func(ctx context.Context) (string, error) {
			return s.deps.Answer.Answer(ctx, query)
		})
	if err != nil {
		tracer.RecordError(span, err)
		s.record(ctx, domain.HistoryEntry{
			Engine: domain.EnginePerplexity,
			Query:  query,
			Took:   time.Since(start),
			Error:  err.Error(),
		})
		return nil, err
	}

	result := &domain.AnswerResult{
		Engine: domain.EnginePerplexity,
		Model:  s.deps.Answer.Model(),
		Query:  query,
		Answer: answer,
	}
	cacheStore(s.deps.Cache, key, result)
	tracer.SetOK(span)
	s.record(ctx, domain.HistoryEntry{
		Engine:  domain.EnginePerplexity,
		Query:   query,
		Results: 1,
		Took:    time.Since(start),
	})
	return result, nil
}

// SearchBoth fans out to Brave and Perplexity concurrently and merges
// their results. A failed half degrades gracefully: its flag and error
// text are set while the other half carries real data, and the call as
// a whole never fails. The merged result is cached only when both
// halves succeeded, so a degraded response is retried on the next call.
func (s *Service) SearchBoth(ctx context.Context, query string, opts domain.SearchOptions) *domain.CombinedResult {
	query = strings.TrimSpace(query)
	combined := &domain.CombinedResult{
		Engine:       domain.EngineBoth,
		Query:        query,
		BraveResults: []domain.SearchEntry{},
	}
	if query == "" {
		combined.BraveFailed = true
		combined.BraveError = domain.ErrEmptyQuery.Error()
		combined.PerplexityFailed = true
		combined.PerplexityError = domain.ErrEmptyQuery.Error()
		return combined
	}

	ctx, span := tracer.StartSpan(ctx, "search.both")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("query", query))

	start := time.Now()
	key := CacheKey(query, domain.EngineBoth, opts.Offset)

	if hit, ok := cacheLookup[domain.CombinedResult](s.deps.Cache, key); ok {
		span.SetAttributes(tracer.BoolAttr("cache_hit", true))
		tracer.SetOK(span)
		s.deps.Logger.Debug("cache hit", "engine", "both", "query", query)
		s.record(ctx, domain.HistoryEntry{
			Engine:  domain.EngineBoth,
			Query:   query,
			Offset:  opts.Offset,
			Results: len(hit.BraveResults),
			Cached:  true,
			Took:    time.Since(start),
		})
		return hit
	}

	var (
		wg     sync.WaitGroup
		webRes *domain.WebResult
		webErr error
		ansRes *domain.AnswerResult
		ansErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		webRes, webErr = s.Search(ctx, query, opts)
	}()
	go func() {
		defer wg.Done()
		ansRes, ansErr = s.Answer(ctx, query)
	}()
	wg.Wait()

	if webErr != nil {
		s.deps.Logger.Warn("brave search failed during merged request", "error", webErr)
		combined.BraveFailed = true
		combined.BraveError = webErr.Error()
	} else {
		combined.BraveResults = webRes.Results
	}

	if ansErr != nil {
		s.deps.Logger.Warn("perplexity search failed during merged request", "error", ansErr)
		combined.PerplexityFailed = true
		combined.PerplexityError = ansErr.Error()
	} else {
		combined.PerplexityAnswer = ansRes.Answer
	}

	if combined.Degraded() {
		span.SetAttributes(tracer.BoolAttr("degraded", true))
		if webErr != nil && ansErr != nil {
			tracer.RecordError(span, errors.New("both engines failed"))
		} else {
			tracer.SetOK(span)
		}
	} else {
		cacheStore(s.deps.Cache, key, combined)
		tracer.SetOK(span)
	}

	var errParts []string
	if webErr != nil {
		errParts = append(errParts, "brave: "+webErr.Error())
	}
	if ansErr != nil {
		errParts = append(errParts, "perplexity: "+ansErr.Error())
	}
	s.record(ctx, domain.HistoryEntry{
		Engine:  domain.EngineBoth,
		Query:   query,
		Offset:  opts.Offset,
		Results: len(combined.BraveResults),
		Took:    time.Since(start),
		Error:   strings.Join(errParts, "; "),
	})
	return combined
}

// FetchPage retrieves a single URL and extracts readable content.
// Pages are cached under the URL with no offset component.
func (s *Service) FetchPage(ctx context.Context, rawURL string) (*domain.PageResult, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, domain.WrapOp("fetch", domain.ErrEmptyQuery)
	}
	if s.deps.Fetcher == nil {
		return nil, fmt.Errorf("fetch: no fetcher configured")
	}

	ctx, span := tracer.StartSpan(ctx, "search.fetch")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("url", rawURL))

	start := time.Now()
	key := CacheKey(rawURL, domain.EngineFetch, nil)

	if hit, ok := cacheLookup[domain.PageResult](s.deps.Cache, key); ok {
		span.SetAttributes(tracer.BoolAttr("cache_hit", true))
		tracer.SetOK(span)
		s.deps.Logger.Debug("cache hit", "engine", "fetch", "url", rawURL)
		s.record(ctx, domain.HistoryEntry{
			Engine:  domain.EngineFetch,
			Query:   rawURL,
			Results: 1,
			Cached:  true,
			Took:    time.Since(start),
		})
		return hit, nil
	}

	page, err := runWithRetry(ctx, s.deps.Logger, "fetch", s.deps.FetchRetry,
		func(ctx context.Context) (*domain.PageResult, error) {
			return s.deps.Fetcher.Fetch(ctx, rawURL)
		})
	if err != nil {
		tracer.RecordError(span, err)
		s.record(ctx, domain.HistoryEntry{
			Engine: domain.EngineFetch,
			Query:  rawURL,
			Took:   time.Since(start),
			Error:  err.Error(),
		})
		return nil, err
	}

	cacheStore(s.deps.Cache, key, page)
	tracer.SetOK(span)
	s.record(ctx, domain.HistoryEntry{
		Engine:  domain.EngineFetch,
		Query:   rawURL,
		Results: 1,
		Took:    time.Since(start),
	})
	return page, nil
}

// record appends to the query log best-effort; failures are logged and
// never surfaced to the caller.
func (s *Service) record(ctx context.Context, e domain.HistoryEntry) {
	if s.deps.History == nil {
		return
	}
	e.CreatedAt = time.Now().UTC()
	if err := s.deps.History.Record(ctx, e); err != nil {
		s.deps.Logger.Warn("history record failed", "error", err)
	}
}
