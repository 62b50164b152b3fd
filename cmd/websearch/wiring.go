package main

import (
	"context"
	"log/slog"
	"time"

	"websearch/internal/adapter/fetch"
	"websearch/internal/adapter/history"
	"websearch/internal/adapter/provider"
	"websearch/internal/adapter/store"
	"websearch/internal/domain"
	"websearch/internal/infra/config"
	"websearch/internal/usecase"
)

// buildService assembles the search pipeline from configuration. The
// returned cleanup closes the history store and the headless browser,
// in reverse construction order.
func buildService(cfg *config.Config, log *slog.Logger) (*usecase.Service, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	deps := usecase.Deps{
		Logger: log,
		BraveRetry: domain.RetryPolicy{
			MaxRetries: cfg.Brave.MaxRetries,
			BaseDelay:  cfg.Brave.RetryBaseDelay,
		},
		AnswerRetry: domain.RetryPolicy{
			MaxRetries: cfg.Perplexity.MaxRetries,
			BaseDelay:  cfg.Perplexity.RetryBaseDelay,
		},
		FetchRetry: domain.RetryPolicy{
			MaxRetries: cfg.Fetch.MaxRetries,
			BaseDelay:  cfg.Fetch.RetryBaseDelay,
		},
		BraveThrottle:  usecase.NewThrottle(cfg.Brave.RequestsPerSecond),
		AnswerThrottle: usecase.NewThrottle(cfg.Perplexity.RequestsPerSecond),
	}

	answerer, err := newAnswerProvider(cfg.Perplexity, log)
	if err != nil {
		return nil, nil, err
	}
	var searcher domain.Searcher = provider.NewBraveClient(cfg.Brave, log)
	if cfg.Breaker.Enabled {
		searcher = provider.NewBreakerSearcher(searcher, cfg.Breaker, log)
		answerer = provider.NewBreakerAnswerer(answerer, cfg.Breaker, log)
	}
	deps.Brave = searcher
	deps.Answer = answerer

	if cfg.Fetch.Backend == "browser" {
		browser := fetch.NewBrowserFetcher(cfg.Fetch, log)
		cleanups = append(cleanups, func() { browser.Close() })
		deps.Fetcher = browser
	} else {
		deps.Fetcher = fetch.NewHTTPFetcher(cfg.Fetch, log)
	}

	// Cache and history are conveniences: if their storage cannot be
	// opened the search still runs, just without them.
	if cfg.Cache.Enabled && cfg.Cache.TTL() > 0 {
		fileStore, err := store.NewFileStore(cfg.Cache.Dir)
		if err != nil {
			log.Warn("cache disabled", "error", err)
		} else {
			deps.Cache = usecase.NewResultCache(fileStore, cfg.Cache.TTL(), log)
			if n, err := fileStore.Prune(time.Now().Add(-cfg.Cache.TTL())); err == nil && n > 0 {
				log.Debug("cache pruned", "entries", n)
			}
		}
	}

	if cfg.History.Enabled {
		hist, err := history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			log.Warn("history disabled", "error", err)
		} else {
			cleanups = append(cleanups, func() { hist.Close() })
			deps.History = hist
			if cfg.History.KeepDays > 0 {
				cutoff := time.Now().AddDate(0, 0, -cfg.History.KeepDays)
				if n, err := hist.Purge(context.Background(), cutoff); err == nil && n > 0 {
					log.Debug("history purged", "entries", n)
				}
			}
		}
	}

	return usecase.NewService(deps), cleanup, nil
}

// newAnswerProvider selects the synthesized-answer gateway. Bedrock is
// only linked into binaries built with -tags bedrock.
func newAnswerProvider(cfg config.PerplexityConfig, log *slog.Logger) (domain.AnswerProvider, error) {
	if cfg.Provider == "bedrock" {
		return createBedrockAnswerer(cfg, log)
	}
	return provider.NewOpenRouterClient(cfg, log), nil
}
