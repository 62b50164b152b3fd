package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"websearch/internal/domain"
	"websearch/internal/infra/config"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// Compile-time interface assertions.
var (
	_ domain.Searcher       = (*BreakerSearcher)(nil)
	_ domain.AnswerProvider = (*BreakerAnswerer)(nil)
)

func newBreaker[T any](name string, cfg config.BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker[T] {
	maxFailures := uint32(cfg.MaxFailures)
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
}

func mapBreakerError(name string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: provider %q", domain.ErrCircuitOpen, name)
	}
	return err
}

// BreakerSearcher wraps a domain.Searcher with circuit breaker
// protection. When the wrapped provider fails repeatedly, the circuit
// opens and subsequent calls fail fast without reaching the provider,
// preventing retry storms against a down API.
type BreakerSearcher struct {
	inner   domain.Searcher
	breaker *gobreaker.CircuitBreaker[[]domain.SearchEntry]
}

// NewBreakerSearcher wraps inner with a circuit breaker. Zero-valued
// settings fall back to defaults.
func NewBreakerSearcher(inner domain.Searcher, cfg config.BreakerConfig, logger *slog.Logger) *BreakerSearcher {
	return &BreakerSearcher{
		inner:   inner,
		breaker: newBreaker[[]domain.SearchEntry]("search:"+inner.Name(), cfg, logger),
	}
}

// Search implements domain.Searcher. Calls are routed through the
// circuit breaker.
func (b *BreakerSearcher) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchEntry, error) {
	entries, err := b.breaker.Execute(func() ([]domain.SearchEntry, error) {
		return b.inner.Search(ctx, query, opts)
	})
	if err != nil {
		return nil, mapBreakerError(b.inner.Name(), err)
	}
	return entries, nil
}

// Name implements domain.Searcher.
func (b *BreakerSearcher) Name() string { return b.inner.Name() }

// State returns the current circuit breaker state for monitoring.
func (b *BreakerSearcher) State() gobreaker.State { return b.breaker.State() }

// BreakerAnswerer wraps a domain.AnswerProvider with circuit breaker
// protection.
type BreakerAnswerer struct {
	inner   domain.AnswerProvider
	breaker *gobreaker.CircuitBreaker[string]
}

// NewBreakerAnswerer wraps inner with a circuit breaker.
func NewBreakerAnswerer(inner domain.AnswerProvider, cfg config.BreakerConfig, logger *slog.Logger) *BreakerAnswerer {
	return &BreakerAnswerer{
		inner:   inner,
		breaker: newBreaker[string]("answer:"+inner.Name(), cfg, logger),
	}
}

// Answer implements domain.AnswerProvider.
func (b *BreakerAnswerer) Answer(ctx context.Context, query string) (string, error) {
	answer, err := b.breaker.Execute(func() (string, error) {
		return b.inner.Answer(ctx, query)
	})
	if err != nil {
		return "", mapBreakerError(b.inner.Name(), err)
	}
	return answer, nil
}

// Model implements domain.AnswerProvider.
func (b *BreakerAnswerer) Model() string { return b.inner.Model() }

// Name implements domain.AnswerProvider.
func (b *BreakerAnswerer) Name() string { return b.inner.Name() }

// State returns the current circuit breaker state for monitoring.
func (b *BreakerAnswerer) State() gobreaker.State { return b.breaker.State() }
