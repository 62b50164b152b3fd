package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"websearch/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory domain.CacheStore with controllable
// timestamps and failure injection.
type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	stored map[string]time.Time
	putErr error
	getErr error
}

func newMemStore() *memStore {
	return &memStore{
		data:   make(map[string][]byte),
		stored: make(map[string]time.Time),
	}
}

func (s *memStore) Get(key string) ([]byte, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, time.Time{}, s.getErr
	}
	data, ok := s.data[key]
	if !ok {
		return nil, time.Time{}, fmt.Errorf("cache entry %s: %w", key, domain.ErrNotFound)
	}
	return data, s.stored[key], nil
}

func (s *memStore) Put(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.data[key] = data
	s.stored[key] = time.Now()
	return nil
}

func (s *memStore) age(key string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at, ok := s.stored[key]; ok {
		s.stored[key] = at.Add(-d)
	}
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// memHistory collects recorded entries for assertions.
type memHistory struct {
	mu      sync.Mutex
	entries []domain.HistoryEntry
	recErr  error
}

func (h *memHistory) Record(ctx context.Context, e domain.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.recErr != nil {
		return h.recErr
	}
	h.entries = append(h.entries, e)
	return nil
}

func (h *memHistory) Recent(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.HistoryEntry, len(h.entries))
	copy(out, h.entries)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (h *memHistory) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

func (h *memHistory) Close() error { return nil }

func (h *memHistory) all() []domain.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// fakeSearcher implements domain.Searcher.
type fakeSearcher struct {
	mu      sync.Mutex
	entries []domain.SearchEntry
	err     error
	delay   time.Duration
	calls   int
	lastOpt domain.SearchOptions
}

func (f *fakeSearcher) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchEntry, error) {
	f.mu.Lock()
	f.calls++
	f.lastOpt = opts
	delay, err, entries := f.delay, f.err, f.entries
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (f *fakeSearcher) Name() string { return "brave" }

func (f *fakeSearcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeAnswerer implements domain.AnswerProvider.
type fakeAnswerer struct {
	mu     sync.Mutex
	answer string
	err    error
	delay  time.Duration
	calls  int
}

func (f *fakeAnswerer) Answer(ctx context.Context, query string) (string, error) {
	f.mu.Lock()
	f.calls++
	delay, err, answer := f.delay, f.err, f.answer
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return answer, nil
}

func (f *fakeAnswerer) Model() string { return "perplexity/sonar" }
func (f *fakeAnswerer) Name() string  { return "perplexity" }

func (f *fakeAnswerer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeFetcher implements domain.PageFetcher. err makes every call
// fail; failErr with failures > 0 fails only the first N calls.
type fakeFetcher struct {
	mu       sync.Mutex
	page     *domain.PageResult
	err      error
	failErr  error
	failures int
	calls    int
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (*domain.PageResult, error) {
	f.mu.Lock()
	f.calls++
	page, err := f.page, f.err
	if f.failures > 0 {
		f.failures--
		err = f.failErr
	}
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (f *fakeFetcher) Name() string { return "fetch" }

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
