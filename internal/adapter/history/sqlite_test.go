package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"websearch/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	offset := 3
	entries := []domain.HistoryEntry{
		{Engine: domain.EngineBrave, Query: "first", Results: 10, Took: 420 * time.Millisecond},
		{Engine: domain.EnginePerplexity, Query: "second", Results: 1, Cached: true},
		{Engine: domain.EngineBoth, Query: "third", Offset: &offset, Results: 7, Error: "brave: API error 500: boom"},
	}
	for _, e := range entries {
		if err := store.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("entries = %d, want 3", len(got))
	}

	// Newest first.
	if got[0].Query != "third" || got[2].Query != "first" {
		t.Errorf("order wrong: %q, %q, %q", got[0].Query, got[1].Query, got[2].Query)
	}

	newest := got[0]
	if newest.ID == "" {
		t.Error("ID should be assigned on record")
	}
	if newest.Engine != domain.EngineBoth {
		t.Errorf("Engine = %q", newest.Engine)
	}
	if newest.Offset == nil || *newest.Offset != 3 {
		t.Errorf("Offset = %v, want 3", newest.Offset)
	}
	if newest.Error != "brave: API error 500: boom" {
		t.Errorf("Error = %q", newest.Error)
	}
	if newest.CreatedAt.IsZero() {
		t.Error("CreatedAt not persisted")
	}

	oldest := got[2]
	if oldest.Took != 420*time.Millisecond {
		t.Errorf("Took = %v", oldest.Took)
	}
	if oldest.Offset != nil {
		t.Errorf("absent offset must scan as nil, got %v", *oldest.Offset)
	}

	if !got[1].Cached {
		t.Error("Cached flag lost")
	}
}

func TestRecentLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := store.Record(ctx, domain.HistoryEntry{Engine: domain.EngineBrave, Query: "q"}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("entries = %d, want 2", len(got))
	}

	// Zero limit falls back to the default.
	got, err = store.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("entries = %d, want all 5", len(got))
	}
}

func TestRecentEmpty(t *testing.T) {
	store := newTestStore(t)
	got, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("entries = %d, want 0", len(got))
	}
}

func TestPurge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := domain.HistoryEntry{
		Engine:    domain.EngineBrave,
		Query:     "ancient",
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
	}
	recent := domain.HistoryEntry{Engine: domain.EngineBrave, Query: "fresh"}

	if err := store.Record(ctx, old); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Record(ctx, recent); err != nil {
		t.Fatalf("Record: %v", err)
	}

	n, err := store.Purge(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}

	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].Query != "fresh" {
		t.Errorf("wrong survivor: %+v", got)
	}
}

func TestRecordPreservesExplicitID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := domain.HistoryEntry{ID: "01ARZ3NDEKTSV4RRFFQ69G5FAV", Engine: domain.EngineBrave, Query: "q"}
	if err := store.Record(ctx, e); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := store.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if got[0].ID != "01ARZ3NDEKTSV4RRFFQ69G5FAV" {
		t.Errorf("ID = %q", got[0].ID)
	}
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := store.Record(ctx, domain.HistoryEntry{Engine: domain.EngineBrave, Query: "persisted"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].Query != "persisted" {
		t.Errorf("data lost across reopen: %+v", got)
	}
}

func TestNewStoreCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "history.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	store.Close()
}
