// Package history persists the query log in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"websearch/internal/domain"
)

const defaultRecentLimit = 20

// Compile-time interface assertion.
var _ domain.HistoryStore = (*SQLiteStore)(nil)

// SQLiteStore implements domain.HistoryStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and
// runs the schema migration.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS searches (
			id          TEXT PRIMARY KEY,
			created_at  TEXT NOT NULL,
			engine      TEXT NOT NULL,
			query       TEXT NOT NULL,
			page_offset INTEGER,
			results     INTEGER NOT NULL DEFAULT 0,
			cached      INTEGER NOT NULL DEFAULT 0,
			took_ms     INTEGER NOT NULL DEFAULT 0,
			error       TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_searches_created_at ON searches (created_at);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// A shared monotonic entropy source keeps ids generated within the
// same millisecond in insertion order, so ORDER BY id is stable.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

func generateULID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Record implements domain.HistoryStore. A missing ID is assigned here
// so callers never deal with identifier generation.
func (s *SQLiteStore) Record(ctx context.Context, e domain.HistoryEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.ID == "" {
		e.ID = generateULID(e.CreatedAt)
	}

	var offset any
	if e.Offset != nil {
		offset = *e.Offset
	}
	cached := 0
	if e.Cached {
		cached = 1
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO searches (id, created_at, engine, query, page_offset, results, cached, took_ms, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.CreatedAt.Format(time.RFC3339Nano), string(e.Engine), e.Query,
		offset, e.Results, cached, e.Took.Milliseconds(), e.Error,
	)
	if err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	return nil
}

// Recent implements domain.HistoryStore. Entries come back newest
// first; ULIDs are time-ordered so the id is the sort key.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, created_at, engine, query, page_offset, results, cached, took_ms, error FROM searches ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Purge implements domain.HistoryStore.
func (s *SQLiteStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM searches WHERE created_at < ?",
		olderThan.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("purge history: %w", err)
	}
	return res.RowsAffected()
}

func scanEntry(rows *sql.Rows) (domain.HistoryEntry, error) {
	var (
		e          domain.HistoryEntry
		createdStr string
		engine     string
		offset     sql.NullInt64
		cached     int
		tookMS     int64
	)
	if err := rows.Scan(&e.ID, &createdStr, &engine, &e.Query, &offset, &e.Results, &cached, &tookMS, &e.Error); err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("scan history row: %w", err)
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	e.Engine = domain.Engine(engine)
	if offset.Valid {
		v := int(offset.Int64)
		e.Offset = &v
	}
	e.Cached = cached != 0
	e.Took = time.Duration(tookMS) * time.Millisecond
	return e, nil
}
