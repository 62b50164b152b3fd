// Package store provides the on-disk blob store backing the result
// cache. Entries are plain files named by content-hash key; the file
// mtime doubles as the entry's write time for TTL checks.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"websearch/internal/domain"
)

// FileStore persists cache entries as individual files under a root
// directory. Writes are last-writer-wins; concurrent processes racing
// on the same key both write valid content, so no locking is needed.
type FileStore struct {
	dir string
}

// NewFileStore creates the cache directory if needed and returns a store.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache dir must not be empty")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Get returns the entry's bytes and last-write time. A missing entry is
// reported as an error wrapping domain.ErrNotFound.
func (s *FileStore) Get(key string) ([]byte, time.Time, error) {
	path := s.path(key)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, time.Time{}, fmt.Errorf("cache entry %s: %w", key, domain.ErrNotFound)
		}
		return nil, time.Time{}, fmt.Errorf("stat cache entry: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, time.Time{}, fmt.Errorf("cache entry %s: %w", key, domain.ErrNotFound)
		}
		return nil, time.Time{}, fmt.Errorf("read cache entry: %w", err)
	}

	return data, info.ModTime(), nil
}

// Put writes the entry, replacing any previous content. The write goes
// through a temp file and rename so a reader never sees a partial
// entry.
func (s *FileStore) Put(key string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, key+".tmp-*")
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close cache entry: %w", err)
	}

	if err := os.Rename(tmpName, s.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename cache entry: %w", err)
	}
	return nil
}

// Prune removes entries older than the cutoff and returns how many were
// deleted. Unreadable entries are skipped.
func (s *FileStore) Prune(olderThan time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read cache dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(olderThan) {
			if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
