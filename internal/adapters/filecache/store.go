// Package filecache stores cache entries as gzip-compressed JSON files, one
// file per key.
package filecache

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/samirrijal/trailobs/internal/core/domain"
	"github.com/samirrijal/trailobs/internal/core/ports"
)

const ext = ".json.gz"

// Store implements ports.CacheStore on a directory.
type Store struct {
	dir string
}

// New creates the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Keys contain characters that are not portable in file names, so file
// names carry the key in unpadded base64url.
func (s *Store) path(key string) string {
	return filepath.Join(s.dir, base64.RawURLEncoding.EncodeToString([]byte(key))+ext)
}

func keyOf(name string) (string, bool) {
	enc, ok := strings.CutSuffix(name, ext)
	if !ok {
		return "", false
	}
	b, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return "", false
	}
	return string(b), true
}

func (s *Store) Get(_ context.Context, key string) (ports.CacheEntry, error) {
	f, err := os.Open(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return ports.CacheEntry{}, domain.ErrCacheMiss
	}
	if err != nil {
		return ports.CacheEntry{}, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return ports.CacheEntry{}, fmt.Errorf("cache file %s: %w", key, err)
	}
	defer zr.Close()

	var e ports.CacheEntry
	if err := json.NewDecoder(zr).Decode(&e); err != nil {
		return ports.CacheEntry{}, fmt.Errorf("cache file %s: %w", key, err)
	}
	return e, nil
}

// Set writes to a temporary file in the same directory and renames it into
// place, so readers never see a partial entry.
func (s *Store) Set(_ context.Context, key string, e ports.CacheEntry) (err error) {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	zw := gzip.NewWriter(tmp)
	if err = json.NewEncoder(zw).Encode(e); err != nil {
		return err
	}
	if err = zw.Close(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	// mtime mirrors CapturedAt so Purge does not have to decompress
	if err = os.Chtimes(tmp.Name(), e.CapturedAt, e.CapturedAt); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path(key))
}

func (s *Store) Purge(_ context.Context, prefix string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		key, ok := keyOf(de.Name())
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, de.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Ping checks that the directory is still there and writable.
func (s *Store) Ping(context.Context) error {
	f, err := os.CreateTemp(s.dir, ".ping-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func (s *Store) Close() error { return nil }

var _ ports.CacheStore = (*Store)(nil)
