// Package cache stores fetched pages on disk, keyed by URL.
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// EnvDir overrides the cache location.
const EnvDir = "SHAMELA_CACHE_DIR"

const defaultDir = ".cache/shamela_books"

// ErrMiss is returned by Get when nothing is cached for a URL.
var ErrMiss = errors.New("cache miss")

var encMode cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	encMode = em
}

// Entry is the metadata sidecar stored next to each cached body.
type Entry struct {
	URL         string    `cbor:"1,keyasint"`
	ContentType string    `cbor:"2,keyasint,omitempty"`
	FetchedAt   time.Time `cbor:"3,keyasint"`
	Size        int       `cbor:"4,keyasint"`
}

// Store is a directory of cached responses grouped by kind ("html", "image").
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	dir string
	now func() time.Time
}

// Dir returns the cache directory from the environment or the default
// relative to the working directory.
func Dir() string {
	if d := os.Getenv(EnvDir); d != "" {
		return d
	}
	return defaultDir
}

// New returns a store rooted at dir, or at Dir() when dir is empty.
func New(dir string) *Store {
	if dir == "" {
		dir = Dir()
	}
	return &Store{dir: dir, now: time.Now}
}

// Root returns the directory the store writes to.
func (s *Store) Root() string {
	return s.dir
}

func key(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

func (s *Store) paths(kind, url string) (data, meta string) {
	k := key(url)
	base := filepath.Join(s.dir, kind, k[:2], k)
	return base + ".bin", base + ".cbor"
}

// Get returns the cached body for url and its sidecar. A missing sidecar
// yields an Entry with only URL and Size set.
func (s *Store) Get(kind, url string) ([]byte, Entry, error) {
	dataPath, metaPath := s.paths(kind, url)
	data, err := os.ReadFile(dataPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, Entry{}, ErrMiss
	}
	if err != nil {
		return nil, Entry{}, fmt.Errorf("failed to read cache entry: %w", err)
	}

	entry := Entry{URL: url, Size: len(data)}
	raw, err := os.ReadFile(metaPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return data, entry, nil
	case err != nil:
		return nil, Entry{}, fmt.Errorf("failed to read cache metadata: %w", err)
	}
	if err := cbor.Unmarshal(raw, &entry); err != nil {
		return nil, Entry{}, fmt.Errorf("failed to decode cache metadata: %w", err)
	}
	if entry.URL != url {
		return nil, Entry{}, ErrMiss
	}
	return data, entry, nil
}

// Put stores data for url. Files are written to a temporary name first so a
// concurrent reader never sees a partial body.
func (s *Store) Put(kind, url string, data []byte, contentType string) error {
	dataPath, metaPath := s.paths(kind, url)
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	meta, err := encMode.Marshal(Entry{
		URL:         url,
		ContentType: contentType,
		FetchedAt:   s.now().UTC(),
		Size:        len(data),
	})
	if err != nil {
		return fmt.Errorf("failed to encode cache metadata: %w", err)
	}
	if err := writeFile(dataPath, data); err != nil {
		return err
	}
	return writeFile(metaPath, meta)
}

func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to store cache file: %w", err)
	}
	return nil
}
