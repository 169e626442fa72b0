// Package cache keeps the output of external build tools between runs.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// DefaultTTL is the default cache time-to-live
const DefaultTTL = 24 * time.Hour

const (
	entrySuffix = ".out"
	tempPrefix  = "tmp-"
)

// Cache stores tool output in a flat directory, one file per key. Entries
// are written to a temporary file and renamed, so concurrent extractions
// never observe a partial entry.
type Cache struct {
	fs  billy.Filesystem
	ttl time.Duration
	now func() time.Time
}

// New creates a cache under the user cache directory for appName
func New(appName string, ttl time.Duration) (*Cache, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return nil, err
	}
	return NewInDir(filepath.Join(dir, appName), ttl)
}

// NewInDir creates a cache rooted at dir on the local disk.
func NewInDir(dir string, ttl time.Duration) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return NewFS(osfs.New(dir), ttl), nil
}

// NewFS creates a cache stored in fs. A non-positive ttl selects DefaultTTL.
func NewFS(fs billy.Filesystem, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{fs: fs, ttl: ttl, now: time.Now}
}

// TTL is the lifetime of an entry.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Key derives a cache key from the content of every part. Parts are length
// prefixed so that ("ab", "c") and ("a", "bc") differ.
func Key(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		var n [8]byte
		binary.LittleEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func entryName(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:16]) + entrySuffix
}

// Get retrieves data from cache if it exists and is not expired
func (c *Cache) Get(key string) ([]byte, bool) {
	name := entryName(key)
	info, err := c.fs.Stat(name)
	if err != nil {
		return nil, false
	}
	if c.now().Sub(info.ModTime()) > c.ttl {
		return nil, false
	}
	data, err := util.ReadFile(c.fs, name)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set stores data under key, replacing any previous entry.
func (c *Cache) Set(key string, data []byte) error {
	tmp, err := util.TempFile(c.fs, ".", tempPrefix)
	if err != nil {
		return fmt.Errorf("creating cache entry: %w", err)
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = c.fs.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := c.fs.Rename(tmp.Name(), entryName(key)); err != nil {
		_ = c.fs.Remove(tmp.Name())
		return fmt.Errorf("storing cache entry: %w", err)
	}
	return nil
}

// Clear removes all cached entries, including temporary files abandoned by
// an interrupted Set.
func (c *Cache) Clear() error {
	entries, err := c.fs.ReadDir(".")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	var errs []error
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, entrySuffix) || strings.HasPrefix(name, tempPrefix)) {
			continue
		}
		if err := c.fs.Remove(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
