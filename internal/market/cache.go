package market

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gemex-ace/internal/store"
	"gemex-ace/internal/types"
)

// BarCache stores fetched bar series on disk keyed by request.
type BarCache struct {
	dir string
	ttl time.Duration
	mu  sync.RWMutex
	now func() time.Time
}

type cacheEntry struct {
	Key       string         `json:"key"`
	FetchedAt time.Time      `json:"fetched_at"`
	Bars      []types.Candle `json:"bars"`
}

// NewBarCache returns nil when dir is empty, which disables caching.
func NewBarCache(dir string, ttl time.Duration) *BarCache {
	if dir == "" {
		return nil
	}
	return &BarCache{dir: dir, ttl: ttl, now: time.Now}
}

func CacheKey(parts ...string) string {
	return strings.Join(parts, "|")
}

func (c *BarCache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:16])+".json")
}

// Get returns cached bars that are younger than the TTL.
func (c *BarCache) Get(key string) ([]types.Candle, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var entry cacheEntry
	if err := store.ReadJSON(c.path(key), &entry); err != nil {
		return nil, false
	}
	if entry.Key != key || c.now().Sub(entry.FetchedAt) > c.ttl {
		return nil, false
	}
	return entry.Bars, true
}

func (c *BarCache) Set(key string, bars []types.Candle) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return store.WriteJSON(c.path(key), cacheEntry{Key: key, FetchedAt: c.now(), Bars: bars})
}

// CleanupExpired removes entries older than the TTL.
func (c *BarCache) CleanupExpired() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || e.IsDir() {
			continue
		}
		if c.now().Sub(info.ModTime()) > c.ttl {
			os.Remove(filepath.Join(c.dir, e.Name()))
		}
	}
	return nil
}

// GetOrFetch serves from cache or calls fetch and stores the result. Cache
// write failures are ignored.
func (c *BarCache) GetOrFetch(key string, fetch func() ([]types.Candle, error)) ([]types.Candle, error) {
	if bars, ok := c.Get(key); ok {
		return bars, nil
	}
	bars, err := fetch()
	if err != nil {
		return nil, err
	}
	_ = c.Set(key, bars)
	return bars, nil
}

