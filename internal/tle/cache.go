package tle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Cache failure modes. All of them fall through to a hard fetch failure;
// the scheduler treats that as "no elements this cycle", never as license
// to use stale data.
var (
	ErrCacheMissing = errors.New("tle: no cached elements on disk")
	ErrCacheInvalid = errors.New("tle: cached elements are corrupt")
	ErrCacheStale   = errors.New("tle: cached elements exceed staleness limit")
)

const fetchTimeout = 15 * time.Second

// cacheEntry is the persisted JSON shape: fetch timestamp plus raw text.
type cacheEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Data      string    `json:"data"`
}

// Cache fetches element sets from a fixed endpoint with a disk fallback
// bounded by a staleness limit.
type Cache struct {
	url    string
	path   string
	maxAge time.Duration
	client *http.Client
	log    *log.Logger

	// OnFallback, when set, is called each time a refresh is served from
	// the disk cache instead of the network.
	OnFallback func()

	now func() time.Time // test hook
}

// NewCache returns a cache that fetches from url and persists raw element
// text at path. Entries older than maxAgeDays are rejected on fallback.
func NewCache(url, path string, maxAgeDays int, logger *log.Logger) *Cache {
	return &Cache{
		url:    url,
		path:   path,
		maxAge: time.Duration(maxAgeDays) * 24 * time.Hour,
		client: &http.Client{Timeout: fetchTimeout},
		log:    logger,
		now:    time.Now,
	}
}

// FetchElements attempts a network fetch and falls back to the disk cache
// on network-class failure. A successful fetch is persisted best-effort;
// failure to persist is logged, not fatal. If both the network and the
// cache are unusable the combined error is returned.
func (c *Cache) FetchElements(ctx context.Context) (ElementSet, error) {
	raw, fetchErr := c.fetchFromNetwork(ctx)
	if fetchErr == nil {
		if err := c.persist(raw); err != nil {
			c.log.Printf("tle: cache write failed: %v", err)
		}
		return Parse(raw)
	}

	c.log.Printf("tle: network fetch failed: %v, trying cache", fetchErr)

	cached, age, cacheErr := c.loadCache()
	if cacheErr != nil {
		return nil, fmt.Errorf("tle: fetch failed (%v) and cache unusable: %w", fetchErr, cacheErr)
	}

	c.log.Printf("tle: using cached elements, age %s", age.Truncate(time.Minute))
	if c.OnFallback != nil {
		c.OnFallback()
	}
	return Parse(cached)
}

// fetchFromNetwork downloads the element text. Timeout is bounded by the
// HTTP client; non-2xx responses and empty bodies are failures.
func (c *Cache) fetchFromNetwork(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tle: fetch returned HTTP %d", resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", errors.New("tle: fetch returned empty body")
	}
	return string(b), nil
}

// loadCache reads and vets the disk entry, returning its raw text and age.
func (c *Cache) loadCache() (string, time.Duration, error) {
	b, err := os.ReadFile(c.path)
	if err != nil {
		return "", 0, ErrCacheMissing
	}
	if len(b) == 0 {
		return "", 0, ErrCacheInvalid
	}

	var entry cacheEntry
	if err := json.Unmarshal(b, &entry); err != nil {
		return "", 0, ErrCacheInvalid
	}
	if entry.Data == "" || entry.Timestamp.IsZero() {
		return "", 0, ErrCacheInvalid
	}

	age := c.now().Sub(entry.Timestamp)
	if age > c.maxAge {
		return "", 0, fmt.Errorf("%w: age %s", ErrCacheStale, age.Truncate(time.Hour))
	}

	return entry.Data, age, nil
}

// persist writes the cache entry atomically via a temp file and rename so
// readers never see a half-written file.
func (c *Cache) persist(raw string) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	b, err := json.Marshal(cacheEntry{Timestamp: c.now().UTC(), Data: raw})
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "tle-*.tmp")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), c.path)
}
