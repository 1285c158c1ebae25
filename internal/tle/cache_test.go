package tle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestCache(t *testing.T, url string, maxAgeDays int) *Cache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tle_cache.json")
	return NewCache(url, path, maxAgeDays, testLogger())
}

func writeCacheFile(t *testing.T, c *Cache, fetchedAt time.Time, data string) {
	t.Helper()
	b, err := json.Marshal(cacheEntry{Timestamp: fetchedAt, Data: data})
	if err != nil {
		t.Fatalf("marshal cache entry: %v", err)
	}
	if err := os.WriteFile(c.path, b, 0o644); err != nil {
		t.Fatalf("write cache file: %v", err)
	}
}

func TestFetchElementsFromNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, validTLE())
	}))
	defer srv.Close()

	c := newTestCache(t, srv.URL, 7)

	set, err := c.FetchElements(context.Background())
	if err != nil {
		t.Fatalf("FetchElements failed: %v", err)
	}
	if len(set) != 1 || set[0].NoradID != 25544 {
		t.Fatalf("unexpected element set: %+v", set)
	}

	// A successful fetch must leave a usable cache entry behind.
	b, err := os.ReadFile(c.path)
	if err != nil {
		t.Fatalf("cache file not written: %v", err)
	}
	var entry cacheEntry
	if err := json.Unmarshal(b, &entry); err != nil {
		t.Fatalf("cache file not valid JSON: %v", err)
	}
	if entry.Data != validTLE() {
		t.Error("cached data does not match fetched data")
	}
	if entry.Timestamp.IsZero() {
		t.Error("cache timestamp is zero")
	}
}

func TestFetchElementsFallsBackToFreshCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestCache(t, srv.URL, 7)
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	var fallbacks int
	c.OnFallback = func() { fallbacks++ }

	// Entry fetched three days ago, inside the seven day limit.
	writeCacheFile(t, c, now.Add(-3*24*time.Hour), validTLE())

	set, err := c.FetchElements(context.Background())
	if err != nil {
		t.Fatalf("FetchElements should have used the cache: %v", err)
	}
	if len(set) != 1 {
		t.Fatalf("got %d elements from cache, want 1", len(set))
	}
	if fallbacks != 1 {
		t.Errorf("fallback hook fired %d times, want 1", fallbacks)
	}
}

func TestFetchElementsNoFallbackHookOnNetworkSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, validTLE())
	}))
	defer srv.Close()

	c := newTestCache(t, srv.URL, 7)
	var fallbacks int
	c.OnFallback = func() { fallbacks++ }

	if _, err := c.FetchElements(context.Background()); err != nil {
		t.Fatalf("FetchElements failed: %v", err)
	}
	if fallbacks != 0 {
		t.Errorf("fallback hook fired %d times on a network success, want 0", fallbacks)
	}
}

func TestFetchElementsRejectsStaleCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestCache(t, srv.URL, 7)
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	// Ten days old against a seven day limit: hard failure, never stale data.
	writeCacheFile(t, c, now.Add(-10*24*time.Hour), validTLE())

	_, err := c.FetchElements(context.Background())
	if !errors.Is(err, ErrCacheStale) {
		t.Errorf("error = %v, want ErrCacheStale", err)
	}
}

func TestFetchElementsNoCacheOnDisk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestCache(t, srv.URL, 7)

	_, err := c.FetchElements(context.Background())
	if !errors.Is(err, ErrCacheMissing) {
		t.Errorf("error = %v, want ErrCacheMissing", err)
	}
}

func TestFetchElementsRejectsCorruptCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestCache(t, srv.URL, 7)
	if err := os.WriteFile(c.path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt cache: %v", err)
	}

	_, err := c.FetchElements(context.Background())
	if !errors.Is(err, ErrCacheInvalid) {
		t.Errorf("error = %v, want ErrCacheInvalid", err)
	}
}

func TestFetchElementsEmptyBodyIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	defer srv.Close()

	c := newTestCache(t, srv.URL, 7)
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	writeCacheFile(t, c, now.Add(-time.Hour), validTLE())

	// The empty 200 must be treated like any other fetch failure and fall
	// back to the cache.
	set, err := c.FetchElements(context.Background())
	if err != nil {
		t.Fatalf("FetchElements failed: %v", err)
	}
	if len(set) != 1 {
		t.Fatalf("got %d elements, want 1 from cache", len(set))
	}
}
