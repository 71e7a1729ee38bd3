package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *memCache) Get(_ context.Context, uid string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	b, ok := c.entries[uid]
	return b, ok, nil
}

func (c *memCache) Set(_ context.Context, uid string, payload []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[uid] = payload
	c.ttls[uid] = ttl
	return nil
}

// enkaStub serves the given statuses in order, repeating the last one, and counts hits.
func enkaStub(t *testing.T, body string, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(hits.Add(1))
		if r.Header.Get("User-Agent") != "test-agent" || r.Header.Get("Accept") != "application/json" {
			t.Errorf("headers = %v", r.Header)
		}
		if r.URL.Path != "/uid/700000001/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		status := statuses[len(statuses)-1]
		if n <= len(statuses) {
			status = statuses[n-1]
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			w.Write([]byte(body))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testEnkaConfig(baseURL string, attempts int) EnkaConfig {
	return EnkaConfig{
		BaseURL:     baseURL,
		UserAgent:   "test-agent",
		Timeout:     5 * time.Second,
		MaxAttempts: attempts,
		Backoff:     time.Millisecond,
	}
}

func TestNormalizeUID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"700000001", "700000001", false},
		{"  700000001\n", "700000001", false},
		{"1234567890", "1234567890", false},
		{"12345678", "", true},
		{"", "", true},
		{"70000000a", "", true},
		{"７00000001", "", true},
		{"-700000001", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeUID(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("NormalizeUID(%q) = %q, %v", tt.in, got, err)
		}
		if err != nil && !errors.Is(err, ErrInvalidUID) {
			t.Errorf("NormalizeUID(%q) err = %v, want ErrInvalidUID", tt.in, err)
		}
	}
}

func TestFetchUIDInvalidSendsNoRequest(t *testing.T) {
	srv, hits := enkaStub(t, "{}", http.StatusOK)
	c := NewEnkaClient(testEnkaConfig(srv.URL, 1), nil, time.Minute)

	if _, err := c.FetchUID(context.Background(), "1234"); !errors.Is(err, ErrInvalidUID) {
		t.Errorf("err = %v, want ErrInvalidUID", err)
	}
	if hits.Load() != 0 {
		t.Errorf("hits = %d, want 0", hits.Load())
	}
}

func TestFetchUIDStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, ErrWrongUIDFormat},
		{http.StatusNotFound, ErrPlayerNotFound},
		{http.StatusFailedDependency, ErrGameMaintenance},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusInternalServerError, ErrServerError},
		{http.StatusServiceUnavailable, ErrServerError},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv, _ := enkaStub(t, "", tt.status)
			c := NewEnkaClient(testEnkaConfig(srv.URL, 1), nil, time.Minute)
			if _, err := c.FetchUID(context.Background(), "700000001"); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	srv, _ := enkaStub(t, "", http.StatusTeapot)
	c := NewEnkaClient(testEnkaConfig(srv.URL, 1), nil, time.Minute)
	_, err := c.FetchUID(context.Background(), "700000001")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusTeapot {
		t.Errorf("err = %v, want StatusError 418", err)
	}
}

func TestFetchUIDRetries(t *testing.T) {
	srv, hits := enkaStub(t, `{"ttl": 30}`, http.StatusServiceUnavailable, http.StatusTooManyRequests, http.StatusOK)
	c := NewEnkaClient(testEnkaConfig(srv.URL, 3), nil, time.Minute)

	body, err := c.FetchUID(context.Background(), "700000001")
	if err != nil {
		t.Fatalf("FetchUID: %v", err)
	}
	if string(body) != `{"ttl": 30}` || hits.Load() != 3 {
		t.Errorf("body %q after %d hits", body, hits.Load())
	}
}

func TestFetchUIDRetriesExhausted(t *testing.T) {
	srv, hits := enkaStub(t, "", http.StatusTooManyRequests)
	c := NewEnkaClient(testEnkaConfig(srv.URL, 2), nil, time.Minute)

	if _, err := c.FetchUID(context.Background(), "700000001"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want 2", hits.Load())
	}
}

func TestFetchUIDNotFoundIsNotRetried(t *testing.T) {
	srv, hits := enkaStub(t, "", http.StatusNotFound)
	c := NewEnkaClient(testEnkaConfig(srv.URL, 5), nil, time.Minute)

	c.FetchUID(context.Background(), "700000001")
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
}

func TestFetchUIDCancelledDuringBackoff(t *testing.T) {
	srv, _ := enkaStub(t, "", http.StatusServiceUnavailable)
	cfg := testEnkaConfig(srv.URL, 5)
	cfg.Backoff = time.Hour
	c := NewEnkaClient(cfg, nil, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.FetchUID(ctx, "700000001"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestFetchUIDCache(t *testing.T) {
	srv, hits := enkaStub(t, `{"ttl": 45, "playerInfo": {}}`, http.StatusOK)
	cache := newMemCache()
	c := NewEnkaClient(testEnkaConfig(srv.URL, 1), cache, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := c.FetchUID(context.Background(), "700000001"); err != nil {
			t.Fatalf("FetchUID #%d: %v", i, err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
	if ttl := cache.ttls["700000001"]; ttl != 45*time.Second {
		t.Errorf("cached ttl = %v, want payload ttl 45s", ttl)
	}
}

func TestFetchUIDCacheDefaultTTLAndErrors(t *testing.T) {
	srv, hits := enkaStub(t, `{"playerInfo": {}}`, http.StatusOK)
	cache := newMemCache()
	c := NewEnkaClient(testEnkaConfig(srv.URL, 1), cache, 90*time.Second)

	if _, err := c.FetchUID(context.Background(), "700000001"); err != nil {
		t.Fatal(err)
	}
	if ttl := cache.ttls["700000001"]; ttl != 90*time.Second {
		t.Errorf("cached ttl = %v, want default 90s", ttl)
	}

	// A broken cache degrades to a live fetch.
	cache.getErr = errors.New("connection refused")
	if _, err := c.FetchUID(context.Background(), "700000001"); err != nil {
		t.Fatalf("FetchUID with broken cache: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want 2", hits.Load())
	}
}

func TestFetchUIDMalformedBodyNotCached(t *testing.T) {
	srv, hits := enkaStub(t, `<html>maintenance</html>`, http.StatusOK)
	cache := newMemCache()
	c := NewEnkaClient(testEnkaConfig(srv.URL, 1), cache, time.Minute)

	for i := 0; i < 2; i++ {
		body, err := c.FetchUID(context.Background(), "700000001")
		if err != nil {
			t.Fatalf("FetchUID #%d: %v", i, err)
		}
		if string(body) != `<html>maintenance</html>` {
			t.Errorf("body = %q", body)
		}
	}
	if len(cache.entries) != 0 {
		t.Errorf("cache = %v, want nothing stored", cache.entries)
	}
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want 2", hits.Load())
	}
}
