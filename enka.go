package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	minUIDLength   = 9
	maxPayloadSize = 16 << 20
)

var (
	ErrInvalidUID      = errors.New("uid must be a number of at least 9 digits")
	ErrWrongUIDFormat  = errors.New("wrong uid format")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrGameMaintenance = errors.New("game is under maintenance")
	ErrRateLimited     = errors.New("too many requests")
	ErrServerError     = errors.New("enka server error")
)

// StatusError is returned for HTTP statuses without a dedicated error.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// EnkaClient fetches raw account payloads from the Enka.Network API.
type EnkaClient struct {
	cfg        EnkaConfig
	defaultTTL time.Duration
	http       *http.Client
	cache      PayloadCache
	log        zerolog.Logger
}

// NewEnkaClient creates a client. A nil cache disables caching; defaultTTL applies when a
// payload carries no ttl of its own.
func NewEnkaClient(cfg EnkaConfig, cache PayloadCache, defaultTTL time.Duration) *EnkaClient {
	if cache == nil {
		cache = noopCache{}
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &EnkaClient{
		cfg:        cfg,
		defaultTTL: defaultTTL,
		http:       &http.Client{Timeout: cfg.Timeout},
		cache:      cache,
		log:        moduleLogger("enka"),
	}
}

// NormalizeUID trims uid and checks that it is all ASCII digits and long enough.
func NormalizeUID(uid string) (string, error) {
	uid = strings.TrimSpace(uid)
	if len(uid) < minUIDLength {
		return "", ErrInvalidUID
	}
	for i := 0; i < len(uid); i++ {
		if uid[i] < '0' || uid[i] > '9' {
			return "", ErrInvalidUID
		}
	}
	return uid, nil
}

// FetchUID returns the raw payload for uid, from the cache when present. Rate limiting
// and server errors are retried with exponential backoff.
func (c *EnkaClient) FetchUID(ctx context.Context, uid string) ([]byte, error) {
	uid, err := NormalizeUID(uid)
	if err != nil {
		return nil, err
	}

	if body, ok := c.cached(ctx, uid); ok {
		return body, nil
	}

	backoff := c.cfg.Backoff
	for attempt := 1; ; attempt++ {
		body, err := c.fetchOnce(ctx, uid)
		if err == nil {
			if isObject(body) {
				c.store(ctx, uid, body)
			} else {
				c.log.Warn().Str("uid", uid).Msg("response is not a JSON object, not caching")
			}
			return body, nil
		}
		if !retryable(err) || attempt >= c.cfg.MaxAttempts {
			return nil, fmt.Errorf("fetch uid %s: %w", uid, err)
		}

		c.log.Warn().Err(err).Str("uid", uid).Int("attempt", attempt).Dur("backoff", backoff).Msg("retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (c *EnkaClient) fetchOnce(ctx context.Context, uid string) ([]byte, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/uid/" + uid + "/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observeEnkaRequest(0, time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()
	observeEnkaRequest(resp.StatusCode, time.Since(start))

	if err := statusError(resp.StatusCode); err != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxPayloadSize))
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	c.log.Debug().Str("uid", uid).Int("bytes", len(body)).Dur("elapsed", time.Since(start)).Msg("fetched")
	return body, nil
}

func isObject(body []byte) bool {
	return gjson.ValidBytes(body) && gjson.ParseBytes(body).IsObject()
}

func statusError(code int) error {
	switch code {
	case http.StatusOK:
		return nil
	case http.StatusBadRequest:
		return ErrWrongUIDFormat
	case http.StatusNotFound:
		return ErrPlayerNotFound
	case http.StatusFailedDependency:
		return ErrGameMaintenance
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		return ErrServerError
	}
	return &StatusError{Code: code}
}

func retryable(err error) bool {
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServerError) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 500
}

// ── Cache ──

func (c *EnkaClient) cached(ctx context.Context, uid string) ([]byte, bool) {
	body, ok, err := c.cache.Get(ctx, uid)
	switch {
	case err != nil:
		c.log.Warn().Err(err).Str("uid", uid).Msg("cache lookup failed")
		observeCacheLookup("error")
		return nil, false
	case !ok:
		observeCacheLookup("miss")
		return nil, false
	}
	observeCacheLookup("hit")
	return body, true
}

func (c *EnkaClient) store(ctx context.Context, uid string, body []byte) {
	ttl := c.defaultTTL
	if secs := gjson.GetBytes(body, "ttl").Int(); secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	if ttl <= 0 {
		return
	}
	if err := c.cache.Set(ctx, uid, body, ttl); err != nil {
		c.log.Warn().Err(err).Str("uid", uid).Msg("cache store failed")
	}
}
