package video

import (
	"context"
	"sync"
	"time"
)

// tokenCache holds the single shared bearer credential for the process.
// The mutex covers the refresh critical section, so concurrent callers
// during a refresh wait for the one in-flight token request instead of
// issuing their own.
type tokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time

	fetch func(ctx context.Context) (string, time.Duration, error)
	now   func() time.Time
}

// expirySlack refreshes slightly early so a token never expires mid-call.
const expirySlack = 30 * time.Second

func newTokenCache(fetch func(ctx context.Context) (string, time.Duration, error)) *tokenCache {
	return &tokenCache{fetch: fetch, now: time.Now}
}

func (c *tokenCache) get(ctx context.Context, forceRefresh bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !forceRefresh && c.token != "" && c.now().Add(expirySlack).Before(c.expiresAt) {
		return c.token, nil
	}

	token, ttl, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	c.expiresAt = c.now().Add(ttl)
	return token, nil
}

// invalidate drops the cached token, but only if it is still the one the
// caller saw fail; a token refreshed by another goroutine survives.
func (c *tokenCache) invalidate(failed string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == failed {
		c.token = ""
		c.expiresAt = time.Time{}
	}
}
