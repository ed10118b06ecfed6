package session

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// LoginFunc acquires a fresh bearer token.
type LoginFunc func(ctx context.Context) (string, error)

// TokenCache holds at most one bearer token. The token never expires; it is
// replaced only by Set or by a login run through Ensure.
type TokenCache struct {
	mu    sync.RWMutex
	token string
	set   bool

	group singleflight.Group
}

// NewTokenCache returns an empty cache.
func NewTokenCache() *TokenCache {
	return &TokenCache{}
}

// Get returns the cached token, if any.
func (c *TokenCache) Get() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.set
}

// Set overwrites the cached token.
func (c *TokenCache) Set(token string) {
	c.mu.Lock()
	c.token = token
	c.set = true
	c.mu.Unlock()
}

// Ensure returns the cached token or runs login to obtain one. Concurrent callers
// arriving while a login is in flight wait for that login and share its result.
// The login runs detached from any single caller's cancellation; each caller
// stops waiting when its own ctx is done. login is responsible for storing the
// token; Ensure only reads it back.
func (c *TokenCache) Ensure(ctx context.Context, login LoginFunc) (string, error) {
	if tok, ok := c.Get(); ok {
		return tok, nil
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	loginCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan("login", func() (any, error) {
		// A caller that lost the race may enter after the winner has finished.
		if tok, ok := c.Get(); ok {
			return tok, nil
		}
		return login(loginCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
