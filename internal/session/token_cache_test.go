package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCache_GetSet(t *testing.T) {
	c := NewTokenCache()

	_, ok := c.Get()
	assert.False(t, ok)

	c.Set("T1")
	tok, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, "T1", tok)

	c.Set("T2")
	tok, _ = c.Get()
	assert.Equal(t, "T2", tok, "Set overwrites")
}

func TestTokenCache_EnsureUsesCachedToken(t *testing.T) {
	c := NewTokenCache()
	c.Set("cached")

	tok, err := c.Ensure(context.Background(), func(context.Context) (string, error) {
		t.Fatal("login must not run when a token is cached")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "cached", tok)
}

func TestTokenCache_EnsureSingleFlight(t *testing.T) {
	c := NewTokenCache()
	var logins atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})

	login := func(context.Context) (string, error) {
		if logins.Add(1) == 1 {
			close(entered)
		}
		<-release
		c.Set("shared")
		return "shared", nil
	}

	const callers = 16
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := c.Ensure(context.Background(), login)
			assert.NoError(t, err)
			results[i] = tok
		}(i)
	}

	<-entered
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, logins.Load(), "concurrent first use must share one login")
	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
}

func TestTokenCache_EnsurePropagatesLoginError(t *testing.T) {
	c := NewTokenCache()
	boom := errors.New("boom")

	_, err := c.Ensure(context.Background(), func(context.Context) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)

	_, ok := c.Get()
	assert.False(t, ok, "failed login leaves the slot empty")

	tok, err := c.Ensure(context.Background(), func(context.Context) (string, error) {
		c.Set("later")
		return "later", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "later", tok, "a later call retries the login")
}

func TestTokenCache_EnsureCancelledCallerDoesNotFailOthers(t *testing.T) {
	c := NewTokenCache()
	entered := make(chan struct{})
	release := make(chan struct{})
	var logins atomic.Int32

	login := func(ctx context.Context) (string, error) {
		logins.Add(1)
		close(entered)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-release:
		}
		c.Set("survivor")
		return "survivor", nil
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Ensure(ctxA, login)
		errA <- err
	}()
	<-entered

	type result struct {
		tok string
		err error
	}
	resB := make(chan result, 1)
	go func() {
		tok, err := c.Ensure(context.Background(), login)
		resB <- result{tok, err}
	}()

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled, "a cancelled caller stops waiting on its own")
	case <-time.After(time.Second):
		t.Fatal("cancelled caller still blocked on the shared login")
	}

	close(release)
	select {
	case r := <-resB:
		require.NoError(t, r.err)
		assert.Equal(t, "survivor", r.tok)
	case <-time.After(time.Second):
		t.Fatal("live caller never received the token")
	}
	assert.EqualValues(t, 1, logins.Load())
	tok, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, "survivor", tok)
}
