package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutGet(t *testing.T) {
	c := NewCache[string](time.Minute)
	c.Put("k", "v")

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestCache_Expiry(t *testing.T) {
	now := time.Now()
	c := NewCache[int](time.Minute)
	c.now = func() time.Time { return now }
	c.Put("k", 42)

	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, ok := c.Get("k")
	assert.False(t, ok, "expired entry must miss")

	c.mu.RLock()
	_, present := c.data["k"]
	c.mu.RUnlock()
	assert.False(t, present, "expired entry must be evicted")
}

func TestCache_Bust(t *testing.T) {
	c := NewCache[string](time.Minute)
	c.Put("k", "v")
	c.Bust("k")
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestStaticProvider(t *testing.T) {
	p := StaticProvider{"dev/qa-suite/jira": {"JIRA_API_TOKEN": "t"}}

	secret, err := p.GetSecret(context.Background(), "dev/qa-suite/jira")
	require.NoError(t, err)
	assert.Equal(t, "t", secret["JIRA_API_TOKEN"])

	secret["JIRA_API_TOKEN"] = "mutated"
	again, _ := p.GetSecret(context.Background(), "dev/qa-suite/jira")
	assert.Equal(t, "t", again["JIRA_API_TOKEN"], "callers get a copy")

	_, err = p.GetSecret(context.Background(), "missing")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "missing", nf.Name)
}
