package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheGetMiss(t *testing.T) {
	c := NewMemoryCache[string]()

	_, err := c.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemoryCache[string]()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache[int]()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", 42, -time.Second))

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemoryCache[string]()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	// Deleting an absent key is not an error.
	assert.NoError(t, c.Delete(ctx, "k"))
}

func TestMemoryCacheClose(t *testing.T) {
	c := NewMemoryCache[string]()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, c.Close())

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheGetWithFetch(t *testing.T) {
	c := NewMemoryCache[string]()
	ctx := context.Background()

	calls := 0
	fetch := func(ctx context.Context, key string) (string, error) {
		calls++
		return "fetched:" + key, nil
	}

	got, err := c.GetWithFetch(ctx, "k", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, "fetched:k", got)
	assert.Equal(t, 1, calls)

	// Second read is served from cache.
	got, err = c.GetWithFetch(ctx, "k", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, "fetched:k", got)
	assert.Equal(t, 1, calls)
}

func TestMemoryCacheGetWithFetchError(t *testing.T) {
	c := NewMemoryCache[string]()
	ctx := context.Background()

	fetchErr := errors.New("backend down")
	_, err := c.GetWithFetch(ctx, "k", time.Minute, func(ctx context.Context, key string) (string, error) {
		return "", fetchErr
	})
	assert.ErrorIs(t, err, fetchErr)

	// Failed fetches are not cached.
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheHealth(t *testing.T) {
	c := NewMemoryCache[string]()
	assert.NoError(t, c.Health(context.Background()))
}
