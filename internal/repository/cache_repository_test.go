package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/civic-complaints-api/pkg/errors"
)

func newCacheRepo(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheRepository(client), srv
}

func TestCacheRepositoryRoundTripAndExpiry(t *testing.T) {
	repo, srv := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "analytics:dashboard", map[string]int{"total": 3}, time.Minute))
	var got map[string]int
	require.NoError(t, repo.Get(ctx, "analytics:dashboard", &got))
	assert.Equal(t, 3, got["total"])

	srv.FastForward(2 * time.Minute)
	assert.ErrorIs(t, repo.Get(ctx, "analytics:dashboard", &got), appErrors.ErrCacheMiss)
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	repo, _ := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "analytics:dashboard", 1, time.Minute))
	require.NoError(t, repo.Set(ctx, "analytics:trend:30", 2, time.Minute))
	require.NoError(t, repo.Set(ctx, "other:key", 3, time.Minute))

	n, err := repo.DeleteByPattern(ctx, "analytics:*")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var v int
	assert.NoError(t, repo.Get(ctx, "other:key", &v))
	assert.Equal(t, 3, v)
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil)
	var v int
	assert.ErrorIs(t, repo.Get(context.Background(), "k", &v), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "k", 1, time.Minute))
	n, err := repo.DeleteByPattern(context.Background(), "*")
	assert.NoError(t, err)
	assert.Zero(t, n)
}
