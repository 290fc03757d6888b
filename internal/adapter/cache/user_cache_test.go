package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	domain "user-directory/internal/domain/user"
)

func setupCache(t *testing.T) UserCache {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisUserCache(client, 5*time.Minute, zaptest.NewLogger(t))
}

func TestRedisUserCache_SetAndGet(t *testing.T) {
	c := setupCache(t)
	ctx := context.Background()

	u := &domain.User{ID: 1, Name: "Ann", Email: "ann@x.com", MobileNumber: "1"}
	require.NoError(t, c.Set(ctx, u))

	got, err := c.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u, got)
}

func TestRedisUserCache_GetMiss(t *testing.T) {
	c := setupCache(t)

	got, err := c.Get(context.Background(), 9999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisUserCache_SetNilUser(t *testing.T) {
	c := setupCache(t)

	err := c.Set(context.Background(), nil)
	assert.Error(t, err)
}

func TestRedisUserCache_Delete(t *testing.T) {
	c := setupCache(t)
	ctx := context.Background()

	u := &domain.User{ID: 1, Name: "Ann", Email: "ann@x.com", MobileNumber: "1"}
	require.NoError(t, c.Set(ctx, u))
	require.NoError(t, c.Delete(ctx, 1))

	got, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisUserCache_DeleteMissingKey(t *testing.T) {
	c := setupCache(t)

	// Deleting a key that was never cached is not an error.
	assert.NoError(t, c.Delete(context.Background(), 9999))
}
