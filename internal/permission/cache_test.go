package permission

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *ValkeyCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewValkeyCache(client)
}

func TestValkeyCache_GetMiss(t *testing.T) {
	cache := newTestCache(t)
	_, ok, err := cache.Get(context.Background(), "user-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestValkeyCache_SetGetRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	set := NewSet(HasRole("editor"), GetTableData("widgets"), RunQuery("top_widgets"))
	require.NoError(t, cache.Set(ctx, "user-1", set))

	got, ok, err := cache.Get(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, set, got)
}

func TestValkeyCache_Delete(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "user-1", NewSet(UserAdmin)))
	require.NoError(t, cache.Delete(ctx, "user-1"))

	_, ok, err := cache.Get(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestValkeyCache_EmptySetRoundTrips(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "user-1", Set{}))

	got, ok, err := cache.Get(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, got)
}
