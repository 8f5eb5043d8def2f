package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, time.Minute)
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "analytics:cost:2026-01")
	require.ErrorIs(t, err, ErrMiss)

	require.NoError(t, store.Set(ctx, "analytics:cost:2026-01", []byte(`{"pct":31.4}`)))

	got, err := store.Get(ctx, "analytics:cost:2026-01")
	require.NoError(t, err)
	require.JSONEq(t, `{"pct":31.4}`, string(got))
}

func TestStoreInvalidate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1")))
	require.NoError(t, store.Set(ctx, "b", []byte("2")))
	require.NoError(t, store.Invalidate(ctx, "a", "b"))

	_, err := store.Get(ctx, "a")
	require.ErrorIs(t, err, ErrMiss)
}

func TestNilStoreIsInert(t *testing.T) {
	var store *Store
	ctx := context.Background()
	_, err := store.Get(ctx, "k")
	require.ErrorIs(t, err, ErrMiss)
	require.NoError(t, store.Set(ctx, "k", nil))
	require.NoError(t, store.Invalidate(ctx, "k"))
}
