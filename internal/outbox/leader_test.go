package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func leaseClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLeaseMutualExclusion(t *testing.T) {
	_, client := leaseClient(t)
	ctx := context.Background()

	first := NewLease(client, time.Minute)
	second := NewLease(client, time.Minute)

	held, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, held)

	held, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, held)
}

func TestLeaseRenewal(t *testing.T) {
	_, client := leaseClient(t)
	ctx := context.Background()

	lease := NewLease(client, time.Minute)
	for i := 0; i < 3; i++ {
		held, err := lease.Acquire(ctx)
		require.NoError(t, err)
		require.True(t, held)
	}
}

func TestLeaseReleaseHandsOver(t *testing.T) {
	_, client := leaseClient(t)
	ctx := context.Background()

	first := NewLease(client, time.Minute)
	second := NewLease(client, time.Minute)

	held, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, held)

	require.NoError(t, first.Release(ctx))

	held, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, held)
}

func TestLeaseReleaseOnlyByOwner(t *testing.T) {
	_, client := leaseClient(t)
	ctx := context.Background()

	first := NewLease(client, time.Minute)
	second := NewLease(client, time.Minute)

	held, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, held)

	// A non-owner release must not evict the current holder.
	require.NoError(t, second.Release(ctx))

	held, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, held)
}

func TestLeaseExpiryAllowsTakeover(t *testing.T) {
	mr, client := leaseClient(t)
	ctx := context.Background()

	first := NewLease(client, time.Second)
	second := NewLease(client, time.Second)

	held, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, held)

	mr.FastForward(2 * time.Second)

	held, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, held)
}
