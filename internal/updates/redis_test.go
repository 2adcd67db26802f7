//go:build integration

package updates_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hermesbot/go-alert-service/internal/updates"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisQueue(t *testing.T) (*updates.RedisQueue, *redis.Client, string) {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())

	// A fresh prefix per run keeps parallel runs apart.
	prefix := "test:" + uuid.NewString()
	return updates.NewRedisQueue(rdb, prefix), rdb, prefix
}

func TestRedisQueue_Integration(t *testing.T) {
	ctx := context.Background()
	q, rdb, prefix := setupRedisQueue(t)

	t.Run("Upsert keeps first-insertion order", func(t *testing.T) {
		for _, p := range []string{"a", "b", "c", "a"} {
			require.NoError(t, q.Enqueue(ctx, "order", p))
		}
		entries, err := q.Get(ctx, "order")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, packIDs(entries))
		assert.Greater(t, entries[0].Revision, entries[2].Revision, "refreshed entry carries the latest revision")
	})

	t.Run("Absent seller reads empty", func(t *testing.T) {
		entries, err := q.Get(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("Clear is idempotent", func(t *testing.T) {
		require.NoError(t, q.Enqueue(ctx, "clear", "p"))
		require.NoError(t, q.Clear(ctx, "clear"))
		require.NoError(t, q.Clear(ctx, "clear"))
		entries, err := q.Get(ctx, "clear")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("Snapshot clear keeps refreshed and new entries", func(t *testing.T) {
		require.NoError(t, q.Enqueue(ctx, "snap", "p1"))
		require.NoError(t, q.Enqueue(ctx, "snap", "p2"))
		snapshot, err := q.Get(ctx, "snap")
		require.NoError(t, err)

		require.NoError(t, q.Enqueue(ctx, "snap", "p2"))
		require.NoError(t, q.Enqueue(ctx, "snap", "p3"))
		require.NoError(t, q.ClearSnapshot(ctx, "snap", snapshot))

		entries, err := q.Get(ctx, "snap")
		require.NoError(t, err)
		assert.Equal(t, []string{"p2", "p3"}, packIDs(entries))
	})

	t.Run("Seller keys expire after a clear", func(t *testing.T) {
		require.NoError(t, q.Enqueue(ctx, "idle", "p"))
		require.NoError(t, q.Clear(ctx, "idle"))

		seqKey := prefix + ":{idle}:seq"
		ttl, err := rdb.PTTL(ctx, seqKey).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 24*time.Hour, "counter is kept but bounded")

		// Revisions keep increasing across a clear.
		require.NoError(t, q.Enqueue(ctx, "idle", "p"))
		entries, err := q.Get(ctx, "idle")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, uint64(2), entries[0].Revision)
	})
}
