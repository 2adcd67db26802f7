package updates_test

import (
	"context"
	"testing"

	"github.com/hermesbot/go-alert-service/internal/updates"
	"github.com/hermesbot/go-alert-service/pkg/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func packIDs(entries []notification.UpdateEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.PackID)
	}
	return ids
}

func TestMemoryQueue_EnqueueThenGet(t *testing.T) {
	ctx := context.Background()
	q := updates.NewMemoryQueue()

	require.NoError(t, q.Enqueue(ctx, "seller1", "pack42"))

	entries, err := q.Get(ctx, "seller1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "pack42", entries[0].PackID)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestMemoryQueue_IdempotentUpsert(t *testing.T) {
	ctx := context.Background()
	q := updates.NewMemoryQueue()

	require.NoError(t, q.Enqueue(ctx, "s", "p"))
	first, _ := q.Get(ctx, "s")
	require.NoError(t, q.Enqueue(ctx, "s", "p"))
	second, _ := q.Get(ctx, "s")

	require.Len(t, second, 1)
	assert.Equal(t, "p", second[0].PackID)
	assert.False(t, second[0].Timestamp.Before(first[0].Timestamp))
	assert.Greater(t, second[0].Revision, first[0].Revision)
}

func TestMemoryQueue_RefreshKeepsOrder(t *testing.T) {
	ctx := context.Background()
	q := updates.NewMemoryQueue()

	for _, p := range []string{"a", "b", "c", "a"} {
		require.NoError(t, q.Enqueue(ctx, "s", p))
	}

	entries, err := q.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, packIDs(entries))
}

func TestMemoryQueue_SellerIsolation(t *testing.T) {
	ctx := context.Background()
	q := updates.NewMemoryQueue()

	require.NoError(t, q.Enqueue(ctx, "seller1", "pack"))

	other, err := q.Get(ctx, "seller2")
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, q.Clear(ctx, "seller2"))
	mine, _ := q.Get(ctx, "seller1")
	assert.Len(t, mine, 1)
}

func TestMemoryQueue_ClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	q := updates.NewMemoryQueue()

	require.NoError(t, q.Clear(ctx, "nobody"))
	require.NoError(t, q.Clear(ctx, "nobody"))

	entries, err := q.Get(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestMemoryQueue_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	q := updates.NewMemoryQueue()
	require.NoError(t, q.Enqueue(ctx, "s", "p"))

	entries, _ := q.Get(ctx, "s")
	entries[0].PackID = "mutated"

	again, _ := q.Get(ctx, "s")
	assert.Equal(t, "p", again[0].PackID)
}

func TestMemoryQueue_ClearSnapshot(t *testing.T) {
	ctx := context.Background()
	q := updates.NewMemoryQueue()

	require.NoError(t, q.Enqueue(ctx, "s", "p1"))
	require.NoError(t, q.Enqueue(ctx, "s", "p2"))
	snapshot, _ := q.Get(ctx, "s")

	// After the snapshot: p2 is refreshed, p3 is new.
	require.NoError(t, q.Enqueue(ctx, "s", "p2"))
	require.NoError(t, q.Enqueue(ctx, "s", "p3"))

	require.NoError(t, q.ClearSnapshot(ctx, "s", snapshot))

	left, err := q.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3"}, packIDs(left))

	require.NoError(t, q.ClearSnapshot(ctx, "s", nil))
	left, _ = q.Get(ctx, "s")
	assert.Len(t, left, 2)
}
