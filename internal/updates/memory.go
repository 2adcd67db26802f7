// Package updates buffers "pack changed" notices per seller between the
// backend that produces them and the dashboards that poll for them.
package updates

import (
	"context"
	"sync"
	"time"

	"github.com/hermesbot/go-alert-service/pkg/notification"
)

// MemoryQueue keeps pending entries in process memory. Nothing survives a restart.
type MemoryQueue struct {
	mu       sync.Mutex
	sellers  map[string][]notification.UpdateEntry
	revision uint64
	now      func() time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		sellers: make(map[string][]notification.UpdateEntry),
		now:     time.Now,
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, sellerID, packID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.revision++
	now := q.now().UTC()
	entries := q.sellers[sellerID]
	for i := range entries {
		if entries[i].PackID == packID {
			// Refresh in place; position is kept.
			entries[i].Timestamp = now
			entries[i].Revision = q.revision
			return nil
		}
	}
	q.sellers[sellerID] = append(entries, notification.UpdateEntry{
		PackID:    packID,
		Timestamp: now,
		Revision:  q.revision,
	})
	return nil
}

func (q *MemoryQueue) Get(_ context.Context, sellerID string) ([]notification.UpdateEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := q.sellers[sellerID]
	out := make([]notification.UpdateEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (q *MemoryQueue) Clear(_ context.Context, sellerID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.sellers, sellerID)
	return nil
}

func (q *MemoryQueue) ClearSnapshot(_ context.Context, sellerID string, snapshot []notification.UpdateEntry) error {
	if len(snapshot) == 0 {
		return nil
	}
	seen := make(map[string]uint64, len(snapshot))
	for _, e := range snapshot {
		seen[e.PackID] = e.Revision
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	entries := q.sellers[sellerID]
	kept := entries[:0]
	for _, e := range entries {
		if rev, ok := seen[e.PackID]; ok && rev == e.Revision {
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == 0 {
		delete(q.sellers, sellerID)
		return nil
	}
	q.sellers[sellerID] = kept
	return nil
}
