// --- File: pkg/dispatch/interfaces.go ---
package dispatch

import (
	"context"

	"github.com/hermesbot/go-alert-service/pkg/notification"
)

// Registry defines the contract for the durable store of browser push
// subscriptions. Subscriptions are keyed by endpoint.
type Registry interface {
	// Add stores the subscription, replacing any record with the same endpoint.
	Add(ctx context.Context, sub notification.PushSubscription) error

	// List returns every registered subscription.
	List(ctx context.Context) ([]notification.PushSubscription, error)

	// Remove deletes the subscription with the given endpoint. Removing an
	// unknown endpoint is not an error.
	Remove(ctx context.Context, endpoint string) error
}

// Pusher delivers a single payload to a single browser subscription.
type Pusher interface {
	Push(ctx context.Context, sub notification.PushSubscription, payload notification.Payload) error
}

// UpdateQueue buffers "pack changed" notices per seller.
type UpdateQueue interface {
	// Enqueue upserts the pack into the seller's list, refreshing the
	// timestamp of an existing entry in place.
	Enqueue(ctx context.Context, sellerID, packID string) error

	// Get returns the seller's pending entries in first-insertion order.
	Get(ctx context.Context, sellerID string) ([]notification.UpdateEntry, error)

	// Clear empties the seller's list.
	Clear(ctx context.Context, sellerID string) error

	// ClearSnapshot removes only the entries of snapshot that have not been
	// refreshed since it was taken.
	ClearSnapshot(ctx context.Context, sellerID string, snapshot []notification.UpdateEntry) error
}
