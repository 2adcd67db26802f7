package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hermesbot/go-alert-service/pkg/notification"
)

// Registry implements dispatch.Registry using Google Cloud Firestore.
type Registry struct {
	client     *firestore.Client
	collection string
}

func NewRegistry(client *firestore.Client, collection string) *Registry {
	return &Registry{client: client, collection: collection}
}

// subscriptionRecord is the internal DB representation.
type subscriptionRecord struct {
	Endpoint  string            `firestore:"endpoint"`
	Keys      notification.Keys `firestore:"keys"`
	SellerID  string            `firestore:"seller_id,omitempty"`
	CreatedAt time.Time         `firestore:"created_at"`
	UpdatedAt time.Time         `firestore:"updated_at"`
}

func (r *Registry) Add(ctx context.Context, sub notification.PushSubscription) error {
	// The endpoint URL is the unique identifier; hash it for a safe doc ID.
	ref := r.subscriptionRef(sub.Endpoint)
	now := time.Now().UTC()

	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		createdAt, err := creationTime(snap, err, now)
		if err != nil {
			return err
		}

		return tx.Set(ref, subscriptionRecord{
			Endpoint:  sub.Endpoint,
			Keys:      sub.Keys,
			SellerID:  sub.SellerID,
			CreatedAt: createdAt,
			UpdatedAt: now,
		})
	})
}

// creationTime keeps an existing record's created_at. Only NotFound means a
// new record; any other read error is returned so the transaction retries.
func creationTime(snap *firestore.DocumentSnapshot, getErr error, now time.Time) (time.Time, error) {
	if getErr != nil {
		if status.Code(getErr) == codes.NotFound {
			return now, nil
		}
		return time.Time{}, fmt.Errorf("failed to read subscription: %w", getErr)
	}
	var existing subscriptionRecord
	if err := snap.DataTo(&existing); err == nil && !existing.CreatedAt.IsZero() {
		return existing.CreatedAt, nil
	}
	return now, nil
}

func (r *Registry) List(ctx context.Context) ([]notification.PushSubscription, error) {
	iter := r.client.Collection(r.collection).Documents(ctx)
	defer iter.Stop()

	subs := make([]notification.PushSubscription, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}

		var record subscriptionRecord
		if err := doc.DataTo(&record); err != nil {
			// Skip corrupt rows rather than blocking every alert.
			continue
		}
		subs = append(subs, notification.PushSubscription{
			Endpoint:  record.Endpoint,
			Keys:      record.Keys,
			SellerID:  record.SellerID,
			CreatedAt: record.CreatedAt,
			UpdatedAt: record.UpdatedAt,
		})
	}
	return subs, nil
}

func (r *Registry) Remove(ctx context.Context, endpoint string) error {
	if _, err := r.subscriptionRef(endpoint).Delete(ctx); err != nil {
		return fmt.Errorf("firestore delete failed: %w", err)
	}
	return nil
}

// --- Helpers ---

// subscriptionRef: {collection}/{endpointHash}
func (r *Registry) subscriptionRef(endpoint string) *firestore.DocumentRef {
	return r.client.Collection(r.collection).Doc(hashEndpoint(endpoint))
}

func hashEndpoint(endpoint string) string {
	sum := sha256.Sum256([]byte(endpoint))
	return hex.EncodeToString(sum[:])
}
