// Package notification contains the public domain models for the alert
// service: browser push subscriptions, the payload delivered to them and the
// per-seller update entries served to polling dashboards.
package notification

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

const (
	// DefaultTitle is used when no title is configured.
	DefaultTitle = "HermesBot"
	// DefaultBody is sent when a dispatch carries no message.
	DefaultBody = "Há conversas aguardando intervenção humana."
)

// ErrInvalidSubscription is returned by Validate for incomplete subscription objects.
var ErrInvalidSubscription = errors.New("invalid push subscription")

// Keys holds the browser-issued encryption material, base64url encoded.
type Keys struct {
	P256dh string `json:"p256dh" firestore:"p256dh"`
	Auth   string `json:"auth" firestore:"auth"`
}

// PushSubscription is one browser's registration for push messages.
// The endpoint is its identity.
type PushSubscription struct {
	Endpoint string `json:"endpoint" firestore:"endpoint"`
	Keys     Keys   `json:"keys" firestore:"keys"`
	// SellerID optionally scopes the browser to one seller's alerts.
	SellerID  string    `json:"seller_id,omitempty" firestore:"seller_id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty" firestore:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty" firestore:"updated_at"`
}

// Validate rejects subscriptions that cannot be used for payload encryption.
func (s PushSubscription) Validate() error {
	if s.Endpoint == "" {
		return fmt.Errorf("%w: missing endpoint", ErrInvalidSubscription)
	}
	u, err := url.Parse(s.Endpoint)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: endpoint is not an absolute url", ErrInvalidSubscription)
	}
	if s.Keys.P256dh == "" || s.Keys.Auth == "" {
		return fmt.Errorf("%w: missing keys", ErrInvalidSubscription)
	}
	return nil
}

// MatchesSeller reports whether an alert for sellerID should reach this browser.
// Unscoped subscriptions receive every alert.
func (s PushSubscription) MatchesSeller(sellerID string) bool {
	return sellerID == "" || s.SellerID == "" || s.SellerID == sellerID
}

// Payload is the JSON document pushed to the service worker.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// NewPayload builds a payload, falling back to the defaults for empty values.
func NewPayload(title, message string) Payload {
	if title == "" {
		title = DefaultTitle
	}
	if message == "" {
		message = DefaultBody
	}
	return Payload{Title: title, Body: message}
}

// UpdateEntry is one pending "pack changed" notice for a seller.
type UpdateEntry struct {
	PackID    string    `json:"pack_id"`
	Timestamp time.Time `json:"timestamp"`
	// Revision grows on every refresh of the same pack.
	Revision uint64 `json:"-"`
}

// DispatchResult summarises one fan-out.
type DispatchResult struct {
	Total   int    `json:"total"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Expired int    `json:"expired"`
	Note    string `json:"note,omitempty"`
}
