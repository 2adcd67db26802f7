package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/hermesbot/go-alert-service/alertservice/config"
	"github.com/hermesbot/go-alert-service/pkg/dispatch"
	"github.com/hermesbot/go-alert-service/pkg/notification"
)

// Pusher delivers VAPID-signed, encrypted payloads to browser push services.
type Pusher struct {
	subscriber string
	privateKey string
	publicKey  string
	ttl        int
	logger     *slog.Logger
	httpClient *http.Client
}

func NewPusher(cfg config.VapidConfig, ttl int, logger *slog.Logger) *Pusher {
	return &Pusher{
		privateKey: cfg.PrivateKey,
		publicKey:  cfg.PublicKey,
		subscriber: cfg.SubscriberEmail,
		ttl:        ttl,
		logger:     logger.With("component", "WebPusher"),
		httpClient: &http.Client{},
	}
}

// PublicKey returns the VAPID application server key handed to browsers.
func (p *Pusher) PublicKey() string {
	return p.publicKey
}

// Push sends one payload to one subscription.
// A 404 or 410 from the push service yields dispatch.ErrSubscriptionExpired.
func (p *Pusher) Push(ctx context.Context, sub notification.PushSubscription, payload notification.Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	s := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, s, &webpush.Options{
		Subscriber:      p.subscriber,
		VAPIDPublicKey:  p.publicKey,
		VAPIDPrivateKey: p.privateKey,
		TTL:             p.ttl,
		HTTPClient:      p.httpClient,
	})
	if err != nil {
		// Transport or encryption error, the subscription itself may still be fine.
		return fmt.Errorf("webpush send to %s: %w", sub.Endpoint, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusGone, resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: push service returned %d", dispatch.ErrSubscriptionExpired, resp.StatusCode)
	case resp.StatusCode >= 400:
		p.logger.Warn("WebPush rejected", "status", resp.StatusCode, "endpoint", sub.Endpoint)
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}
