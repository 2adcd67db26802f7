// Package fanout delivers operator alerts to every registered browser.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hermesbot/go-alert-service/internal/metrics"
	"github.com/hermesbot/go-alert-service/pkg/dispatch"
	"github.com/hermesbot/go-alert-service/pkg/notification"
	"golang.org/x/sync/errgroup"
)

// NoSubscriptionsNote is reported when a dispatch finds nobody to notify.
const NoSubscriptionsNote = "no subscriptions"

// Options tunes a Dispatcher.
type Options struct {
	Title        string
	URL          string
	Tag          string
	Concurrency  int
	SendTimeout  time.Duration
	PruneExpired bool
}

// Dispatcher fans a message out to the registry, isolating per-subscription failures.
type Dispatcher struct {
	registry dispatch.Registry
	pusher   dispatch.Pusher
	opts     Options
	logger   *slog.Logger
}

func NewDispatcher(registry dispatch.Registry, pusher dispatch.Pusher, opts Options, logger *slog.Logger) *Dispatcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Dispatcher{
		registry: registry,
		pusher:   pusher,
		opts:     opts,
		logger:   logger.With("component", "Dispatcher"),
	}
}

// Dispatch pushes message to every subscription matching sellerID (all of
// them when sellerID is empty). Individual delivery failures are logged and
// counted; only failures before the fan-out are returned as errors.
func (d *Dispatcher) Dispatch(ctx context.Context, message, sellerID string) (notification.DispatchResult, error) {
	started := time.Now()
	payload := notification.NewPayload(d.opts.Title, message)
	payload.URL = d.opts.URL
	payload.Tag = d.opts.Tag

	logger := d.logger.With("dispatch_id", uuid.NewString(), "seller_id", sellerID)

	subs, err := d.registry.List(ctx)
	if err != nil {
		logger.Error("Failed to load subscriptions", "err", err)
		metrics.RecordDispatch("error", started)
		return notification.DispatchResult{}, fmt.Errorf("failed to load subscriptions: %w", err)
	}

	targets := make([]notification.PushSubscription, 0, len(subs))
	for _, sub := range subs {
		if sub.MatchesSeller(sellerID) {
			targets = append(targets, sub)
		}
	}
	if len(targets) == 0 {
		logger.Info("No subscriptions registered; nothing to deliver.")
		metrics.RecordDispatch("empty", started)
		return notification.DispatchResult{Note: NoSubscriptionsNote}, nil
	}

	result := notification.DispatchResult{Total: len(targets)}
	var (
		mu      sync.Mutex
		expired []string
	)

	var g errgroup.Group
	g.SetLimit(d.opts.Concurrency)
	for _, sub := range targets {
		g.Go(func() error {
			err := d.push(ctx, sub, payload)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				result.Sent++
				metrics.RecordPush(metrics.OutcomeSent)
			case errors.Is(err, dispatch.ErrSubscriptionExpired):
				metrics.RecordPush(metrics.OutcomeExpired)
				result.Failed++
				result.Expired++
				expired = append(expired, sub.Endpoint)
				logger.Warn("Subscription expired", "endpoint", sub.Endpoint)
			default:
				metrics.RecordPush(metrics.OutcomeFailed)
				result.Failed++
				logger.Error("Push delivery failed", "endpoint", sub.Endpoint, "err", err)
			}
			// Never abort the group: every subscription gets its attempt.
			return nil
		})
	}
	_ = g.Wait()

	if d.opts.PruneExpired && len(expired) > 0 {
		logger.Info("Cleaning up expired subscriptions", "count", len(expired))
		for _, endpoint := range expired {
			if err := d.registry.Remove(ctx, endpoint); err != nil {
				logger.Warn("Failed to delete expired subscription", "endpoint", endpoint, "err", err)
			}
		}
	}

	metrics.RecordDispatch("delivered", started)
	logger.Info("Dispatch complete", "total", result.Total, "sent", result.Sent, "failed", result.Failed, "expired", result.Expired)
	return result, nil
}

func (d *Dispatcher) push(ctx context.Context, sub notification.PushSubscription, payload notification.Payload) error {
	if d.opts.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.SendTimeout)
		defer cancel()
	}
	return d.pusher.Push(ctx, sub, payload)
}
