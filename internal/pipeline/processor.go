package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hermesbot/go-alert-service/pkg/notification"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
)

// Dispatcher sends an operator alert.
type Dispatcher interface {
	Dispatch(ctx context.Context, message, sellerID string) (notification.DispatchResult, error)
}

// UpdateSink records that a seller's pack changed.
type UpdateSink interface {
	Enqueue(ctx context.Context, sellerID, packID string) error
}

// NewProcessor routes each event to the dispatcher or the update queue.
// A returned error leaves the message un-acked for redelivery.
func NewProcessor(
	dispatcher Dispatcher,
	updates UpdateSink,
	logger *slog.Logger,
) messagepipeline.StreamProcessor[Event] {

	return func(ctx context.Context, original messagepipeline.Message, event *Event) error {
		procLogger := logger.With(
			"event_type", event.Type,
			"seller_id", event.SellerID,
			"pubsub_msg_id", original.ID,
		)

		switch event.Type {
		case EventNotify:
			result, err := dispatcher.Dispatch(ctx, event.Message, event.SellerID)
			if err != nil {
				procLogger.Error("Dispatch failed", "err", err)
				return err
			}
			procLogger.Info("Alert dispatched", "sent", result.Sent, "failed", result.Failed, "expired", result.Expired)
			return nil

		case EventPackUpdated:
			if err := updates.Enqueue(ctx, event.SellerID, event.PackID); err != nil {
				procLogger.Error("Enqueue failed", "pack_id", event.PackID, "err", err)
				return err
			}
			procLogger.Debug("Pack update queued", "pack_id", event.PackID)
			return nil

		default:
			return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, event.Type)
		}
	}
}
