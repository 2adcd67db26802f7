// Package pipeline consumes alert events published by the remote backend.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
)

// Event types accepted on the ingestion subscription.
const (
	EventNotify      = "notify"
	EventPackUpdated = "pack_updated"
)

var ErrInvalidEvent = errors.New("invalid event")

// Event is the JSON body published by the backend.
type Event struct {
	Type     string `json:"type"`
	Message  string `json:"message,omitempty"`
	SellerID string `json:"seller_id,omitempty"`
	PackID   string `json:"pack_id,omitempty"`
}

// Validate checks the fields each event type requires.
func (e *Event) Validate() error {
	switch e.Type {
	case EventNotify:
		return nil
	case EventPackUpdated:
		if e.SellerID == "" || e.PackID == "" {
			return fmt.Errorf("%w: pack_updated needs seller_id and pack_id", ErrInvalidEvent)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
}

// EventTransformer unmarshals and validates a raw message payload.
// Failures return skip=true so the StreamingService can apply the Nack/DLQ policy.
func EventTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*Event, bool, error) {
	var event Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, true, fmt.Errorf("failed to unmarshal event from message %s: %w", msg.ID, err)
	}
	event.Type = strings.TrimSpace(event.Type)
	event.SellerID = strings.TrimSpace(event.SellerID)
	event.PackID = strings.TrimSpace(event.PackID)

	if err := event.Validate(); err != nil {
		return nil, true, fmt.Errorf("message %s: %w", msg.ID, err)
	}
	return &event, false, nil
}
