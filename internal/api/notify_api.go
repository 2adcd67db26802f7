package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hermesbot/go-alert-service/pkg/notification"
)

// Broadcaster sends an operator alert to the registered browsers.
type Broadcaster interface {
	Dispatch(ctx context.Context, message, sellerID string) (notification.DispatchResult, error)
}

type NotifyAPI struct {
	Broadcaster Broadcaster
	Logger      *slog.Logger
}

func NewNotifyAPI(b Broadcaster, logger *slog.Logger) *NotifyAPI {
	return &NotifyAPI{Broadcaster: b, Logger: logger}
}

type notifyRequest struct {
	Message  string `json:"message"`
	SellerID string `json:"seller_id"`
}

// Notify handles POST /api/v1/notify. An empty body sends the default alert.
func (api *NotifyAPI) Notify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeFailure(w, http.StatusBadRequest, "invalid json")
		return
	}

	// The fan-out outlives a caller that hangs up; each push carries its own timeout.
	result, err := api.Broadcaster.Dispatch(context.WithoutCancel(r.Context()), req.Message, req.SellerID)
	if err != nil {
		api.Logger.Error("Notify: dispatch failed", "err", err)
		writeFailure(w, http.StatusInternalServerError, "failed to dispatch notification")
		return
	}

	fields := envelope{
		"total":   result.Total,
		"sent":    result.Sent,
		"failed":  result.Failed,
		"expired": result.Expired,
	}
	if result.Note != "" {
		fields["message"] = result.Note
	}
	writeSuccess(w, fields)
}
