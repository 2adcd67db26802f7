package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hermesbot/go-alert-service/pkg/notification"
)

// UpdateFeed is the polling boundary over the per-seller update queue.
type UpdateFeed interface {
	Enqueue(ctx context.Context, sellerID, packID string) error
	Poll(ctx context.Context, sellerID string) ([]notification.UpdateEntry, error)
}

type UpdatesAPI struct {
	Feed   UpdateFeed
	Logger *slog.Logger
}

func NewUpdatesAPI(feed UpdateFeed, logger *slog.Logger) *UpdatesAPI {
	return &UpdatesAPI{Feed: feed, Logger: logger}
}

type enqueueRequest struct {
	SellerID string `json:"seller_id"`
	PackID   string `json:"pack_id"`
}

// Enqueue handles POST /api/v1/updates
func (api *UpdatesAPI) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.SellerID = strings.TrimSpace(req.SellerID)
	req.PackID = strings.TrimSpace(req.PackID)
	if req.SellerID == "" || req.PackID == "" {
		writeFailure(w, http.StatusBadRequest, "seller_id and pack_id are required")
		return
	}

	if err := api.Feed.Enqueue(r.Context(), req.SellerID, req.PackID); err != nil {
		api.Logger.Error("Enqueue: queue write failed", "seller_id", req.SellerID, "pack_id", req.PackID, "err", err)
		writeFailure(w, http.StatusInternalServerError, "failed to enqueue update")
		return
	}
	writeSuccess(w, nil)
}

// Poll handles GET /api/v1/updates?seller_id=
func (api *UpdatesAPI) Poll(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	sellerID := strings.TrimSpace(query.Get("seller_id"))
	if sellerID == "" {
		sellerID = strings.TrimSpace(query.Get("sellerId"))
	}
	if sellerID == "" {
		writeFailure(w, http.StatusBadRequest, "sellerId is required")
		return
	}

	entries, err := api.Feed.Poll(r.Context(), sellerID)
	if err != nil {
		api.Logger.Error("Poll: queue read failed", "seller_id", sellerID, "err", err)
		writeFailure(w, http.StatusInternalServerError, "failed to read updates")
		return
	}
	if entries == nil {
		entries = []notification.UpdateEntry{}
	}
	writeSuccess(w, envelope{"updates": entries})
}
