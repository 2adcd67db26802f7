package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hermesbot/go-alert-service/pkg/dispatch"
	"github.com/hermesbot/go-alert-service/pkg/notification"
)

type SubscriptionAPI struct {
	Registry       dispatch.Registry
	VapidPublicKey string
	Logger         *slog.Logger
}

func NewSubscriptionAPI(registry dispatch.Registry, vapidPublicKey string, logger *slog.Logger) *SubscriptionAPI {
	return &SubscriptionAPI{
		Registry:       registry,
		VapidPublicKey: vapidPublicKey,
		Logger:         logger,
	}
}

// subscribeRequest accepts the browser's PushSubscription.toJSON() either
// as the body itself or wrapped in a "subscription" field.
type subscribeRequest struct {
	notification.PushSubscription
	Subscription *notification.PushSubscription `json:"subscription"`
}

// Save handles POST /api/v1/subscriptions
func (api *SubscriptionAPI) Save(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Logger.Warn("Save: JSON Decode failed", "err", err)
		writeFailure(w, http.StatusBadRequest, "invalid subscription json")
		return
	}

	sub := req.PushSubscription
	if req.Subscription != nil {
		sub = *req.Subscription
		if sub.SellerID == "" {
			sub.SellerID = req.SellerID
		}
	}

	if err := sub.Validate(); err != nil {
		api.Logger.Warn("Save: Validation failed", "reason", err)
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := api.Registry.Add(r.Context(), sub); err != nil {
		api.Logger.Error("failed to save subscription", "err", err)
		writeFailure(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	api.Logger.Info("Save: Subscription registered", "endpoint", sub.Endpoint, "seller_id", sub.SellerID)

	writeSuccess(w, nil)
}

type unregisterRequest struct {
	Endpoint string `json:"endpoint"`
}

// Unregister handles DELETE /api/v1/subscriptions
func (api *SubscriptionAPI) Unregister(w http.ResponseWriter, r *http.Request) {
	var req unregisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Endpoint == "" {
		writeFailure(w, http.StatusBadRequest, "missing endpoint")
		return
	}

	if err := api.Registry.Remove(r.Context(), req.Endpoint); err != nil {
		api.Logger.Warn("failed to unregister subscription", "err", err)
		writeFailure(w, http.StatusInternalServerError, "failed to unregister subscription")
		return
	}
	api.Logger.Info("Unregister: Subscription removed", "endpoint", req.Endpoint)

	writeSuccess(w, nil)
}

// VapidKey handles GET /api/v1/vapid-key
func (api *SubscriptionAPI) VapidKey(w http.ResponseWriter, _ *http.Request) {
	if api.VapidPublicKey == "" {
		writeFailure(w, http.StatusServiceUnavailable, "web push is not configured")
		return
	}
	writeSuccess(w, envelope{"public_key": api.VapidPublicKey})
}
