package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mhollis/chorecoin/internal/auth"
	"github.com/mhollis/chorecoin/internal/model"
	"github.com/mhollis/chorecoin/internal/notify"
	"github.com/mhollis/chorecoin/internal/store"
)

type PushHandler struct {
	subs   *store.PushStore
	push   *notify.Service
	logger *slog.Logger
}

func NewPushHandler(subs *store.PushStore, push *notify.Service, logger *slog.Logger) *PushHandler {
	return &PushHandler{subs: subs, push: push, logger: logger}
}

// VAPIDKey returns the public key browsers need to subscribe. An empty key
// means push is not configured on this install.
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.push.VAPIDPublicKey()})
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint"`
	P256dhKey  string `json:"p256dh_key"`
	AuthKey    string `json:"auth_key"`
	DeviceName string `json:"device_name"`
}

func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Endpoint == "" || req.P256dhKey == "" || req.AuthKey == "" {
		writeError(w, http.StatusBadRequest, "endpoint, p256dh_key and auth_key are required")
		return
	}

	sub, err := h.subs.Upsert(&model.PushSubscription{
		UserID:      auth.UserID(r.Context()),
		HouseholdID: auth.HouseholdID(r.Context()),
		Endpoint:    req.Endpoint,
		P256dhKey:   req.P256dhKey,
		AuthKey:     req.AuthKey,
		DeviceName:  req.DeviceName,
	})
	if err != nil {
		h.logger.Error("upsert push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint is required")
		return
	}

	if err := h.subs.DeleteByEndpoint(req.Endpoint); err != nil {
		h.logger.Error("delete push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
