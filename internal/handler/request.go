package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mhollis/chorecoin/internal/auth"
	"github.com/mhollis/chorecoin/internal/market"
	"github.com/mhollis/chorecoin/internal/model"
	"github.com/mhollis/chorecoin/internal/notify"
	"github.com/mhollis/chorecoin/internal/store"
	"github.com/mhollis/chorecoin/internal/websocket"
)

type RequestHandler struct {
	market   *market.Service
	requests *store.RequestStore
	push     *notify.Service
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewRequestHandler(marketSvc *market.Service, requests *store.RequestStore, push *notify.Service, hub *websocket.Hub, logger *slog.Logger) *RequestHandler {
	return &RequestHandler{market: marketSvc, requests: requests, push: push, hub: hub, logger: logger}
}

func (h *RequestHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	requests, err := h.requests.ListPendingByHousehold(auth.HouseholdID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list requests")
		return
	}
	if requests == nil {
		requests = []model.RewardRequest{}
	}
	writeJSON(w, http.StatusOK, requests)
}

func (h *RequestHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	requests, err := h.requests.ListByUser(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list requests")
		return
	}
	if requests == nil {
		requests = []model.RewardRequest{}
	}
	writeJSON(w, http.StatusOK, requests)
}

func (h *RequestHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	req, err := h.market.Approve(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	h.push.NotifyUser(req.RequestedBy, notify.Payload{
		Title: "Reward approved",
		Body:  fmt.Sprintf("%s (-%d coins)", req.RewardTitle, req.CoinCost),
		Tag:   model.NotifTypeRequestResolved,
	})
	h.hub.Broadcast(req.HouseholdID, websocket.NewMessage("request", "approved", req.ID, nil))
	writeJSON(w, http.StatusOK, req)
}

func (h *RequestHandler) Deny(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	req, err := h.market.Deny(id, auth.UserID(r.Context()))
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	h.push.NotifyUser(req.RequestedBy, notify.Payload{
		Title: "Reward request denied",
		Body:  req.RewardTitle,
		Tag:   model.NotifTypeRequestResolved,
	})
	h.hub.Broadcast(req.HouseholdID, websocket.NewMessage("request", "denied", req.ID, nil))
	writeJSON(w, http.StatusOK, req)
}

func (h *RequestHandler) Fulfill(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	req, err := h.market.Fulfill(id, auth.UserID(r.Context()))
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	h.hub.Broadcast(req.HouseholdID, websocket.NewMessage("request", "fulfilled", req.ID, nil))
	writeJSON(w, http.StatusOK, req)
}
