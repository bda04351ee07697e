package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mhollis/chorecoin/internal/auth"
	"github.com/mhollis/chorecoin/internal/ledger"
	"github.com/mhollis/chorecoin/internal/model"
	"github.com/mhollis/chorecoin/internal/notify"
	"github.com/mhollis/chorecoin/internal/store"
	"github.com/mhollis/chorecoin/internal/websocket"
)

type CompletionHandler struct {
	ledger      *ledger.Service
	completions *store.CompletionStore
	push        *notify.Service
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewCompletionHandler(ledgerSvc *ledger.Service, completions *store.CompletionStore, push *notify.Service, hub *websocket.Hub, logger *slog.Logger) *CompletionHandler {
	return &CompletionHandler{ledger: ledgerSvc, completions: completions, push: push, hub: hub, logger: logger}
}

type submitRequest struct {
	Notes       string `json:"notes"`
	PhotoBefore string `json:"photo_before"`
	PhotoAfter  string `json:"photo_after"`
}

// Submit records a completion claim for the task in the path.
func (h *CompletionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	taskID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req submitRequest
	if r.Body != nil {
		// Body is optional; a bare POST is a plain claim.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	householdID := auth.HouseholdID(r.Context())
	c, err := h.ledger.Submit(ledger.Submission{
		TaskID:      taskID,
		UserID:      auth.UserID(r.Context()),
		Notes:       strings.TrimSpace(req.Notes),
		PhotoBefore: req.PhotoBefore,
		PhotoAfter:  req.PhotoAfter,
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	h.hub.Broadcast(householdID, websocket.NewMessage("completion", "submitted", c.ID, nil))
	h.push.NotifyAdmins(householdID, notify.Payload{
		Title: "Completion awaiting approval",
		Body:  "A chore completion was submitted for review.",
		Tag:   model.NotifTypeCompletionSubmitted,
	})

	writeJSON(w, http.StatusCreated, c)
}

// ListPending is the admin approval queue.
func (h *CompletionHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	completions, err := h.completions.ListPendingByHousehold(auth.HouseholdID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list completions")
		return
	}
	if completions == nil {
		completions = []model.Completion{}
	}
	writeJSON(w, http.StatusOK, completions)
}

// ListMine returns the caller's own completion history.
func (h *CompletionHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	completions, err := h.completions.ListByUser(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list completions")
		return
	}
	if completions == nil {
		completions = []model.Completion{}
	}
	writeJSON(w, http.StatusOK, completions)
}

func (h *CompletionHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	c, err := h.ledger.Approve(id, auth.UserID(r.Context()))
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	householdID := auth.HouseholdID(r.Context())
	h.hub.Broadcast(householdID, websocket.NewMessage("completion", "approved", c.ID, map[string]any{
		"coins_awarded": c.CoinsAwarded,
	}))
	h.push.NotifyUser(c.CompletedBy, notify.Payload{
		Title: "Chore approved",
		Body:  "Your completion was approved and coins were awarded.",
		Tag:   model.NotifTypeCompletionResolved,
	})

	writeJSON(w, http.StatusOK, c)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *CompletionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	c, err := h.ledger.Reject(id, auth.UserID(r.Context()), strings.TrimSpace(req.Reason))
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	householdID := auth.HouseholdID(r.Context())
	h.hub.Broadcast(householdID, websocket.NewMessage("completion", "rejected", c.ID, nil))
	h.push.NotifyUser(c.CompletedBy, notify.Payload{
		Title: "Chore rejected",
		Body:  "Your completion was not approved.",
		Tag:   model.NotifTypeCompletionResolved,
	})

	writeJSON(w, http.StatusOK, c)
}
