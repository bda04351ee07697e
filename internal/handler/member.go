package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mhollis/chorecoin/internal/auth"
	"github.com/mhollis/chorecoin/internal/model"
	"github.com/mhollis/chorecoin/internal/store"
)

type MemberHandler struct {
	users      *store.UserStore
	households *store.HouseholdStore
	logger     *slog.Logger
}

func NewMemberHandler(users *store.UserStore, households *store.HouseholdStore, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{users: users, households: households, logger: logger}
}

// List returns every household member with their balance and stats.
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListByHousehold(auth.HouseholdID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// Me returns the calling user's profile and stats.
func (h *MemberHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Balance returns just the coin balance, for lightweight polling.
func (h *MemberHandler) Balance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.users.Balance(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get balance")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"coin_balance": balance})
}

type pinRequest struct {
	PIN string `json:"pin"`
}

// SetPIN sets or replaces the calling user's PIN.
func (h *MemberHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.PIN) < 4 {
		writeError(w, http.StatusBadRequest, "pin must be at least 4 digits")
		return
	}

	if err := h.users.SetPIN(auth.UserID(r.Context()), req.PIN); err != nil {
		h.logger.Error("set pin", "user_id", auth.UserID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to set pin")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VerifyPIN checks a member's PIN, used for the shared-device profile switch.
func (h *MemberHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	member, err := h.households.GetMember(auth.HouseholdID(r.Context()), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get member")
		return
	}
	if member == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}

	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ok, err := h.users.VerifyPIN(id, req.PIN)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to verify pin")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": ok})
}
