package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mhollis/chorecoin/internal/auth"
	"github.com/mhollis/chorecoin/internal/model"
	"github.com/mhollis/chorecoin/internal/store"
)

const sessionCookieName = "chorecoin_session"

type AuthHandler struct {
	users      *store.UserStore
	households *store.HouseholdStore
	sessions   *store.SessionStore
	logger     *slog.Logger
}

func NewAuthHandler(users *store.UserStore, households *store.HouseholdStore, sessions *store.SessionStore, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{users: users, households: households, sessions: sessions, logger: logger}
}

type registerRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	HouseholdName string `json:"household_name"`
}

// Register creates a user, a household with them as admin, and a session.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.HouseholdName = strings.TrimSpace(req.HouseholdName)
	if req.Name == "" || req.Email == "" || req.HouseholdName == "" {
		writeError(w, http.StatusBadRequest, "name, email and household_name are required")
		return
	}

	existing, err := h.users.GetByEmail(req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check email")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}

	user, err := h.users.Create(req.Name, req.Email)
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	household, err := h.households.Create(req.HouseholdName)
	if err != nil {
		h.logger.Error("create household", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create household")
		return
	}
	if _, err := h.households.AddMember(household.ID, user.ID, model.RoleAdmin); err != nil {
		h.logger.Error("add member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create membership")
		return
	}

	h.startSession(w, user.ID, household.ID)
	h.logger.Info("user registered", "user_id", user.ID, "household_id", household.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"user": user, "household": household})
}

type loginRequest struct {
	Email string `json:"email"`
	PIN   string `json:"pin"`
}

// Login starts a session for an existing user. Users with a PIN set must
// supply it.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	user, err := h.users.GetByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up user")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if user.HasPIN {
		ok, err := h.users.VerifyPIN(user.ID, req.PIN)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to verify pin")
			return
		}
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
	}

	member, err := h.households.FirstMembership(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up membership")
		return
	}
	if member == nil {
		writeError(w, http.StatusForbidden, "user does not belong to a household")
		return
	}

	h.startSession(w, user.ID, member.HouseholdID)
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "household_id": member.HouseholdID})
}

// Logout deletes the session and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok {
		if err := h.sessions.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "session_id", ac.SessionID, "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

type inviteRequest struct {
	Role string `json:"role"`
}

// CreateInvite issues a join token for the caller's household. Admin only.
func (h *AuthHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Role == "" {
		req.Role = model.RoleMember
	}
	if req.Role != model.RoleAdmin && req.Role != model.RoleMember {
		writeError(w, http.StatusBadRequest, "role must be admin or member")
		return
	}

	invite, err := h.households.CreateInvite(auth.HouseholdID(r.Context()), req.Role)
	if err != nil {
		h.logger.Error("create invite", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create invite")
		return
	}
	writeJSON(w, http.StatusCreated, invite)
}

type joinRequest struct {
	Token string `json:"token"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Join redeems an invite token, creating the user if the email is new.
func (h *AuthHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Token == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "token and email are required")
		return
	}

	user, err := h.users.GetByEmail(req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up user")
		return
	}
	if user == nil {
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required for new users")
			return
		}
		user, err = h.users.Create(req.Name, req.Email)
		if err != nil {
			h.logger.Error("create user", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to create user")
			return
		}
	}

	member, err := h.households.RedeemInvite(req.Token, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "invite not found or expired")
		case errors.Is(err, store.ErrConflict):
			writeError(w, http.StatusConflict, "invite already used")
		default:
			h.logger.Error("redeem invite", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to redeem invite")
		}
		return
	}

	h.startSession(w, user.ID, member.HouseholdID)
	h.logger.Info("invite redeemed", "user_id", user.ID, "household_id", member.HouseholdID)
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "household_id": member.HouseholdID})
}

func (h *AuthHandler) startSession(w http.ResponseWriter, userID, householdID int64) {
	sess, err := h.sessions.Create(userID, householdID)
	if err != nil {
		h.logger.Error("create session", "user_id", userID, "error", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
