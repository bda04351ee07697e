package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mhollis/chorecoin/internal/auth"
	"github.com/mhollis/chorecoin/internal/model"
	"github.com/mhollis/chorecoin/internal/store"
)

type SettingsHandler struct {
	households *store.HouseholdStore
	logger     *slog.Logger
}

func NewSettingsHandler(households *store.HouseholdStore, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{households: households, logger: logger}
}

// Get returns the household, including its deduction policy.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	household, err := h.households.GetByID(auth.HouseholdID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get household")
		return
	}
	if household == nil {
		writeError(w, http.StatusNotFound, "household not found")
		return
	}
	writeJSON(w, http.StatusOK, household)
}

// SetPolicy replaces the household's deduction policy. Admin only.
func (h *SettingsHandler) SetPolicy(w http.ResponseWriter, r *http.Request) {
	var policy model.DeductionPolicy
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if policy.Enabled && policy.DeductionCoins <= 0 {
		writeError(w, http.StatusBadRequest, "deduction_coins must be positive when deductions are enabled")
		return
	}
	if policy.GracePeriodHours < 0 {
		writeError(w, http.StatusBadRequest, "grace_period_hours cannot be negative")
		return
	}

	householdID := auth.HouseholdID(r.Context())
	if err := h.households.SetPolicy(householdID, policy); err != nil {
		h.logger.Error("set deduction policy", "household_id", householdID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update policy")
		return
	}

	household, err := h.households.GetByID(householdID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get household")
		return
	}
	writeJSON(w, http.StatusOK, household)
}
