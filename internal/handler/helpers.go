package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mhollis/chorecoin/internal/ledger"
	"github.com/mhollis/chorecoin/internal/market"
	"github.com/mhollis/chorecoin/internal/store"
)

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeLedgerError maps the engine's error taxonomy onto HTTP statuses:
// not-found is 404, precondition failures are 409, validation is 422, and
// anything else is a 500 the caller may retry.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, ledger.ErrTaskNotFound),
		errors.Is(err, market.ErrRewardNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrAlreadyResolved),
		errors.Is(err, ledger.ErrPendingExists),
		errors.Is(err, ledger.ErrTaskNotActive),
		errors.Is(err, market.ErrInsufficientCoins),
		errors.Is(err, market.ErrDuplicatePending),
		errors.Is(err, market.ErrRewardExhausted),
		errors.Is(err, market.ErrCooldownActive),
		errors.Is(err, market.ErrRewardInactive):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrPhotoRequired),
		errors.Is(err, market.ErrTitleRequired),
		errors.Is(err, market.ErrCostNotPositive),
		errors.Is(err, market.ErrCashValueRequired):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
