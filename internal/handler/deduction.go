package handler

import (
	"log/slog"
	"net/http"

	"github.com/mhollis/chorecoin/internal/auth"
	"github.com/mhollis/chorecoin/internal/deduction"
)

type DeductionHandler struct {
	engine *deduction.Engine
	logger *slog.Logger
}

func NewDeductionHandler(engine *deduction.Engine, logger *slog.Logger) *DeductionHandler {
	return &DeductionHandler{engine: engine, logger: logger}
}

// Run triggers an immediate sweep for the caller's household. Admin only.
// Partial failures come back in the body rather than failing the request.
func (h *DeductionHandler) Run(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())
	result, err := h.engine.ProcessMissed(householdID)
	if err != nil {
		h.logger.Error("manual deduction sweep", "household_id", householdID, "error", err)
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}

	failures := make([]string, 0)
	for _, e := range result.Errors() {
		failures = append(failures, e.Error())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"processed": result.Processed,
		"failures":  failures,
	})
}
