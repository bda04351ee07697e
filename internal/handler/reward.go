package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mhollis/chorecoin/internal/auth"
	"github.com/mhollis/chorecoin/internal/market"
	"github.com/mhollis/chorecoin/internal/model"
	"github.com/mhollis/chorecoin/internal/notify"
	"github.com/mhollis/chorecoin/internal/store"
	"github.com/mhollis/chorecoin/internal/websocket"
)

type RewardHandler struct {
	market  *market.Service
	rewards *store.RewardStore
	push    *notify.Service
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewRewardHandler(marketSvc *market.Service, rewards *store.RewardStore, push *notify.Service, hub *websocket.Hub, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{market: marketSvc, rewards: rewards, push: push, hub: hub, logger: logger}
}

type rewardRequest struct {
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	Category         string  `json:"category"`
	CoinCost         int     `json:"coin_cost"`
	CashValue        float64 `json:"cash_value"`
	Active           bool    `json:"active"`
	MaxRedemptions   *int    `json:"max_redemptions"`
	CooldownHours    int     `json:"cooldown_hours"`
	RequiresApproval bool    `json:"requires_approval"`
}

// Create inserts a reward, or folds into an existing active reward with the
// same title and category (bumping its popularity) — a 200 instead of a 201.
func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	reward, created, err := h.market.CreateReward(&model.Reward{
		HouseholdID:      auth.HouseholdID(r.Context()),
		Title:            req.Title,
		Description:      req.Description,
		Category:         req.Category,
		CoinCost:         req.CoinCost,
		CashValue:        req.CashValue,
		Active:           req.Active,
		MaxRedemptions:   req.MaxRedemptions,
		CooldownHours:    req.CooldownHours,
		RequiresApproval: req.RequiresApproval,
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.hub.Broadcast(reward.HouseholdID, websocket.NewMessage("reward", "created", reward.ID, nil))
	}
	writeJSON(w, status, reward)
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())

	var rewards []model.Reward
	var err error
	if r.URL.Query().Get("all") == "true" {
		rewards, err = h.rewards.ListByHousehold(householdID)
	} else {
		rewards, err = h.rewards.ListActiveByHousehold(householdID)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list rewards")
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.rewards.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get reward")
		return
	}
	if existing == nil || existing.HouseholdID != auth.HouseholdID(r.Context()) {
		writeError(w, http.StatusNotFound, "reward not found")
		return
	}

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.CoinCost <= 0 {
		writeError(w, http.StatusBadRequest, "coin_cost must be positive")
		return
	}
	if req.Category == model.CategoryMoney && req.CashValue <= 0 {
		writeError(w, http.StatusBadRequest, "monetary rewards require a cash_value")
		return
	}

	existing.Title = req.Title
	existing.Description = req.Description
	existing.Category = req.Category
	existing.CoinCost = req.CoinCost
	existing.CashValue = req.CashValue
	existing.Active = req.Active
	existing.MaxRedemptions = req.MaxRedemptions
	existing.CooldownHours = req.CooldownHours
	existing.RequiresApproval = req.RequiresApproval

	updated, err := h.rewards.Update(existing)
	if err != nil {
		h.logger.Error("update reward", "reward_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update reward")
		return
	}

	h.hub.Broadcast(updated.HouseholdID, websocket.NewMessage("reward", "updated", updated.ID, nil))
	writeJSON(w, http.StatusOK, updated)
}

func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.rewards.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get reward")
		return
	}
	if existing == nil || existing.HouseholdID != auth.HouseholdID(r.Context()) {
		writeError(w, http.StatusNotFound, "reward not found")
		return
	}

	if err := h.rewards.Delete(id); err != nil {
		h.logger.Error("delete reward", "reward_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete reward")
		return
	}

	h.hub.Broadcast(existing.HouseholdID, websocket.NewMessage("reward", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// Request claims the reward for the calling user.
func (h *RewardHandler) Request(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	householdID := auth.HouseholdID(r.Context())
	req, err := h.market.Request(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	h.hub.Broadcast(householdID, websocket.NewMessage("request", "created", req.ID, nil))
	if req.Status == model.RequestPending {
		h.push.NotifyAdmins(householdID, notify.Payload{
			Title: "Reward request awaiting approval",
			Body:  req.RewardTitle,
			Tag:   model.NotifTypeRequestCreated,
		})
	}

	writeJSON(w, http.StatusCreated, req)
}
