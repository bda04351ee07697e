package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mhollis/chorecoin/internal/auth"
	"github.com/mhollis/chorecoin/internal/ledger"
	"github.com/mhollis/chorecoin/internal/model"
	"github.com/mhollis/chorecoin/internal/recurrence"
	"github.com/mhollis/chorecoin/internal/store"
	"github.com/mhollis/chorecoin/internal/task"
	"github.com/mhollis/chorecoin/internal/websocket"
)

type TaskHandler struct {
	tasks  *store.TaskStore
	ledger *ledger.Service
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewTaskHandler(tasks *store.TaskStore, ledgerSvc *ledger.Service, hub *websocket.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, ledger: ledgerSvc, hub: hub, logger: logger}
}

func (h *TaskHandler) broadcast(householdID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(householdID, msg)
	}
}

type taskRequest struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	CoinReward    int     `json:"coin_reward"`
	Frequency     string  `json:"frequency"`
	CustomDays    string  `json:"custom_days"`
	CustomTime    string  `json:"custom_time"`
	AnyoneCanDo   bool    `json:"anyone_can_do"`
	AssignedTo    []int64 `json:"assigned_to"`
	RequiresPhoto bool    `json:"requires_photo"`
	Status        string  `json:"status"`
}

func (r *taskRequest) validate() string {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return "title is required"
	}
	if r.CoinReward < 0 {
		return "coin_reward must be >= 0"
	}
	freq := model.Frequency(r.Frequency)
	if !freq.Valid() {
		return "frequency must be one of once, daily, weekly, monthly, custom"
	}
	if freq == model.FreqCustom {
		if days, err := recurrence.ParseDays(r.CustomDays); err != nil || len(days) == 0 {
			return "custom frequency requires a weekday set like MO,TH"
		}
	}
	if !r.AnyoneCanDo && len(r.AssignedTo) == 0 {
		return "assigned tasks need at least one assignee"
	}
	return ""
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	t := &model.Task{
		HouseholdID:   auth.HouseholdID(r.Context()),
		Title:         req.Title,
		Description:   req.Description,
		CoinReward:    req.CoinReward,
		Frequency:     model.Frequency(req.Frequency),
		CustomDays:    req.CustomDays,
		CustomTime:    req.CustomTime,
		AnyoneCanDo:   req.AnyoneCanDo,
		AssignedTo:    req.AssignedTo,
		RequiresPhoto: req.RequiresPhoto,
		Status:        model.TaskActive,
	}

	created, err := h.tasks.Create(t)
	if err != nil {
		h.logger.Error("create task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	// Give recurring tasks their first due date right away.
	if err := h.ledger.InitSchedule(created); err != nil {
		h.logger.Error("init schedule", "task_id", created.ID, "error", err)
	} else if created.Frequency.Recurring() {
		created, err = h.tasks.GetByID(created.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load task")
			return
		}
	}

	h.broadcast(t.HouseholdID, websocket.NewMessage("task", "created", created.ID, nil))
	writeJSON(w, http.StatusCreated, created)
}

// List returns the household's actionable tasks, initializing schedules for
// recurring tasks that don't have one yet. Pass ?all=true for the raw set.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())
	all, err := h.tasks.ListByHousehold(householdID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	if r.URL.Query().Get("all") == "true" {
		if all == nil {
			all = []model.Task{}
		}
		writeJSON(w, http.StatusOK, all)
		return
	}

	now := time.Now().UTC()
	visible := task.Visible(all, now)
	for i := range visible {
		if task.NeedsInit(&visible[i]) {
			if err := h.ledger.InitSchedule(&visible[i]); err != nil {
				h.logger.Error("init schedule", "task_id", visible[i].ID, "error", err)
				continue
			}
			if t, err := h.tasks.GetByID(visible[i].ID); err == nil && t != nil {
				visible[i] = *t
			}
		}
	}
	// Re-filter: initialization may have pushed a task into the future.
	visible = task.Visible(visible, now)
	if visible == nil {
		visible = []model.Task{}
	}
	writeJSON(w, http.StatusOK, visible)
}

// DueOn answers calendar-style lookups: which tasks are due on a date.
func (h *TaskHandler) DueOn(w http.ResponseWriter, r *http.Request) {
	dateStr := r.URL.Query().Get("date")
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	all, err := h.tasks.ListByHousehold(auth.HouseholdID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	due := task.DueOn(all, date)
	if due == nil {
		due = []model.Task{}
	}
	writeJSON(w, http.StatusOK, due)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	t, err := h.tasks.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	if t == nil || t.HouseholdID != auth.HouseholdID(r.Context()) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.tasks.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	if existing == nil || existing.HouseholdID != auth.HouseholdID(r.Context()) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	status := model.TaskStatus(req.Status)
	if req.Status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	if req.Status == "" {
		status = existing.Status
	}

	existing.Title = req.Title
	existing.Description = req.Description
	existing.CoinReward = req.CoinReward
	existing.Frequency = model.Frequency(req.Frequency)
	existing.CustomDays = req.CustomDays
	existing.CustomTime = req.CustomTime
	existing.AnyoneCanDo = req.AnyoneCanDo
	existing.AssignedTo = req.AssignedTo
	existing.RequiresPhoto = req.RequiresPhoto
	existing.Status = status

	updated, err := h.tasks.Update(existing)
	if err != nil {
		h.logger.Error("update task", "task_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update task")
		return
	}

	h.broadcast(updated.HouseholdID, websocket.NewMessage("task", "updated", updated.ID, nil))
	writeJSON(w, http.StatusOK, updated)
}

// Delete removes the task and, through the schema, its completions.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	t, err := h.tasks.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	if t == nil || t.HouseholdID != auth.HouseholdID(r.Context()) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	if err := h.tasks.Delete(id); err != nil {
		h.logger.Error("delete task", "task_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete task")
		return
	}

	h.broadcast(t.HouseholdID, websocket.NewMessage("task", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}
