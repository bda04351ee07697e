// Package ledger drives the completion → approval → coin-award state machine.
package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mhollis/chorecoin/internal/model"
	"github.com/mhollis/chorecoin/internal/recurrence"
	"github.com/mhollis/chorecoin/internal/store"
	"github.com/mhollis/chorecoin/internal/timeutil"
)

var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrTaskNotActive   = errors.New("task is not active")
	ErrPendingExists   = errors.New("a pending completion already exists for this task")
	ErrPhotoRequired   = errors.New("task requires before and after photos")
	ErrAlreadyResolved = store.ErrAlreadyResolved
)

// Service owns completion submissions and resolutions.
type Service struct {
	tasks       *store.TaskStore
	completions *store.CompletionStore
	logger      *slog.Logger
}

func NewService(tasks *store.TaskStore, completions *store.CompletionStore, logger *slog.Logger) *Service {
	return &Service{tasks: tasks, completions: completions, logger: logger}
}

// Submission carries a user's claim and its attachments. Photo references
// are opaque; the media collaborator owns their meaning.
type Submission struct {
	TaskID      int64
	UserID      int64
	Notes       string
	PhotoBefore string
	PhotoAfter  string
}

// Submit records a pending completion. The task's reward is snapshotted into
// the entry so later edits can't change what the claim is worth. One-off
// tasks flip to completed immediately to leave the active list; their coins
// still wait for approval.
func (s *Service) Submit(sub Submission) (*model.Completion, error) {
	t, err := s.tasks.GetByID(sub.TaskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTaskNotFound
	}
	if t.Status != model.TaskActive {
		return nil, ErrTaskNotActive
	}
	if t.RequiresPhoto && (sub.PhotoBefore == "" || sub.PhotoAfter == "") {
		return nil, ErrPhotoRequired
	}

	now := time.Now().UTC()

	// Recurring tasks allow one submission in flight per day window;
	// one-off tasks allow one ever.
	var pending bool
	if t.Frequency.Recurring() {
		pending, err = s.completions.HasPendingSince(sub.TaskID, timeutil.StartOfDay(now))
	} else {
		pending, err = s.completions.HasPending(sub.TaskID)
	}
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrPendingExists
	}

	c, err := s.completions.Create(sub.TaskID, sub.UserID, t.CoinReward, sub.Notes, sub.PhotoBefore, sub.PhotoAfter, now)
	if err != nil {
		return nil, err
	}

	if !t.Frequency.Recurring() {
		if err := s.tasks.MarkCompleted(t.ID, now); err != nil {
			return nil, fmt.Errorf("mark one-off completed: %w", err)
		}
	}

	s.logger.Info("completion submitted",
		"task_id", t.ID, "completion_id", c.ID, "user_id", sub.UserID, "coins_pending", c.CoinsPending)
	return c, nil
}

// Approve awards the snapshotted coins and credits the completer. Resolution
// is exactly-once; approving a resolved entry returns ErrAlreadyResolved with
// no balance effect. Recurring tasks are re-anchored on the completion's
// submission time afterwards.
func (s *Service) Approve(completionID, approverID int64) (*model.Completion, error) {
	c, err := s.completions.Approve(completionID, approverID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	s.reschedule(c)

	s.logger.Info("completion approved",
		"completion_id", c.ID, "approver_id", approverID, "coins_awarded", c.CoinsAwarded)
	return c, nil
}

// Reject records the reason and closes the entry. Nothing was credited, so
// nothing is reversed. The recurring task still re-anchors: the occurrence
// was consumed by the attempt.
func (s *Service) Reject(completionID, approverID int64, reason string) (*model.Completion, error) {
	c, err := s.completions.Reject(completionID, approverID, reason)
	if err != nil {
		return nil, err
	}

	s.reschedule(c)

	s.logger.Info("completion rejected",
		"completion_id", c.ID, "approver_id", approverID, "reason", reason)
	return c, nil
}

// reschedule computes and persists the next due date for the resolved
// completion's task, anchored on the submission time. Failures are logged
// rather than propagated: the ledger transition already committed, and a
// stale schedule self-corrects on the next resolution.
func (s *Service) reschedule(c *model.Completion) {
	t, err := s.tasks.GetByID(c.TaskID)
	if err != nil || t == nil {
		s.logger.Error("reschedule: load task", "task_id", c.TaskID, "error", err)
		return
	}
	if !t.Frequency.Recurring() {
		return
	}

	anchor := c.SubmittedAt
	next := recurrence.NextDue(t, &anchor)
	if err := s.tasks.SetSchedule(t.ID, next, anchor); err != nil {
		s.logger.Error("reschedule: persist", "task_id", t.ID, "error", err)
	}
}

// InitSchedule gives an unscheduled recurring task its first due date. Safe
// to call from list paths when the visibility filter surfaces such a task.
func (s *Service) InitSchedule(t *model.Task) error {
	if t.NextDueDate != nil || !t.Frequency.Recurring() {
		return nil
	}
	next := recurrence.NextDue(t, nil)
	return s.tasks.InitSchedule(t.ID, next)
}
