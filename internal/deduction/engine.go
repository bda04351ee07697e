// Package deduction is the periodic sweep that penalizes missed assigned
// tasks once their grace period runs out.
package deduction

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/mhollis/chorecoin/internal/model"
	"github.com/mhollis/chorecoin/internal/store"
)

// Result reports a sweep's outcome. Partial failure is a first-class value:
// Err accumulates per-user deduction failures without aborting the sweep.
type Result struct {
	Processed int
	Err       error
}

// Errors unpacks the accumulated failures.
func (r Result) Errors() []error {
	return multierr.Errors(r.Err)
}

// Engine sweeps households for overdue assigned tasks. Sweeps are serialized
// per household: a second sweep for the same household waits for the first,
// preserving the at-most-once deduction guarantee alongside the task stamp.
type Engine struct {
	mu         sync.Mutex
	perHouse   map[int64]*sync.Mutex
	households *store.HouseholdStore
	tasks      *store.TaskStore
	users      *store.UserStore
	logger     *slog.Logger
}

func NewEngine(households *store.HouseholdStore, tasks *store.TaskStore, users *store.UserStore, logger *slog.Logger) *Engine {
	return &Engine{
		perHouse:   make(map[int64]*sync.Mutex),
		households: households,
		tasks:      tasks,
		users:      users,
		logger:     logger,
	}
}

func (e *Engine) lockFor(householdID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.perHouse[householdID]
	if !ok {
		m = &sync.Mutex{}
		e.perHouse[householdID] = m
	}
	return m
}

// ProcessMissed runs one sweep for a household. Skips entirely when the
// deduction policy is disabled. For every active, explicitly-assigned task
// overdue by more than the grace period, it deducts the policy amount from
// each assigned user (clamped at zero) and stamps the task so the same
// overdue occurrence never fires twice.
func (e *Engine) ProcessMissed(householdID int64) (Result, error) {
	lock := e.lockFor(householdID)
	lock.Lock()
	defer lock.Unlock()

	return e.sweep(householdID, time.Now().UTC())
}

// sweep is the lock-free body, split out so tests can pin "now".
func (e *Engine) sweep(householdID int64, now time.Time) (Result, error) {
	h, err := e.households.GetByID(householdID)
	if err != nil {
		return Result{}, err
	}
	if h == nil {
		return Result{}, store.ErrNotFound
	}
	if !h.Policy.Enabled || h.Policy.DeductionCoins <= 0 {
		return Result{}, nil
	}

	tasks, err := e.tasks.ListActiveAssigned(householdID)
	if err != nil {
		return Result{}, err
	}

	grace := time.Duration(h.Policy.GracePeriodHours) * time.Hour
	var result Result

	for i := range tasks {
		t := &tasks[i]
		if !e.missed(t, now, grace) {
			continue
		}

		// Claim the occurrence before touching balances. Losing the
		// claim means another sweep already handled it.
		err := e.tasks.StampDeduction(t.ID, t.LastDeductionProcessed, now)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			result.Err = multierr.Append(result.Err, fmt.Errorf("task %d: %w", t.ID, err))
			continue
		}

		for _, userID := range t.AssignedTo {
			if err := e.users.DeductCoins(userID, h.Policy.DeductionCoins); err != nil {
				result.Err = multierr.Append(result.Err,
					fmt.Errorf("task %d user %d: %w", t.ID, userID, err))
				continue
			}
			e.logger.Info("missed-task deduction applied",
				"household_id", householdID, "task_id", t.ID,
				"user_id", userID, "coins", h.Policy.DeductionCoins)
		}
		result.Processed++
	}

	return result, nil
}

// missed reports whether the task's current occurrence is past due beyond
// the grace period and not yet penalized.
func (e *Engine) missed(t *model.Task, now time.Time, grace time.Duration) bool {
	if t.NextDueDate == nil {
		return false
	}
	due := *t.NextDueDate
	if now.Sub(due) <= grace {
		return false
	}
	// Already penalized for this occurrence: the stamp postdates the due
	// date, and nothing has come due since.
	if t.LastDeductionProcessed != nil && t.LastDeductionProcessed.After(due) {
		return false
	}
	return true
}
