package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mhollis/chorecoin/internal/model"
	"github.com/mhollis/chorecoin/internal/timeutil"
)

type CompletionStore struct {
	db *sql.DB
}

func NewCompletionStore(db *sql.DB) *CompletionStore {
	return &CompletionStore{db: db}
}

func scanCompletion(scanner interface{ Scan(...any) error }) (*model.Completion, error) {
	var c model.Completion
	var resolvedBy sql.NullInt64
	var resolvedAt timeutil.NullTime

	err := scanner.Scan(
		&c.ID, &c.TaskID, &c.CompletedBy, &c.Status,
		&c.CoinsPending, &c.CoinsAwarded, &c.Notes, &c.PhotoBefore, &c.PhotoAfter,
		&c.SubmittedAt, &resolvedBy, &resolvedAt, &c.RejectionReason,
	)
	if err != nil {
		return nil, err
	}

	if resolvedBy.Valid {
		c.ResolvedBy = &resolvedBy.Int64
	}
	c.ResolvedAt = resolvedAt.Ptr()
	return &c, nil
}

const completionCols = `id, task_id, completed_by, status, coins_pending, coins_awarded, notes, photo_before, photo_after, submitted_at, resolved_by, resolved_at, rejection_reason`

// Create records a new pending completion with the coin snapshot.
func (s *CompletionStore) Create(taskID, userID int64, coinsPending int, notes, photoBefore, photoAfter string, submittedAt time.Time) (*model.Completion, error) {
	result, err := s.db.Exec(
		`INSERT INTO completions (task_id, completed_by, status, coins_pending, notes, photo_before, photo_after, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		taskID, userID, model.CompletionPending, coinsPending, notes, photoBefore, photoAfter, submittedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert completion: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *CompletionStore) GetByID(id int64) (*model.Completion, error) {
	row := s.db.QueryRow(`SELECT `+completionCols+` FROM completions WHERE id = ?`, id)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

// HasPendingSince reports whether the task already has an unresolved
// completion submitted at or after the given instant — the one-in-flight
// guard for recurring tasks.
func (s *CompletionStore) HasPendingSince(taskID int64, since time.Time) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM completions WHERE task_id = ? AND status = ? AND submitted_at >= ?`,
		taskID, model.CompletionPending, since.UTC(),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count pending completions: %w", err)
	}
	return n > 0, nil
}

// HasPending reports whether the task has any unresolved completion.
func (s *CompletionStore) HasPending(taskID int64) (bool, error) {
	return s.HasPendingSince(taskID, time.Unix(0, 0))
}

func (s *CompletionStore) listWhere(where string, args ...any) ([]model.Completion, error) {
	rows, err := s.db.Query(
		`SELECT `+completionCols+` FROM completions `+where+` ORDER BY submitted_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var completions []model.Completion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		completions = append(completions, *c)
	}
	return completions, rows.Err()
}

func (s *CompletionStore) ListByTask(taskID int64) ([]model.Completion, error) {
	return s.listWhere(`WHERE task_id = ?`, taskID)
}

func (s *CompletionStore) ListByUser(userID int64) ([]model.Completion, error) {
	return s.listWhere(`WHERE completed_by = ?`, userID)
}

// ListPendingByHousehold returns the household's unresolved completions, the
// admin approval queue.
func (s *CompletionStore) ListPendingByHousehold(householdID int64) ([]model.Completion, error) {
	return s.listWhere(
		`WHERE status = ? AND task_id IN (SELECT id FROM tasks WHERE household_id = ?)`,
		model.CompletionPending, householdID,
	)
}

// Approve resolves a pending completion and credits the completer, as one
// transaction. The status transition carries a pending guard in its WHERE
// clause: if the entry was already resolved zero rows change and the whole
// transaction rolls back, so re-approval can never double-credit.
func (s *CompletionStore) Approve(id, approverID int64) (*model.Completion, error) {
	c, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}
	if !c.Status.CanTransition(model.CompletionApproved) {
		return nil, ErrAlreadyResolved
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.Exec(
		`UPDATE completions SET status = ?, coins_awarded = coins_pending, resolved_by = ?, resolved_at = ? WHERE id = ? AND status = ?`,
		model.CompletionApproved, approverID, now, id, model.CompletionPending,
	)
	if err != nil {
		return nil, fmt.Errorf("approve completion: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrAlreadyResolved
	}

	if err := creditCoins(tx, c.CompletedBy, c.CoinsPending, c.SubmittedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

// Reject resolves a pending completion with a reason. No balance mutation:
// coins were never granted, so there is nothing to reverse.
func (s *CompletionStore) Reject(id, approverID int64, reason string) (*model.Completion, error) {
	res, err := s.db.Exec(
		`UPDATE completions SET status = ?, resolved_by = ?, resolved_at = ?, rejection_reason = ? WHERE id = ? AND status = ?`,
		model.CompletionRejected, approverID, time.Now().UTC(), reason, id, model.CompletionPending,
	)
	if err != nil {
		return nil, fmt.Errorf("reject completion: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c, getErr := s.GetByID(id)
		if getErr != nil {
			return nil, getErr
		}
		if c == nil {
			return nil, ErrNotFound
		}
		return nil, ErrAlreadyResolved
	}
	return s.GetByID(id)
}
