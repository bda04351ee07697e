package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mhollis/chorecoin/internal/model"
	"github.com/mhollis/chorecoin/internal/timeutil"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var anyone, requiresPhoto int
	var lastCompleted, nextDue, lastDeduction timeutil.NullTime

	err := scanner.Scan(
		&t.ID, &t.HouseholdID, &t.Title, &t.Description, &t.CoinReward,
		&t.Frequency, &t.CustomDays, &t.CustomTime, &anyone, &requiresPhoto,
		&t.Status, &t.CompletionCount, &lastCompleted, &nextDue, &lastDeduction,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.AnyoneCanDo = anyone != 0
	t.RequiresPhoto = requiresPhoto != 0
	t.LastCompletedAt = lastCompleted.Ptr()
	t.NextDueDate = nextDue.Ptr()
	t.LastDeductionProcessed = lastDeduction.Ptr()
	return &t, nil
}

const taskCols = `id, household_id, title, description, coin_reward, frequency, custom_days, custom_time, anyone_can_do, requires_photo, status, completion_count, last_completed_at, next_due_date, last_deduction_processed, created_at, updated_at`

// Create inserts a task and its assignee list.
func (s *TaskStore) Create(t *model.Task) (*model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	anyone := 0
	if t.AnyoneCanDo {
		anyone = 1
	}
	photo := 0
	if t.RequiresPhoto {
		photo = 1
	}
	status := t.Status
	if status == "" {
		status = model.TaskActive
	}

	result, err := tx.Exec(
		`INSERT INTO tasks (household_id, title, description, coin_reward, frequency, custom_days, custom_time, anyone_can_do, requires_photo, status, next_due_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.HouseholdID, t.Title, t.Description, t.CoinReward, t.Frequency,
		t.CustomDays, t.CustomTime, anyone, photo, status,
		timeutil.FromPtr(t.NextDueDate),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	for _, userID := range t.AssignedTo {
		if _, err := tx.Exec(`INSERT INTO task_assignees (task_id, user_id) VALUES (?, ?)`, id, userID); err != nil {
			return nil, fmt.Errorf("insert assignee: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if err := s.loadAssignees(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TaskStore) loadAssignees(t *model.Task) error {
	rows, err := s.db.Query(`SELECT user_id FROM task_assignees WHERE task_id = ? ORDER BY user_id`, t.ID)
	if err != nil {
		return fmt.Errorf("load assignees: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return fmt.Errorf("scan assignee: %w", err)
		}
		t.AssignedTo = append(t.AssignedTo, userID)
	}
	return rows.Err()
}

func (s *TaskStore) list(query string, args ...any) ([]model.Task, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range tasks {
		if err := s.loadAssignees(&tasks[i]); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

func (s *TaskStore) ListByHousehold(householdID int64) ([]model.Task, error) {
	return s.list(`SELECT `+taskCols+` FROM tasks WHERE household_id = ? ORDER BY title ASC`, householdID)
}

// ListActiveAssigned returns active tasks restricted to an explicit member
// list — the population the deduction sweep inspects.
func (s *TaskStore) ListActiveAssigned(householdID int64) ([]model.Task, error) {
	return s.list(
		`SELECT `+taskCols+` FROM tasks
		 WHERE household_id = ? AND status = ? AND anyone_can_do = 0
		 ORDER BY id ASC`,
		householdID, model.TaskActive,
	)
}

// Update rewrites the task's editable fields and assignee list. Schedule
// fields are untouched; those belong to SetSchedule.
func (s *TaskStore) Update(t *model.Task) (*model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	anyone := 0
	if t.AnyoneCanDo {
		anyone = 1
	}
	photo := 0
	if t.RequiresPhoto {
		photo = 1
	}

	res, err := tx.Exec(
		`UPDATE tasks SET title = ?, description = ?, coin_reward = ?, frequency = ?, custom_days = ?, custom_time = ?, anyone_can_do = ?, requires_photo = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		t.Title, t.Description, t.CoinReward, t.Frequency, t.CustomDays,
		t.CustomTime, anyone, photo, t.Status, time.Now().UTC(), t.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM task_assignees WHERE task_id = ?`, t.ID); err != nil {
		return nil, fmt.Errorf("clear assignees: %w", err)
	}
	for _, userID := range t.AssignedTo {
		if _, err := tx.Exec(`INSERT INTO task_assignees (task_id, user_id) VALUES (?, ?)`, t.ID, userID); err != nil {
			return nil, fmt.Errorf("insert assignee: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(t.ID)
}

// SetSchedule persists the recurrence output after a completion resolves:
// the new next-due date, the completion anchor, and the bumped counter.
func (s *TaskStore) SetSchedule(id int64, nextDue time.Time, completedAt time.Time) error {
	res, err := s.db.Exec(
		`UPDATE tasks SET next_due_date = ?, last_completed_at = ?, completion_count = completion_count + 1, updated_at = ? WHERE id = ?`,
		nextDue.UTC(), completedAt.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// InitSchedule stamps the first next-due date without touching completion
// bookkeeping.
func (s *TaskStore) InitSchedule(id int64, nextDue time.Time) error {
	res, err := s.db.Exec(
		`UPDATE tasks SET next_due_date = ?, updated_at = ? WHERE id = ?`,
		nextDue.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("init schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkCompleted flips a one-off task to the completed state.
func (s *TaskStore) MarkCompleted(id int64, completedAt time.Time) error {
	res, err := s.db.Exec(
		`UPDATE tasks SET status = ?, last_completed_at = ?, completion_count = completion_count + 1, updated_at = ? WHERE id = ?`,
		model.TaskCompleted, completedAt.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// StampDeduction records that the deduction sweep handled the task's current
// overdue occurrence. The guard against an unchanged prior stamp makes the
// sweep idempotent: a second sweep in the same window affects zero rows and
// returns ErrConflict.
func (s *TaskStore) StampDeduction(id int64, prior *time.Time, now time.Time) error {
	var res sql.Result
	var err error
	if prior == nil {
		res, err = s.db.Exec(
			`UPDATE tasks SET last_deduction_processed = ? WHERE id = ? AND last_deduction_processed IS NULL`,
			now.UTC(), id,
		)
	} else {
		res, err = s.db.Exec(
			`UPDATE tasks SET last_deduction_processed = ? WHERE id = ? AND last_deduction_processed = ?`,
			now.UTC(), id, prior.UTC(),
		)
	}
	if err != nil {
		return fmt.Errorf("stamp deduction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// Delete removes the task; completions cascade at the schema level.
func (s *TaskStore) Delete(id int64) error {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
