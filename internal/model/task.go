package model

import "time"

// Frequency describes how often a task recurs.
type Frequency string

const (
	FreqOnce    Frequency = "once"
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
	FreqCustom  Frequency = "custom"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FreqOnce, FreqDaily, FreqWeekly, FreqMonthly, FreqCustom:
		return true
	}
	return false
}

// Recurring reports whether tasks with this frequency reschedule after completion.
func (f Frequency) Recurring() bool {
	return f.Valid() && f != FreqOnce
}

// TaskStatus is a task's lifecycle state.
type TaskStatus string

const (
	TaskActive    TaskStatus = "active"
	TaskPaused    TaskStatus = "paused"
	TaskCompleted TaskStatus = "completed"
	TaskArchived  TaskStatus = "archived"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskActive, TaskPaused, TaskCompleted, TaskArchived:
		return true
	}
	return false
}

type Task struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CoinReward  int       `json:"coin_reward"`
	Frequency   Frequency `json:"frequency"`
	// CustomDays holds the weekday set for custom-frequency tasks in the
	// "MO,TH" wire form. Empty for other frequencies.
	CustomDays    string     `json:"custom_days,omitempty"`
	CustomTime    string     `json:"custom_time,omitempty"`
	AnyoneCanDo   bool       `json:"anyone_can_do"`
	AssignedTo    []int64    `json:"assigned_to,omitempty"`
	RequiresPhoto bool       `json:"requires_photo"`
	Status        TaskStatus `json:"status"`

	CompletionCount        int        `json:"completion_count"`
	LastCompletedAt        *time.Time `json:"last_completed_at"`
	NextDueDate            *time.Time `json:"next_due_date"`
	LastDeductionProcessed *time.Time `json:"last_deduction_processed,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Assigned reports whether the task is restricted to an explicit member list.
func (t *Task) Assigned() bool {
	return !t.AnyoneCanDo && len(t.AssignedTo) > 0
}
