// Package task decides which task instances are actionable for display.
package task

import (
	"time"

	"github.com/mhollis/chorecoin/internal/model"
	"github.com/mhollis/chorecoin/internal/recurrence"
	"github.com/mhollis/chorecoin/internal/timeutil"
)

// Visible filters tasks down to what should appear as actionable right now.
// One-off tasks and tasks in a non-active state pass through as-is. Recurring
// active tasks appear only when their next due date is unset (the caller
// should initialize it) or has arrived — suppressing future instances is what
// keeps a weekly task from showing up seven times.
func Visible(tasks []model.Task, now time.Time) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if isVisible(&t, now) {
			out = append(out, t)
		}
	}
	return out
}

// NeedsInit reports whether a recurring task is missing its next due date and
// should be scheduled before display.
func NeedsInit(t *model.Task) bool {
	return t.Status == model.TaskActive && t.Frequency.Recurring() && t.NextDueDate == nil
}

func isVisible(t *model.Task, now time.Time) bool {
	if t.Status != model.TaskActive {
		return true
	}
	if !t.Frequency.Recurring() {
		return true
	}
	if t.NextDueDate == nil {
		return true
	}
	return !t.NextDueDate.After(now)
}

// DueOn reports the tasks due on a given calendar date, for calendar-style
// lookups. Unlike Visible this ignores the stored schedule for daily tasks
// (due every day from creation onward) and consults the weekday set directly
// for custom tasks.
func DueOn(tasks []model.Task, date time.Time) []model.Task {
	day := timeutil.StartOfDay(date)
	var out []model.Task
	for _, t := range tasks {
		if isDueOn(&t, day) {
			out = append(out, t)
		}
	}
	return out
}

func isDueOn(t *model.Task, day time.Time) bool {
	if t.Status != model.TaskActive {
		return false
	}
	created := timeutil.StartOfDay(t.CreatedAt)
	switch t.Frequency {
	case model.FreqDaily:
		return !day.Before(created)
	case model.FreqCustom:
		if day.Before(created) {
			return false
		}
		days, _ := recurrence.ParseDays(t.CustomDays)
		for _, d := range days {
			if d == day.Weekday() {
				return true
			}
		}
		return false
	default:
		return t.NextDueDate != nil && timeutil.SameDay(*t.NextDueDate, day)
	}
}
