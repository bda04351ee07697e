package task

import (
	"testing"
	"time"

	"github.com/mhollis/chorecoin/internal/model"
)

var now = time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC) // a Wednesday

func ptr(t time.Time) *time.Time { return &t }

func TestVisibleSuppressesFutureRecurring(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, Title: "dishes", Status: model.TaskActive, Frequency: model.FreqDaily, NextDueDate: ptr(now.Add(-time.Hour))},
		{ID: 2, Title: "laundry", Status: model.TaskActive, Frequency: model.FreqWeekly, NextDueDate: ptr(now.Add(48 * time.Hour))},
		{ID: 3, Title: "mow lawn", Status: model.TaskActive, Frequency: model.FreqWeekly, NextDueDate: nil},
		{ID: 4, Title: "clean garage", Status: model.TaskActive, Frequency: model.FreqOnce},
		{ID: 5, Title: "old chore", Status: model.TaskArchived, Frequency: model.FreqWeekly, NextDueDate: ptr(now.Add(48 * time.Hour))},
	}

	got := Visible(tasks, now)
	ids := make(map[int64]bool)
	for _, task := range got {
		ids[task.ID] = true
	}

	if !ids[1] {
		t.Error("due recurring task should be visible")
	}
	if ids[2] {
		t.Error("future recurring task should be suppressed")
	}
	if !ids[3] {
		t.Error("uninitialized recurring task should surface for scheduling")
	}
	if !ids[4] {
		t.Error("one-off task should always be visible")
	}
	if !ids[5] {
		t.Error("terminal-status task should pass through as-is")
	}
}

func TestVisibleDueExactlyNow(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, Status: model.TaskActive, Frequency: model.FreqDaily, NextDueDate: ptr(now)},
	}
	if got := Visible(tasks, now); len(got) != 1 {
		t.Errorf("task due exactly now should be visible, got %d tasks", len(got))
	}
}

func TestNeedsInit(t *testing.T) {
	recurring := model.Task{Status: model.TaskActive, Frequency: model.FreqWeekly}
	if !NeedsInit(&recurring) {
		t.Error("active recurring task without a schedule needs init")
	}

	recurring.NextDueDate = ptr(now)
	if NeedsInit(&recurring) {
		t.Error("scheduled task does not need init")
	}

	oneOff := model.Task{Status: model.TaskActive, Frequency: model.FreqOnce}
	if NeedsInit(&oneOff) {
		t.Error("one-off task never needs init")
	}
}

func TestDueOnDailyIgnoresStoredSchedule(t *testing.T) {
	created := now.AddDate(0, 0, -10)
	tasks := []model.Task{
		{ID: 1, Status: model.TaskActive, Frequency: model.FreqDaily, CreatedAt: created, NextDueDate: ptr(now.AddDate(0, 0, 3))},
	}

	if got := DueOn(tasks, now); len(got) != 1 {
		t.Error("daily task is due every day regardless of stored next due date")
	}
	if got := DueOn(tasks, created.AddDate(0, 0, -1)); len(got) != 0 {
		t.Error("daily task is not due before its creation date")
	}
}

func TestDueOnCustomConsultsWeekdaySet(t *testing.T) {
	created := now.AddDate(0, 0, -10)
	tasks := []model.Task{
		{ID: 1, Status: model.TaskActive, Frequency: model.FreqCustom, CustomDays: "WE,SA", CreatedAt: created},
	}

	if got := DueOn(tasks, now); len(got) != 1 { // Wednesday
		t.Error("custom task should be due on a configured weekday")
	}
	if got := DueOn(tasks, now.AddDate(0, 0, 1)); len(got) != 0 { // Thursday
		t.Error("custom task should not be due off its weekday set")
	}
	if got := DueOn(tasks, created.AddDate(0, 0, -7)); len(got) != 0 {
		t.Error("custom task is not due before its creation date")
	}
}

func TestDueOnWeeklyMatchesScheduledDay(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, Status: model.TaskActive, Frequency: model.FreqWeekly, NextDueDate: ptr(now)},
	}
	if got := DueOn(tasks, now.Add(3*time.Hour)); len(got) != 1 {
		t.Error("weekly task should be due on its scheduled day")
	}
	if got := DueOn(tasks, now.AddDate(0, 0, 1)); len(got) != 0 {
		t.Error("weekly task should not be due on other days")
	}
}

func TestDueOnExcludesInactive(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, Status: model.TaskPaused, Frequency: model.FreqDaily, CreatedAt: now.AddDate(0, 0, -1)},
	}
	if got := DueOn(tasks, now); len(got) != 0 {
		t.Error("paused task should not appear in calendar lookups")
	}
}
