// Package recurrence computes when a recurring task is next due.
//
// The calculator never fails: malformed configuration is logged and degraded
// to a safe default, because blocking a whole task list over one bad record
// is worse than a wrong-but-safe due date.
package recurrence

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/mhollis/chorecoin/internal/model"
)

var dayNames = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

var dayAbbrev = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

// ParseDays parses a weekday set like "MO,TH". Unknown tokens are skipped;
// the returned error names them so the caller can log the anomaly. The
// returned set is usable either way.
func ParseDays(s string) ([]time.Weekday, error) {
	var days []time.Weekday
	var bad []string
	seen := make(map[time.Weekday]bool)

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToUpper(part))
		if part == "" {
			continue
		}
		wd, ok := dayNames[part]
		if !ok {
			bad = append(bad, part)
			continue
		}
		if !seen[wd] {
			seen[wd] = true
			days = append(days, wd)
		}
	}

	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	if len(bad) > 0 {
		return days, fmt.Errorf("unknown weekday tokens: %s", strings.Join(bad, ","))
	}
	return days, nil
}

// FormatDays serializes a weekday set to the "MO,TH" wire form.
func FormatDays(days []time.Weekday) string {
	var parts []string
	for _, d := range days {
		parts = append(parts, dayAbbrev[d])
	}
	return strings.Join(parts, ",")
}

// NextDue computes the task's next due date from anchor. A nil anchor falls
// back to the last completion, then to the task's creation date — the first
// scheduling pass. For custom-frequency tasks on their first pass, "today"
// itself is a candidate when its weekday is in the set.
func NextDue(task *model.Task, anchor *time.Time) time.Time {
	base := task.CreatedAt
	firstPass := false
	switch {
	case anchor != nil:
		base = *anchor
	case task.LastCompletedAt != nil:
		base = *task.LastCompletedAt
	default:
		firstPass = true
	}

	switch task.Frequency {
	case model.FreqOnce:
		// One-off tasks are never rescheduled; the caller must not persist this.
		return base
	case model.FreqDaily:
		return base.AddDate(0, 0, 1)
	case model.FreqWeekly:
		return base.AddDate(0, 0, 7)
	case model.FreqMonthly:
		return base.AddDate(0, 1, 0)
	case model.FreqCustom:
		return nextCustom(task, base, firstPass)
	default:
		slog.Warn("unknown task frequency, defaulting to weekly",
			"task_id", task.ID, "frequency", string(task.Frequency))
		return base.AddDate(0, 0, 7)
	}
}

func nextCustom(task *model.Task, base time.Time, firstPass bool) time.Time {
	days, err := ParseDays(task.CustomDays)
	if err != nil {
		slog.Warn("malformed custom weekday set",
			"task_id", task.ID, "custom_days", task.CustomDays, "error", err)
	}
	if len(days) == 0 {
		slog.Warn("empty custom weekday set, defaulting to weekly",
			"task_id", task.ID, "custom_days", task.CustomDays)
		return base.AddDate(0, 0, 7)
	}

	target := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		target[d] = true
	}

	// First scheduling pass: the base date itself qualifies.
	if firstPass && target[base.Weekday()] {
		return base
	}

	// Scan strictly after base, day by day. Any non-empty set hits within 7.
	for i := 1; i <= 7; i++ {
		candidate := base.AddDate(0, 0, i)
		if target[candidate.Weekday()] {
			return candidate
		}
	}
	return base.AddDate(0, 0, 7)
}
