// Package timeutil normalizes the timestamp shapes that show up in stored
// rows — native time values, RFC3339 text, epoch seconds — into time.Time at
// the persistence boundary, so nothing above the store layer ever branches on
// representation.
package timeutil

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Normalize converts a raw stored value into a UTC time.Time.
func Normalize(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case *time.Time:
		if t == nil {
			return time.Time{}, fmt.Errorf("normalize time: nil")
		}
		return t.UTC(), nil
	case int64:
		return time.Unix(t, 0).UTC(), nil
	case int:
		return time.Unix(int64(t), 0).UTC(), nil
	case float64:
		sec := int64(t)
		nsec := int64((t - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC(), nil
	case []byte:
		return parseString(string(t))
	case string:
		return parseString(t)
	default:
		return time.Time{}, fmt.Errorf("normalize time: unsupported type %T", v)
	}
}

var textLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("normalize time: empty string")
	}
	// Epoch seconds serialized as text.
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), nil
	}
	for _, layout := range textLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("normalize time: unparseable %q", s)
}

// NullTime is a nullable timestamp column that accepts any shape Normalize
// accepts. Use it in place of sql.NullTime when scanning.
type NullTime struct {
	Time  time.Time
	Valid bool
}

func (n *NullTime) Scan(v any) error {
	if v == nil {
		n.Time, n.Valid = time.Time{}, false
		return nil
	}
	t, err := Normalize(v)
	if err != nil {
		return err
	}
	n.Time, n.Valid = t, true
	return nil
}

func (n NullTime) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return n.Time.UTC(), nil
}

// Ptr returns the value as *time.Time, nil when unset.
func (n NullTime) Ptr() *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

// FromPtr builds a NullTime from an optional time.
func FromPtr(t *time.Time) NullTime {
	if t == nil {
		return NullTime{}
	}
	return NullTime{Time: t.UTC(), Valid: true}
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return StartOfDay(a).Equal(StartOfDay(b))
}
