package calendar

import (
	"errors"
	"time"
)

// DayKeyLayout is the canonical wire format for a calendar day.
const DayKeyLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date")

// DayKey truncates a timestamp to midnight UTC. Every date that participates
// in equality or lookup must pass through here first, otherwise timestamps
// and plain day strings land on different keys.
func DayKey(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDayKey accepts "YYYY-MM-DD" or an RFC3339 timestamp and collapses
// either to the canonical day key.
func ParseDayKey(s string) (time.Time, error) {
	if t, err := time.Parse(DayKeyLayout, s); err == nil {
		return DayKey(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DayKey(t), nil
	}
	return time.Time{}, ErrInvalidDate
}

func FormatDayKey(t time.Time) string {
	return DayKey(t).Format(DayKeyLayout)
}

// Today returns the current day key.
func Today() time.Time {
	return DayKey(time.Now())
}

// IsWorkday reports whether the day falls on Monday through Friday.
// There is no holiday calendar.
func IsWorkday(t time.Time) bool {
	switch DayKey(t).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

// IsPast reports whether the day key falls before today.
func IsPast(t time.Time, today time.Time) bool {
	return DayKey(t).Before(DayKey(today))
}

// DaysInRange returns the day keys from start to end, both ends inclusive.
// An inverted range yields nil.
func DaysInRange(start, end time.Time) []time.Time {
	from, to := DayKey(start), DayKey(end)
	if to.Before(from) {
		return nil
	}
	var days []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
