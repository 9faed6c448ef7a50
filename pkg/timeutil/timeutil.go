// Package timeutil provides UTC calendar helpers for the engagement engine.
// Daily challenges, streaks, and scheduler cadence windows are all keyed by
// UTC calendar dates. No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// DayLayout is the calendar-date key format.
const DayLayout = "2006-01-02"

// DayKey returns the UTC calendar-date key for t, e.g. "2026-08-30".
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// Today returns the UTC calendar-date key for the current day.
func Today() string {
	return DayKey(time.Now())
}

// Yesterday returns the UTC calendar-date key for the previous day.
func Yesterday() string {
	return DayKey(time.Now().AddDate(0, 0, -1))
}

// StartOfDay returns 00:00:00 UTC of t's day.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the last nanosecond of t's UTC day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// UntilEndOfDay returns the duration from t until its UTC day ends.
// Used as the TTL for per-day keys.
func UntilEndOfDay(t time.Time) time.Duration {
	return StartOfDay(t).AddDate(0, 0, 1).Sub(t.UTC())
}

// ISOWeekKey returns the ISO week key for t, e.g. "2026-W35".
func ISOWeekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// HourWindowKey returns a key for the hour-aligned window containing t,
// e.g. "2026-08-30T14". Jobs on sub-daily cadences lock per hour window.
func HourWindowKey(t time.Time) string {
	return t.UTC().Format("2006-01-02T15")
}

// SameUTCDay reports whether a and b fall on the same UTC calendar day.
func SameUTCDay(a, b time.Time) bool {
	au, bu := a.UTC(), b.UTC()
	return au.Year() == bu.Year() && au.YearDay() == bu.YearDay()
}

// DaysBetween returns the number of whole UTC calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(StartOfDay(b).Sub(StartOfDay(a)).Hours() / 24)
}
