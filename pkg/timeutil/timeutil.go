// Package timeutil provides UTC day arithmetic for TradeQuest Core.
// All progression timestamps are stored and compared in UTC: daily XP
// deduplication, leaderboard snapshot ages and scheduler runs all share
// the same day boundary, so every helper here normalizes to UTC first.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// ToUTC converts a time to UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// Date creates a UTC time with the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// DateTime creates a UTC time with the given date and time.
func DateTime(year, month, day, hour, min, sec int) time.Time {
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)
}

// StartOfDay returns the start of the day (00:00:00) in UTC.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in UTC.
func EndOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 999999999, time.UTC)
}

// StartOfWeek returns the start of the week (Monday 00:00:00) in UTC.
func StartOfWeek(t time.Time) time.Time {
	u := t.UTC()
	weekday := int(u.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	daysToSubtract := weekday - 1 // Monday = 1
	return StartOfDay(u.AddDate(0, 0, -daysToSubtract))
}

// EndOfWeek returns the end of the week (Sunday 23:59:59) in UTC.
func EndOfWeek(t time.Time) time.Time {
	start := StartOfWeek(t)
	return EndOfDay(start.AddDate(0, 0, 6))
}

// IsToday checks if the given time falls on the current UTC day.
func IsToday(t time.Time) bool {
	return IsSameDay(t, Now())
}

// IsYesterday checks if the given time falls on the previous UTC day.
func IsYesterday(t time.Time) bool {
	return IsSameDay(t, Now().AddDate(0, 0, -1))
}

// DaysSince calculates the number of whole UTC days since the given time.
func DaysSince(t time.Time) int {
	now := StartOfDay(Now())
	then := StartOfDay(t)
	return int(now.Sub(then).Hours() / 24)
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatTime is the standard time format (HH:MM).
	FormatTime = "15:04"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatDateTimeSeconds includes seconds.
	FormatDateTimeSeconds = "2006-01-02 15:04:05"
)

// FormatDateStr formats a time as a UTC date string (YYYY-MM-DD).
func FormatDateStr(t time.Time) string {
	return t.UTC().Format(FormatDate)
}

// FormatDateTimeStr formats a time as a UTC datetime string.
func FormatDateTimeStr(t time.Time) string {
	return t.UTC().Format(FormatDateTime)
}

// ParseDate parses a date string (YYYY-MM-DD) as midnight UTC.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(FormatDate, value, time.UTC)
}

// ParseDateTime parses a datetime string as UTC.
func ParseDateTime(value string) (time.Time, error) {
	return time.ParseInLocation(FormatDateTime, value, time.UTC)
}

// FormatRelative returns a human-readable relative time string.
func FormatRelative(t time.Time) string {
	d := Now().Sub(t.UTC())
	if d < 0 {
		return formatFutureDuration(-d)
	}
	return formatPastDuration(d)
}

func formatPastDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "yesterday"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	}
}

func formatFutureDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("in %dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("in %dh", int(d.Hours()))
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "tomorrow"
		}
		return fmt.Sprintf("in %dd", days)
	}
}

// Daily-grant helpers. The ledger rejects a second daily_login or
// streak_bonus event on the same UTC day, so "same day" here must match
// the storage layer's day boundary exactly.

// IsSameDay checks if two times fall on the same UTC day.
func IsSameDay(t1, t2 time.Time) bool {
	u1, u2 := t1.UTC(), t2.UTC()
	return u1.Year() == u2.Year() && u1.YearDay() == u2.YearDay()
}

// IsConsecutiveDay checks if t2 falls on the UTC day after t1.
func IsConsecutiveDay(t1, t2 time.Time) bool {
	return IsSameDay(t1.UTC().AddDate(0, 0, 1), t2)
}

// DaysBetween calculates the number of UTC days between two times.
func DaysBetween(t1, t2 time.Time) int {
	days := int(StartOfDay(t2).Sub(StartOfDay(t1)).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}
