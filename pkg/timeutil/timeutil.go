// Package timeutil provides timezone utilities for the São Paulo timezone (UTC-3).
// All UPGRD users are located in Brazil, so mission periods, login streaks, and
// leaderboard resets are anchored to São Paulo local time.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// SaoPauloTZ is the São Paulo timezone (UTC-3, no DST).
// Brazil abolished DST in 2019, so this is constant year-round.
var SaoPauloTZ = time.FixedZone("America/Sao_Paulo", -3*60*60)

// Now returns the current time in São Paulo timezone.
func Now() time.Time {
	return time.Now().In(SaoPauloTZ)
}

// ToSaoPaulo converts a time to São Paulo timezone.
func ToSaoPaulo(t time.Time) time.Time {
	return t.In(SaoPauloTZ)
}

// ToUTC converts a time to UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// Date creates a time in São Paulo timezone with the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, SaoPauloTZ)
}

// DateTime creates a time in São Paulo timezone with the given date and time.
func DateTime(year, month, day, hour, min, sec int) time.Time {
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, SaoPauloTZ)
}

// StartOfDay returns the start of the day (00:00:00) in São Paulo timezone.
func StartOfDay(t time.Time) time.Time {
	local := ToSaoPaulo(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, SaoPauloTZ)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in São Paulo timezone.
func EndOfDay(t time.Time) time.Time {
	local := ToSaoPaulo(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 999999999, SaoPauloTZ)
}

// StartOfWeek returns the start of the ISO-8601 week (Monday 00:00:00) containing t.
// This is the canonical "week start" for weekly mission periods: the most recent
// Monday at or before t.
func StartOfWeek(t time.Time) time.Time {
	local := ToSaoPaulo(t)
	weekday := int(local.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday is day 7 in ISO-8601
	}
	daysToSubtract := weekday - 1 // Monday = 1
	return StartOfDay(local.AddDate(0, 0, -daysToSubtract))
}

// EndOfWeek returns the end of the ISO week (Sunday 23:59:59) containing t.
func EndOfWeek(t time.Time) time.Time {
	start := StartOfWeek(t)
	return EndOfDay(start.AddDate(0, 0, 6))
}

// NextWeekStart returns the Monday following the week containing t.
func NextWeekStart(t time.Time) time.Time {
	return StartOfWeek(t).AddDate(0, 0, 7)
}

// IsToday checks if the given time is today in São Paulo timezone.
func IsToday(t time.Time) bool {
	return IsSameDay(t, Now())
}

// IsYesterday checks if the given time is yesterday in São Paulo timezone.
func IsYesterday(t time.Time) bool {
	return IsSameDay(t, Now().AddDate(0, 0, -1))
}

// IsThisWeek checks if the given time falls in the current ISO week.
func IsThisWeek(t time.Time) bool {
	now := Now()
	local := ToSaoPaulo(t)
	return !local.Before(StartOfWeek(now)) && !local.After(EndOfWeek(now))
}

// IsSameDay checks if two times fall on the same calendar day in São Paulo.
func IsSameDay(t1, t2 time.Time) bool {
	a := ToSaoPaulo(t1)
	b := ToSaoPaulo(t2)
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// IsConsecutiveDay checks if t2 is exactly the day after t1.
// Used for login streak tracking.
func IsConsecutiveDay(t1, t2 time.Time) bool {
	next := StartOfDay(t1).AddDate(0, 0, 1)
	return IsSameDay(next, t2)
}

// DaysSince calculates the number of whole days since the given time.
func DaysSince(t time.Time) int {
	return DaysBetween(t, Now())
}

// DaysBetween calculates the number of calendar days between two times.
// Returns a negative value when t2 is before t1.
func DaysBetween(t1, t2 time.Time) int {
	start := StartOfDay(t1)
	end := StartOfDay(t2)
	return int(end.Sub(start).Hours() / 24)
}

// FormatDateStr formats a time as "02.01.2006" in São Paulo timezone.
func FormatDateStr(t time.Time) string {
	return ToSaoPaulo(t).Format("02.01.2006")
}

// FormatTimeStr formats a time as "15:04" in São Paulo timezone.
func FormatTimeStr(t time.Time) string {
	return ToSaoPaulo(t).Format("15:04")
}

// FormatDateTimeStr formats a time as "02.01.2006 15:04" in São Paulo timezone.
func FormatDateTimeStr(t time.Time) string {
	return ToSaoPaulo(t).Format("02.01.2006 15:04")
}

// FormatPeriodKey formats a period start as a stable date key ("2006-01-02").
// Mission completion uniqueness is keyed on this value.
func FormatPeriodKey(t time.Time) string {
	return ToSaoPaulo(t).Format("2006-01-02")
}

// ParsePeriodKey parses a period key produced by FormatPeriodKey.
func ParsePeriodKey(value string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", value, SaoPauloTZ)
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil: invalid period key %q: %w", value, err)
	}
	return t, nil
}

// FormatRelative formats a time relative to now ("3h ago", "in 2d").
func FormatRelative(t time.Time) string {
	d := time.Since(t)
	if d >= 0 {
		return formatPastDuration(d)
	}
	return formatFutureDuration(-d)
}

func formatPastDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
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
		return fmt.Sprintf("in %dd", int(d.Hours()/24))
	}
}
