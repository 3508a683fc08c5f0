// Package timeutil provides timezone utilities for Western Indonesia Time (WIB, UTC+7).
// All pesantren sessions are recorded in local time, so date strings, weekday
// names and month names are derived in WIB.
// No external dependencies - uses only standard library.
package timeutil

import (
	"strconv"
	"strings"
	"time"
)

// JakartaTZ is Western Indonesia Time (UTC+7, no DST).
var JakartaTZ = time.FixedZone("Asia/Jakarta", 7*60*60)

// Now returns the current time in WIB.
func Now() time.Time {
	return time.Now().In(JakartaTZ)
}

// ToJakarta converts a time to WIB.
func ToJakarta(t time.Time) time.Time {
	return t.In(JakartaTZ)
}

// Date creates a time in WIB with the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, JakartaTZ)
}

// StartOfDay returns the start of the day (00:00:00) in WIB.
func StartOfDay(t time.Time) time.Time {
	local := ToJakarta(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, JakartaTZ)
}

// StartOfMonth returns the first day of the month in WIB.
func StartOfMonth(t time.Time) time.Time {
	local := ToJakarta(t)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, JakartaTZ)
}

// EndOfMonth returns the last nanosecond of the month in WIB.
func EndOfMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// WeekOfMonth returns the 1-based week index inside the month: days 1-7 are
// week 1, 8-14 week 2, and so on up to week 5.
func WeekOfMonth(t time.Time) int {
	return (ToJakarta(t).Day()-1)/7 + 1
}

// Common date formats.
const (
	// FormatDate is the stored date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatIndonesianDate is DD/MM/YYYY.
	FormatIndonesianDate = "02/01/2006"
)

// FormatDateStr formats a time as a date string (YYYY-MM-DD) in WIB.
func FormatDateStr(t time.Time) string {
	return ToJakarta(t).Format(FormatDate)
}

// FormatIndonesian formats a time as "Senin, 5 Mei 2025".
func FormatIndonesian(t time.Time) string {
	local := ToJakarta(t)
	return WeekdayNameID(local) + ", " + strconv.Itoa(local.Day()) + " " + MonthNameID(local.Month()) + " " + strconv.Itoa(local.Year())
}

// ParseDate parses a YYYY-MM-DD string as a WIB date.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(FormatDate, strings.TrimSpace(value), JakartaTZ)
}

// IsSameDay checks if two times are on the same WIB day.
func IsSameDay(t1, t2 time.Time) bool {
	a, b := ToJakarta(t1), ToJakarta(t2)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

var weekdayNames = [...]string{
	time.Sunday:    "Ahad",
	time.Monday:    "Senin",
	time.Tuesday:   "Selasa",
	time.Wednesday: "Rabu",
	time.Thursday:  "Kamis",
	time.Friday:    "Jumat",
	time.Saturday:  "Sabtu",
}

// WeekdayNameID returns the Indonesian name for the weekday of t in WIB.
func WeekdayNameID(t time.Time) string {
	return weekdayNames[ToJakarta(t).Weekday()]
}

var monthNames = [...]string{
	"", "Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// MonthNameID returns the Indonesian name for a month.
func MonthNameID(m time.Month) string {
	if m >= time.January && m <= time.December {
		return monthNames[m]
	}
	return ""
}

// MonthNames returns the twelve Indonesian month names in calendar order.
func MonthNames() []string {
	out := make([]string, 12)
	copy(out, monthNames[1:])
	return out
}

// ParseMonthID converts an Indonesian month name (case-insensitive) to time.Month.
func ParseMonthID(name string) (time.Month, bool) {
	name = strings.TrimSpace(name)
	for i := 1; i <= 12; i++ {
		if strings.EqualFold(monthNames[i], name) {
			return time.Month(i), true
		}
	}
	return 0, false
}
