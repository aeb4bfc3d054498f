// Package timeutil holds the date arithmetic and formatting used on generated
// documents: contract day/month, certificate issue date and validity window.
// Everything is computed in UTC unless a location is passed explicitly.
package timeutil

import (
	"time"
)

// ISODate is the layout of dates printed on certificates.
const ISODate = "2006-01-02"

// CertificateValidityYears is the validity window of an issued certificate.
const CertificateValidityYears = 3

// Clock returns the current instant. Handlers take a Clock so tests can pin time.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// Fixed returns a Clock that always reports t.
func Fixed(t time.Time) Clock {
	return func() time.Time { return t }
}

// OrSystem returns c, or SystemClock when c is nil.
func (c Clock) OrSystem() Clock {
	if c == nil {
		return SystemClock
	}
	return c
}

// AddYears moves t by n calendar years. February 29 maps to February 28
// in a non-leap target year instead of rolling into March.
func AddYears(t time.Time, n int) time.Time {
	y := t.Year() + n
	d := t.Day()
	if t.Month() == time.February && d == 29 && !IsLeap(y) {
		d = 28
	}
	return time.Date(y, t.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// IsLeap reports whether year has 366 days.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// FormatISODate renders t as YYYY-MM-DD.
func FormatISODate(t time.Time) string {
	return t.Format(ISODate)
}

// ParseISODate parses YYYY-MM-DD as a UTC midnight.
func ParseISODate(s string) (time.Time, error) {
	return time.ParseInLocation(ISODate, s, time.UTC)
}

// MonthName is the full English month name ("January").
func MonthName(t time.Time) string {
	return t.Month().String()
}

// DayOfMonth returns the day of month without padding.
func DayOfMonth(t time.Time) int {
	return t.Day()
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ValidityWindow returns the issue date and the last valid date of a certificate
// issued at t.
func ValidityWindow(t time.Time) (from, to time.Time) {
	from = StartOfDay(t)
	return from, AddYears(from, CertificateValidityYears)
}

// Clamp returns t, or floor if t is before floor.
func Clamp(t, floor time.Time) time.Time {
	if t.Before(floor) {
		return floor
	}
	return t
}
