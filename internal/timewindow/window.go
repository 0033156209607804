// Package timewindow provides time-of-day values and daily window arithmetic.
// All operations are pure; callers combine results with a date to get instants.
package timewindow

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// TimeOfDay is a clock time within a day, no date or timezone attached.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// Parse parses a "HH:MM" string into a TimeOfDay.
func Parse(s string) (TimeOfDay, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time format: %s", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid hour: %w", err)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid minute: %w", err)
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("time out of range: %s", s)
	}

	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// MustParse parses a "HH:MM" string and panics on error. For constants and tests.
func MustParse(s string) TimeOfDay {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// FromTime extracts the time-of-day from a full instant.
func FromTime(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// String formats the time as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns the minute offset from midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Before reports whether t is strictly earlier in the day than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.Minutes() < other.Minutes()
}

// After reports whether t is strictly later in the day than other.
func (t TimeOfDay) After(other TimeOfDay) bool {
	return t.Minutes() > other.Minutes()
}

// On combines the time-of-day with the date portion of the given instant.
func (t TimeOfDay) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, 0, 0, date.Location())
}

// AddMinutes returns the time-of-day shifted forward by n minutes, wrapping
// past midnight, plus the number of days wrapped.
func (t TimeOfDay) AddMinutes(n int) (TimeOfDay, int) {
	total := t.Minutes() + n
	days := total / minutesPerDay
	total %= minutesPerDay
	if total < 0 {
		total += minutesPerDay
		days--
	}
	return TimeOfDay{Hour: total / 60, Minute: total % 60}, days
}

// Window is a daily time range. A window with Start > End wraps past midnight,
// covering [Start, 24:00) on one day and [00:00, End] on the next.
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

// NewWindow builds a window from two "HH:MM" strings.
func NewWindow(start, end string) (Window, error) {
	s, err := Parse(start)
	if err != nil {
		return Window{}, err
	}
	e, err := Parse(end)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: s, End: e}, nil
}

// Wraps reports whether the window spans midnight.
func (w Window) Wraps() bool {
	return w.Start.Minutes() > w.End.Minutes()
}

// Duration returns the length of the window.
func (w Window) Duration() time.Duration {
	minutes := w.End.Minutes() - w.Start.Minutes()
	if minutes < 0 {
		minutes += minutesPerDay
	}
	return time.Duration(minutes) * time.Minute
}

// Contains reports whether t falls within the window, inclusive of both
// bounds. Wrapping windows cover [Start, 24:00) plus [00:00, End].
func (w Window) Contains(t TimeOfDay) bool {
	tm := t.Minutes()
	if w.Wraps() {
		return tm >= w.Start.Minutes() || tm <= w.End.Minutes()
	}
	return tm >= w.Start.Minutes() && tm <= w.End.Minutes()
}

// ClampForward shifts t into the active window. Times before the window start
// move to the start; times at or past the window end move to the start of the
// next day, reported via rolled.
func (w Window) ClampForward(t TimeOfDay) (clamped TimeOfDay, rolled bool) {
	switch {
	case t.Minutes() < w.Start.Minutes():
		return w.Start, false
	case t.Minutes() >= w.End.Minutes():
		return w.Start, true
	default:
		return t, false
	}
}
