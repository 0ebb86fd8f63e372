// Package schedule turns a recurrence specification into concrete class
// sessions and parses schedules imported from freeform text, JSON, ICS,
// XLSX and PDF sources.
//
// All dates are calendar dates in "DD.MM.YYYY" display form (local, no
// timezone); times are "HH:MM" 24-hour strings. Every operation is a pure
// synchronous computation: invalid input yields an empty (or partial)
// result, never a panic or a fatal error.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Entry is one concrete class session.
type Entry struct {
	// ID is an opaque identifier, unique within a schedule. It is generated
	// once and never reused after deletion.
	ID string `json:"id"`
	// Day is the three-letter weekday label, always recomputable from Date.
	Day string `json:"day"`
	// Date is the calendar date in DD.MM.YYYY display form.
	Date string `json:"date"`
	// StartTime / EndTime are optional HH:MM 24-hour strings.
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	// Session is an optional 1-based index when multiple sessions share a date.
	Session int `json:"session,omitempty"`
}

// Mode selects how the generator walks the calendar.
type Mode string

const (
	ModeDateRange    Mode = "date-range"
	ModeSessionCount Mode = "session-count"
	ModeManualList   Mode = "manual-list"
)

// RepeatUnit is the calendar unit used for multi-cycle repetition.
type RepeatUnit string

const (
	RepeatNone   RepeatUnit = "none"
	RepeatWeeks  RepeatUnit = "weeks"
	RepeatMonths RepeatUnit = "months"
	RepeatYears  RepeatUnit = "years"
)

// Days lists the weekday labels in week order, Monday first.
var Days = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// dayLabels maps time.Weekday (0=Sun..6=Sat) to the three-letter labels.
var dayLabels = map[time.Weekday]string{
	time.Sunday:    "Sun",
	time.Monday:    "Mon",
	time.Tuesday:   "Tue",
	time.Wednesday: "Wed",
	time.Thursday:  "Thu",
	time.Friday:    "Fri",
	time.Saturday:  "Sat",
}

// DayLabel returns the three-letter weekday label for t.
func DayLabel(t time.Time) string {
	return dayLabels[t.Weekday()]
}

var dmyPattern = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`)

// ParseDMY parses "DD.MM.YYYY" into a local-midnight time. It returns false
// for strings that do not match the form or do not name a real calendar day
// (e.g. "31.02.2026").
func ParseDMY(s string) (time.Time, bool) {
	m := dmyPattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
	// time.Date normalizes out-of-range components; reject those.
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return time.Time{}, false
	}
	return t, true
}

// FormatDMY formats t as "DD.MM.YYYY".
func FormatDMY(t time.Time) string {
	return fmt.Sprintf("%02d.%02d.%04d", t.Day(), int(t.Month()), t.Year())
}

var hmPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// ParseTimeToMinutes parses "HH:MM" into minutes since midnight. It returns
// false for malformed or out-of-range values.
func ParseTimeToMinutes(s string) (int, bool) {
	m := hmPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, false
	}
	return hh*60 + mm, true
}

// FormatMinutesToTime renders minutes since midnight as "HH:MM", wrapping
// around at 24h.
func FormatMinutesToTime(minutes int) string {
	safe := ((minutes % 1440) + 1440) % 1440
	return fmt.Sprintf("%02d:%02d", safe/60, safe%60)
}

// NewEntryID returns a fresh opaque entry identifier.
func NewEntryID() string {
	return uuid.NewString()
}

// EnsureEntryIDs assigns a fresh id to every entry that lacks one. Existing
// ids are kept so that identity survives round-trips through storage.
func EnsureEntryIDs(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			e.ID = NewEntryID()
		}
		out[i] = e
	}
	return out
}

// entryForDate builds an entry for the given calendar day, deriving the
// weekday label from the date.
func entryForDate(t time.Time, startTime, endTime string, session int) Entry {
	return Entry{
		ID:        NewEntryID(),
		Day:       DayLabel(t),
		Date:      FormatDMY(t),
		StartTime: startTime,
		EndTime:   endTime,
		Session:   session,
	}
}
