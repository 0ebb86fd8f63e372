package schedule

import (
	"time"

	"github.com/teambition/rrule-go"

	appLog "coursebuilder/internal/log"
)

// MaxTargetSessions caps session-count generation so a single request stays
// bounded regardless of input.
const MaxTargetSessions = 240

// Spec is a recurrence specification for the generator.
type Spec struct {
	Mode Mode `json:"mode"`

	// StartDate is required. EndDate is required iff Mode is date-range.
	// Both are DD.MM.YYYY.
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`

	// TargetSessions is required iff Mode is session-count (1..240).
	TargetSessions int `json:"target_sessions,omitempty"`

	// ActiveDays is the set of weekday labels sessions may fall on. An empty
	// set yields no entries.
	ActiveDays []string `json:"active_days"`

	// SessionsPerDay is the number of entries emitted per active day (>= 1).
	SessionsPerDay int `json:"sessions_per_day"`

	// StartTime / EndTime are optional HH:MM. When both are valid and
	// SessionsPerDay > 1, the window is sliced into equal sub-ranges.
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`

	// Repeat settings are only meaningful in date-range mode.
	RepeatUnit   RepeatUnit `json:"repeat_unit,omitempty"`
	RepeatEvery  int        `json:"repeat_every,omitempty"`
	RepeatCycles int        `json:"repeat_cycles,omitempty"`
}

// ruleWeekdays maps weekday labels to rrule weekday constants.
var ruleWeekdays = map[string]rrule.Weekday{
	"Mon": rrule.MO,
	"Tue": rrule.TU,
	"Wed": rrule.WE,
	"Thu": rrule.TH,
	"Fri": rrule.FR,
	"Sat": rrule.SA,
	"Sun": rrule.SU,
}

// timeSlice is one start/end sub-range of a day.
type timeSlice struct {
	start string
	end   string
}

// Generate expands spec into an ordered list of concrete entries.
//
// Failure policy is fail-soft throughout: unparseable dates, a reversed
// date range, or an empty active-day set all yield an empty list, never an
// error. Final ordering is chronological within a cycle and cycle-major
// across repeat cycles (all of cycle 0, then all of cycle 1, ...).
func Generate(spec Spec) []Entry {
	entries := []Entry{}

	start, ok := ParseDMY(spec.StartDate)
	if !ok {
		return entries
	}

	weekdays := make([]rrule.Weekday, 0, len(spec.ActiveDays))
	for _, label := range spec.ActiveDays {
		if wd, ok := ruleWeekdays[label]; ok {
			weekdays = append(weekdays, wd)
		}
	}
	if len(weekdays) == 0 {
		return entries
	}

	perDay := spec.SessionsPerDay
	if perDay < 1 {
		perDay = 1
	}
	slices := daySlices(spec.StartTime, spec.EndTime, perDay)

	switch spec.Mode {
	case ModeDateRange:
		end, ok := ParseDMY(spec.EndDate)
		if !ok || end.Before(start) {
			return entries
		}
		base := expandRange(start, end, weekdays, slices)
		return repeatCycles(base, spec)

	case ModeSessionCount:
		target := spec.TargetSessions
		if target < 1 {
			return entries
		}
		if target > MaxTargetSessions {
			target = MaxTargetSessions
		}
		return expandCount(start, target, weekdays, slices)

	default:
		// manual-list (and anything unknown): entries are supplied by the
		// caller, not generated.
		return entries
	}
}

// daySlices splits the day window into perDay contiguous sub-ranges. The
// slice length is floor-divided and the final slice's end is pinned to the
// window end to absorb the rounding remainder. When slicing preconditions
// are not met (missing/invalid times, perDay == 1, window too short) every
// sub-session carries the unsplit start/end.
func daySlices(startTime, endTime string, perDay int) []timeSlice {
	unsplit := make([]timeSlice, perDay)
	for i := range unsplit {
		unsplit[i] = timeSlice{start: startTime, end: endTime}
	}
	if perDay <= 1 || startTime == "" || endTime == "" {
		return unsplit
	}

	startMin, okStart := ParseTimeToMinutes(startTime)
	endMin, okEnd := ParseTimeToMinutes(endTime)
	if !okStart || !okEnd {
		return unsplit
	}

	sliceLen := (endMin - startMin) / perDay
	if sliceLen <= 0 {
		return unsplit
	}

	out := make([]timeSlice, perDay)
	for i := 0; i < perDay; i++ {
		from := startMin + i*sliceLen
		to := from + sliceLen
		if i == perDay-1 {
			to = endMin
		}
		out[i] = timeSlice{
			start: FormatMinutesToTime(from),
			end:   FormatMinutesToTime(to),
		}
	}
	return out
}

// emitDay appends the per-day sessions for one calendar date.
func emitDay(entries []Entry, day time.Time, slices []timeSlice) []Entry {
	for i, sl := range slices {
		session := 0
		if len(slices) > 1 {
			session = i + 1
		}
		entries = append(entries, entryForDate(day, sl.start, sl.end, session))
	}
	return entries
}

// expandRange walks every active weekday in [start, end] inclusive.
func expandRange(start, end time.Time, weekdays []rrule.Weekday, slices []timeSlice) []Entry {
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   start,
		Until:     end,
		Byweekday: weekdays,
	})
	if err != nil {
		appLog.Error("schedule: recurrence rule rejected", err)
		return []Entry{}
	}

	entries := []Entry{}
	for _, day := range r.All() {
		entries = emitDay(entries, day, slices)
	}
	return entries
}

// expandCount walks active weekdays forward from start until exactly target
// entries have been produced, trimming any excess from the final day.
func expandCount(start time.Time, target int, weekdays []rrule.Weekday, slices []timeSlice) []Entry {
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   start,
		Byweekday: weekdays,
	})
	if err != nil {
		appLog.Error("schedule: recurrence rule rejected", err)
		return []Entry{}
	}

	entries := []Entry{}
	next := r.Iterator()
	for len(entries) < target {
		day, ok := next()
		if !ok {
			break
		}
		entries = emitDay(entries, day, slices)
	}
	if len(entries) > target {
		entries = entries[:target]
	}
	return entries
}

// repeatCycles applies multi-cycle repetition to the base entry set. Cycle 0
// is the unshifted base; each later cycle shifts every base date forward by
// RepeatEvery * cycle of the chosen unit, recomputing the weekday label and
// assigning fresh ids. Output stays cycle-major, not globally date-sorted.
func repeatCycles(base []Entry, spec Spec) []Entry {
	if spec.RepeatUnit == "" || spec.RepeatUnit == RepeatNone {
		return base
	}
	cycles := spec.RepeatCycles
	if cycles < 1 {
		cycles = 1
	}
	every := spec.RepeatEvery
	if every < 1 {
		every = 1
	}

	out := make([]Entry, 0, len(base)*cycles)
	out = append(out, base...)

	for cycle := 1; cycle < cycles; cycle++ {
		for _, e := range base {
			d, ok := ParseDMY(e.Date)
			if !ok {
				continue
			}
			var shifted time.Time
			switch spec.RepeatUnit {
			case RepeatWeeks:
				shifted = d.AddDate(0, 0, 7*every*cycle)
			case RepeatMonths:
				shifted = d.AddDate(0, every*cycle, 0)
			case RepeatYears:
				shifted = d.AddDate(every*cycle, 0, 0)
			default:
				shifted = d
			}
			out = append(out, entryForDate(shifted, e.StartTime, e.EndTime, e.Session))
		}
	}
	return out
}
