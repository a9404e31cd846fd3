package logic

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Weekday indexes the week starting on Monday (0) through Sunday (6).
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// weekdayLabels maps both the German labels the store holds and the
// English two-letter abbreviations onto week indices.
var weekdayLabels = map[string]Weekday{
	"mo": Monday,
	"di": Tuesday, "tu": Tuesday,
	"mi": Wednesday, "we": Wednesday,
	"do": Thursday, "th": Thursday,
	"fr": Friday,
	"sa": Saturday,
	"so": Sunday, "su": Sunday,
}

// ParseWeekday converts a week plan label into a Weekday.
func ParseWeekday(label string) (Weekday, error) {
	d, ok := weekdayLabels[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWeekday, label)
	}
	return d, nil
}

// WeekdayOf returns the Monday-based weekday of t in t's location.
func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % 7)
}

func (d Weekday) String() string {
	switch d {
	case Monday:
		return "Mo"
	case Tuesday:
		return "Di"
	case Wednesday:
		return "Mi"
	case Thursday:
		return "Do"
	case Friday:
		return "Fr"
	case Saturday:
		return "Sa"
	case Sunday:
		return "So"
	}
	return fmt.Sprintf("Weekday(%d)", int(d))
}

// TimeOfDay is a wall-clock time in whole seconds since midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM:SS" (fractional seconds are dropped) or "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second()), nil
		}
	}
	return 0, fmt.Errorf("parse time of day %q", s)
}

// ClockOf returns the time of day of t, truncated to seconds.
func ClockOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

func (c TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(c)/3600, int(c)/60%60, int(c)%60)
}

// SortWeekPlan orders entries by (weekday, time of day) ascending, in place.
func SortWeekPlan(entries []WeekPlanEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Weekday != entries[j].Weekday {
			return entries[i].Weekday < entries[j].Weekday
		}
		return entries[i].TimeOfDay < entries[j].TimeOfDay
	})
}

// SetpointAt returns the AUTO setpoint for now.
//
// The most recent entry at or before now within the current week wins. When
// no entry precedes now this week, the last entry of the sorted plan is used.
// An empty plan yields DefaultPlanTemperature.
func SetpointAt(entries []WeekPlanEntry, now time.Time) float64 {
	if len(entries) == 0 {
		return DefaultPlanTemperature
	}

	sorted := make([]WeekPlanEntry, len(entries))
	copy(sorted, entries)
	SortWeekPlan(sorted)

	today := WeekdayOf(now)
	clock := ClockOf(now)

	var (
		found bool
		temp  float64
	)
	for _, e := range sorted {
		if e.Weekday < today || (e.Weekday == today && e.TimeOfDay <= clock) {
			// sorted, so the last match is the latest
			temp = e.Temperature
			found = true
		}
	}
	if found {
		return temp
	}
	return sorted[len(sorted)-1].Temperature
}
