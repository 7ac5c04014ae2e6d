// Package schedule holds the interval arithmetic behind booking: the half-open
// overlap rule used for conflict detection and the expansion of recurring
// weekly availability into concrete start times.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"clinic-scheduler/internal/models"
)

// Overlaps reports whether [s1, e1) and [s2, e2) intersect. The end instant is
// excluded, so an interval starting exactly when another ends does not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// FindConflict scans existing appointments for the first SCHEDULED one whose
// interval overlaps [start, end). Appointments in any other status never
// conflict.
func FindConflict(existing []models.Appointment, start, end time.Time) (*models.Appointment, bool) {
	for i := range existing {
		if existing[i].Status != models.StatusScheduled {
			continue
		}
		if Overlaps(existing[i].Start, existing[i].End, start, end) {
			return &existing[i], true
		}
	}

	return nil, false
}

// BookableStarts expands a provider's weekly availability into the "HH:MM"
// start times bookable on the given date. Slots are filtered to the date's
// weekday; within a slot one start is emitted per duration-minute step while
// the full appointment still fits before the slot closes. Results follow slot
// order and are not re-sorted. Existing bookings are not consulted here;
// conflict detection happens at creation time.
func BookableStarts(slots []models.AvailabilitySlot, date time.Time, durationMinutes int) []string {
	starts := []string{}
	if durationMinutes < 1 {
		return starts
	}

	day := int(date.Weekday())

	for _, slot := range slots {
		if !slot.IsActive || slot.DayOfWeek != day {
			continue
		}

		open, err := ParseClock(slot.StartTime)
		if err != nil {
			continue
		}

		closed, err := ParseClock(slot.EndTime)
		if err != nil {
			continue
		}

		// A slot stored with end <= start (e.g. an overnight window) yields
		// nothing: the loop condition is never true.
		for cur := open; cur+durationMinutes <= closed; cur += durationMinutes {
			starts = append(starts, FormatClock(cur))
		}
	}

	return starts
}

// ParseClock converts a 24-hour "HH:MM" string to minutes since midnight.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q", s)
	}

	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}

	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}

	return h*60 + m, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
