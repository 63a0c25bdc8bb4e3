// Package timegrid holds the pure geometry and calendar-cell math behind
// the day, week and month calendar layouts. Everything here is a pure
// function of its inputs.
package timegrid

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	ErrFormat       = errors.New("malformed time of day, want HH:MM")
	ErrInvalidRange = errors.New("slot end must be after slot start")
)

// Geometry is the vertical placement of a slot on a day column, in pixels.
type Geometry struct {
	Offset float64
	Length float64
}

// SlotGeometry converts an "HH:MM" interval into pixel geometry relative
// to the top of the grid. Zero and negative length intervals are not
// renderable and are rejected with ErrInvalidRange.
func SlotGeometry(start, end string, pixelsPerHour, gridStartHour float64) (Geometry, error) {
	startHour, err := parseClock(start)
	if err != nil {
		return Geometry{}, err
	}
	endHour, err := parseClock(end)
	if err != nil {
		return Geometry{}, err
	}
	if endHour <= startHour {
		return Geometry{}, fmt.Errorf("%w: %s..%s", ErrInvalidRange, start, end)
	}

	return Geometry{
		Offset: (startHour - gridStartHour) * pixelsPerHour,
		Length: (endHour - startHour) * pixelsPerHour,
	}, nil
}

// parseClock parses a strict "HH:MM" string into a fractional hour of day.
func parseClock(s string) (float64, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: %q", ErrFormat, s)
	}
	hour, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrFormat, s)
	}
	minute, err := strconv.Atoi(s[3:])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrFormat, s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrFormat, s)
	}
	return float64(hour) + float64(minute)/60, nil
}

// WeekDates returns the 7 consecutive dates of the week containing anchor,
// starting at weekStart.
func WeekDates(anchor time.Time, weekStart time.Weekday) [7]time.Time {
	day := midnight(anchor)
	back := (int(day.Weekday()) - int(weekStart) + 7) % 7
	first := day.AddDate(0, 0, -back)

	var week [7]time.Time
	for i := range week {
		week[i] = first.AddDate(0, 0, i)
	}
	return week
}

// MonthCells returns the dates filling the month grid for anchor's month:
// the whole month plus leading and trailing adjacent-month days so the
// result is always a multiple of 7, starting on weekStart.
func MonthCells(anchor time.Time, weekStart time.Weekday) []time.Time {
	year, month, _ := anchor.Date()
	first := time.Date(year, month, 1, 0, 0, 0, 0, anchor.Location())
	last := first.AddDate(0, 1, -1)

	back := (int(first.Weekday()) - int(weekStart) + 7) % 7
	gridStart := first.AddDate(0, 0, -back)

	forward := (int(weekStart) + 6 - int(last.Weekday()) + 7) % 7
	gridEnd := last.AddDate(0, 0, forward)

	days := int(gridEnd.Sub(gridStart).Hours()/24+0.5) + 1
	cells := make([]time.Time, 0, days)
	for d := gridStart; !d.After(gridEnd); d = d.AddDate(0, 0, 1) {
		cells = append(cells, d)
	}
	return cells
}

func midnight(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
