package timetable

import (
	"fmt"
	"strconv"
	"strings"
)

// Period is the wall-clock interval of one period index, formatted HH:MM.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ComputePeriods maps a start time, a period length in minutes and a period
// count to back-to-back wall-clock intervals. Minute arithmetic wraps across
// hour and day boundaries. Pure and stateless; the allocator uses it to stamp
// placed slots and the PDF exporter to label rows.
func ComputePeriods(startTime string, periodMinutes, periodsPerDay int) ([]Period, error) {
	if periodMinutes < 1 {
		return nil, fmt.Errorf("period minutes must be positive, got %d", periodMinutes)
	}
	if periodsPerDay < 1 {
		return nil, fmt.Errorf("periods per day must be positive, got %d", periodsPerDay)
	}
	cursor, err := parseClock(startTime)
	if err != nil {
		return nil, err
	}

	periods := make([]Period, 0, periodsPerDay)
	for i := 0; i < periodsPerDay; i++ {
		next := (cursor + periodMinutes) % (24 * 60)
		periods = append(periods, Period{Start: formatClock(cursor), End: formatClock(next)})
		cursor = next
	}
	return periods, nil
}

func parseClock(raw string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return hour*60 + minute, nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
