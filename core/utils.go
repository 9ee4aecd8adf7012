package core

import (
	"math"
	"strings"
	"time"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Round2 rounds to 2 decimal places; rates are reported as percentages
// with fixed precision.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// DateOnly truncates t to its calendar day in UTC. Attendance is keyed by
// day, never by time of day.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
