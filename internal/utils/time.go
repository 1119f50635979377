package utils

import (
	"math"
	"time"
)

// FormatDate formats a time.Time as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// FormatTimestamp formats a time.Time as RFC 3339 in UTC
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// RoundTo rounds v to the given number of decimal places
func RoundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// ElapsedSeconds returns the seconds between start and end, rounded to 2 decimal places.
// A nil start yields 0; a nil end measures against now.
func ElapsedSeconds(start, end *time.Time, now time.Time) float64 {
	if start == nil {
		return 0
	}
	stop := now
	if end != nil {
		stop = *end
	}
	return RoundTo(stop.Sub(*start).Seconds(), 2)
}
