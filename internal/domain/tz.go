package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	minTZOffsetMinutes = -720
	maxTZOffsetMinutes = 840

	// DateLayout is the calendar date format used in requests and cache keys.
	DateLayout = "2006-01-02"
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ClampTZOffset bounds a timezone offset in minutes to [-720, 840].
func ClampTZOffset(minutes int) int {
	if minutes < minTZOffsetMinutes {
		return minTZOffsetMinutes
	}
	if minutes > maxTZOffsetMinutes {
		return maxTZOffsetMinutes
	}
	return minutes
}

// ParseTZOffset parses a raw offset value. Anything that is not a finite
// number yields 0; fractional minutes are truncated.
func ParseTZOffset(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f > maxTZOffsetMinutes {
		return maxTZOffsetMinutes
	}
	if f < minTZOffsetMinutes {
		return minTZOffsetMinutes
	}
	return ClampTZOffset(int(math.Trunc(f)))
}

// TZOffsetFromPtr clamps an optional offset, treating nil as 0.
func TZOffsetFromPtr(p *int) int {
	if p == nil {
		return 0
	}
	return ClampTZOffset(*p)
}

// ValidDate reports whether s is a YYYY-MM-DD calendar date.
func ValidDate(s string) bool {
	if !dateRe.MatchString(s) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// DayWindow returns the UTC instants bounding the calendar date for a client
// whose offset is tzOffsetMinutes (minutes to add to local time to get UTC).
func DayWindow(date string, tzOffsetMinutes int) (time.Time, time.Time, error) {
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	shift := time.Duration(ClampTZOffset(tzOffsetMinutes)) * time.Minute
	start := day.Add(shift)
	end := day.Add(24*time.Hour - time.Millisecond).Add(shift)
	return start, end, nil
}

// LocalDate returns the member-local calendar date of t.
func LocalDate(t time.Time, tzOffsetMinutes int) string {
	shift := time.Duration(ClampTZOffset(tzOffsetMinutes)) * time.Minute
	return t.UTC().Add(-shift).Format(DateLayout)
}

// LastSevenDates returns the seven calendar dates ending at endDate, oldest first.
func LastSevenDates(endDate string) ([]string, error) {
	end, err := time.Parse(DateLayout, endDate)
	if err != nil {
		return nil, err
	}
	dates := make([]string, 0, 7)
	for i := 6; i >= 0; i-- {
		dates = append(dates, end.AddDate(0, 0, -i).Format(DateLayout))
	}
	return dates, nil
}
