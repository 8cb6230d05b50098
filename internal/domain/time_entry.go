package domain

import (
	"errors"
	"fmt"
	"time"
)

// MaxEntryDuration is the ceiling for a running or manually edited entry.
const MaxEntryDuration = 2 * time.Hour

var (
	// ErrMaxDuration indicates an entry would exceed MaxEntryDuration.
	ErrMaxDuration = errors.New("time entry exceeds the maximum duration of 2 hours")

	// ErrInvalidRange indicates a stop time that is not after the start time.
	ErrInvalidRange = errors.New("time entry stop must be after start")

	// ErrNoRunningEntry indicates the member has no open time entry.
	ErrNoRunningEntry = errors.New("no running time entry")
)

// TimeEntry is a locally stored time entry. An entry with a nil StopAt is
// running; each member has at most one running entry.
type TimeEntry struct {
	ID          string
	Member      string
	Description string
	Project     string
	StartAt     time.Time
	StopAt      *time.Time
	DurationSec int64
	// StatDate is the member-local calendar date (YYYY-MM-DD) the entry is
	// booked on. Empty while the entry is running.
	StatDate  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Running reports whether the entry is still open.
func (e *TimeEntry) Running() bool {
	return e.StopAt == nil
}

// Elapsed returns how long the entry has been running at now, or its stored
// duration once stopped.
func (e *TimeEntry) Elapsed(now time.Time) time.Duration {
	if e.StopAt != nil {
		return e.StopAt.Sub(e.StartAt)
	}
	d := now.Sub(e.StartAt)
	if d < 0 {
		return 0
	}
	return d
}

// ExceedsMax reports whether a running entry has passed MaxEntryDuration.
func (e *TimeEntry) ExceedsMax(now time.Time) bool {
	return e.Running() && e.Elapsed(now) > MaxEntryDuration
}

// Stop closes the entry at stopAt and books it on the local date derived
// from tzOffsetMinutes.
func (e *TimeEntry) Stop(stopAt time.Time, tzOffsetMinutes int, now time.Time) error {
	if !stopAt.After(e.StartAt) {
		return ErrInvalidRange
	}
	stop := stopAt.UTC()
	e.StopAt = &stop
	e.DurationSec = int64(stop.Sub(e.StartAt) / time.Second)
	e.StatDate = LocalDate(e.StartAt, tzOffsetMinutes)
	e.UpdatedAt = now
	return nil
}

// Reschedule replaces the start and stop of a closed entry, enforcing the
// duration ceiling.
func (e *TimeEntry) Reschedule(startAt, stopAt time.Time, tzOffsetMinutes int, now time.Time) error {
	if !stopAt.After(startAt) {
		return ErrInvalidRange
	}
	if stopAt.Sub(startAt) > MaxEntryDuration {
		return fmt.Errorf("entry lasting %s: %w", stopAt.Sub(startAt).Round(time.Second), ErrMaxDuration)
	}
	e.StartAt = startAt.UTC()
	return e.Stop(stopAt, tzOffsetMinutes, now)
}

// Backdate moves the start of a running entry so that it has been running
// for elapsed at now.
func (e *TimeEntry) Backdate(elapsed time.Duration, now time.Time) error {
	if !e.Running() {
		return ErrNoRunningEntry
	}
	if elapsed > MaxEntryDuration {
		return fmt.Errorf("backdating by %s: %w", elapsed.Round(time.Second), ErrMaxDuration)
	}
	e.StartAt = now.Add(-elapsed).UTC()
	e.UpdatedAt = now
	return nil
}

// IsValidationError reports whether err is a business rule violation that
// should be reported to the caller as a bad request.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMaxDuration) || errors.Is(err, ErrInvalidRange)
}
