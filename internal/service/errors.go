package service

import (
	"errors"

	"github.com/alexanderramin/togglguard/internal/domain"
)

var (
	// ErrMissingMember indicates a request without a member name.
	ErrMissingMember = errors.New("missing member")

	// ErrUnknownMember indicates a member that is not configured.
	ErrUnknownMember = errors.New("unknown member")

	// ErrInvalidDate indicates a date that is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")

	// ErrNoMembers indicates a team view was requested with no members configured.
	ErrNoMembers = errors.New("no members configured")
)

// IsBadRequest reports whether err should be reported as a client error.
func IsBadRequest(err error) bool {
	return errors.Is(err, ErrMissingMember) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrNoMembers) ||
		domain.IsValidationError(err)
}
