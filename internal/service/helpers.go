package service

import (
	"strings"
	"time"

	"github.com/alexanderramin/togglguard/internal/domain"
)

// resolveMember maps a raw member name onto the configured member.
func resolveMember(team *domain.Team, raw string) (domain.Member, error) {
	if strings.TrimSpace(raw) == "" {
		return domain.Member{}, ErrMissingMember
	}
	m, ok := team.Resolve(raw)
	if !ok {
		return domain.Member{}, ErrUnknownMember
	}
	return m, nil
}

// resolveDate defaults an empty date to today's UTC date and validates it.
func resolveDate(raw string, now time.Time) (string, error) {
	date := strings.TrimSpace(raw)
	if date == "" {
		return now.UTC().Format(domain.DateLayout), nil
	}
	if !domain.ValidDate(date) {
		return "", ErrInvalidDate
	}
	return date, nil
}
