package domain

import "strings"

const keySep = "::"

// CacheKey joins a scope tag and its parts into a snapshot key.
func CacheKey(scope string, parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	all = append(all, strings.TrimSpace(scope))
	for _, p := range parts {
		all = append(all, strings.TrimSpace(p))
	}
	return strings.Join(all, keySep)
}

// NormalizeMember case-normalizes a member identifier for keys.
func NormalizeMember(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// EntriesKey identifies one member's daily entries view.
func EntriesKey(member, date string) string {
	return CacheKey("entries", NormalizeMember(member), date)
}

// TeamWeekKey identifies the seven-day team rollup.
func TeamWeekKey(startDate, endDate string) string {
	return CacheKey("team-week", startDate, endDate)
}

// TeamDayKey identifies the team view of one calendar day.
func TeamDayKey(date string) string {
	return CacheKey("team", date)
}
