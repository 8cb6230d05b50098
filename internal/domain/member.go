package domain

import (
	"sort"
	"strings"
)

// Member is a configured team member and the Toggl API token used on their behalf.
type Member struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

// Team is the static set of configured members.
type Team struct {
	members []Member
}

// NewTeam builds a Team, trimming names and tokens and dropping incomplete
// or duplicate (case-insensitive) members.
func NewTeam(members []Member) *Team {
	seen := make(map[string]bool, len(members))
	t := &Team{}
	for _, m := range members {
		m.Name = strings.TrimSpace(m.Name)
		m.Token = strings.TrimSpace(m.Token)
		if m.Name == "" || m.Token == "" {
			continue
		}
		key := NormalizeMember(m.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		t.members = append(t.members, m)
	}
	return t
}

// Resolve finds a member by case-insensitive name.
func (t *Team) Resolve(name string) (Member, bool) {
	key := NormalizeMember(name)
	if key == "" {
		return Member{}, false
	}
	for _, m := range t.members {
		if NormalizeMember(m.Name) == key {
			return m, true
		}
	}
	return Member{}, false
}

// Members returns the configured members in configuration order.
func (t *Team) Members() []Member {
	out := make([]Member, len(t.members))
	copy(out, t.members)
	return out
}

// Names returns the canonical member names, sorted.
func (t *Team) Names() []string {
	names := make([]string, 0, len(t.members))
	for _, m := range t.members {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of configured members.
func (t *Team) Len() int {
	return len(t.members)
}
