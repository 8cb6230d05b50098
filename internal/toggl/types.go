package toggl

import (
	"sort"
	"time"
)

// TimeEntry is a Toggl v9 time entry. A running entry has a nil Stop and a
// negative Duration.
type TimeEntry struct {
	ID          int64      `json:"id"`
	WorkspaceID int64      `json:"workspace_id,omitempty"`
	ProjectID   *int64     `json:"project_id,omitempty"`
	Description string     `json:"description"`
	Start       time.Time  `json:"start"`
	Stop        *time.Time `json:"stop"`
	Duration    int64      `json:"duration"`
	Tags        []string   `json:"tags,omitempty"`
}

// Running reports whether the entry is still in progress.
func (e TimeEntry) Running() bool {
	return e.Duration < 0
}

// Project is a Toggl project.
type Project struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// EntrySeconds returns the booked seconds of e. Running entries count the
// time elapsed since their start, never less than zero.
func EntrySeconds(e TimeEntry, now time.Time) int64 {
	if e.Duration >= 0 {
		return e.Duration
	}
	if e.Start.IsZero() {
		return 0
	}
	secs := int64(now.Sub(e.Start) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// SortByStart orders entries by start time, oldest first.
func SortByStart(entries []TimeEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Start.Before(entries[j].Start)
	})
}

// ProjectNames indexes projects by ID.
func ProjectNames(projects []Project) map[int64]string {
	names := make(map[int64]string, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
	}
	return names
}

// ProjectName resolves the project name of e, or "" when it has none.
func ProjectName(e TimeEntry, names map[int64]string) string {
	if e.ProjectID == nil {
		return ""
	}
	return names[*e.ProjectID]
}
