package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/alexanderramin/togglguard/internal/domain"
	"github.com/alexanderramin/togglguard/internal/fetch"
)

// viewMeta describes where a cached view came from. Its fields are merged
// into the payload object.
type viewMeta struct {
	Stale          bool    `json:"stale"`
	Warning        *string `json:"warning"`
	QuotaRemaining *string `json:"quotaRemaining"`
	QuotaResetsIn  *string `json:"quotaResetsIn"`
	RetryAfter     *string `json:"retryAfter"`
	CachedAt       *string `json:"cachedAt"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// envelope flattens a view into a single JSON object: the payload fields
// followed by the view metadata.
func envelope[T any](v *fetch.View[T]) (map[string]json.RawMessage, error) {
	payload, err := json.Marshal(v.Payload)
	if err != nil {
		return nil, err
	}
	out := map[string]json.RawMessage{}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}

	meta := viewMeta{
		Stale:          v.Stale,
		Warning:        optional(v.Warning),
		QuotaRemaining: optional(v.QuotaRemaining),
		QuotaResetsIn:  optional(v.QuotaResetsIn),
		RetryAfter:     optional(v.RetryAfter),
	}
	if !v.CachedAt.IsZero() {
		meta.CachedAt = optional(v.CachedAt.UTC().Format(time.RFC3339))
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for k, f := range fields {
		out[k] = f
	}
	return out, nil
}

func writeView[T any](s *Server, rw http.ResponseWriter, r *http.Request, v *fetch.View[T], err error) {
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	body, err := envelope(v)
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	Write(rw, http.StatusOK, body)
}

// timeEntryResponse is the wire form of a locally stored entry.
type timeEntryResponse struct {
	ID          string     `json:"id"`
	Member      string     `json:"member"`
	Description string     `json:"description"`
	Project     string     `json:"project"`
	StartAt     time.Time  `json:"startAt"`
	StopAt      *time.Time `json:"stopAt"`
	DurationSec int64      `json:"durationSeconds"`
	StatDate    *string    `json:"statDate"`
}

func entryResponse(e *domain.TimeEntry) *timeEntryResponse {
	if e == nil {
		return nil
	}
	resp := &timeEntryResponse{
		ID:          e.ID,
		Member:      e.Member,
		Description: e.Description,
		Project:     e.Project,
		StartAt:     e.StartAt.UTC(),
		DurationSec: e.DurationSec,
		StatDate:    optional(e.StatDate),
	}
	if e.StopAt != nil {
		stop := e.StopAt.UTC()
		resp.StopAt = &stop
	}
	return resp
}
