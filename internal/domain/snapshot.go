package domain

import (
	"encoding/json"
	"time"
)

// Snapshot is a cached, timestamped copy of a computed response payload.
type Snapshot struct {
	Key       string
	Payload   json.RawMessage
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Fresh reports whether the snapshot is still within its TTL at now.
func (s *Snapshot) Fresh(now time.Time) bool {
	return !now.After(s.ExpiresAt)
}

// IdempotencyRecord stores the outcome of a mutating request so retries with
// the same token replay it instead of executing again.
type IdempotencyRecord struct {
	Scope     string
	SubjectID string
	Token     string
	Status    int
	Body      json.RawMessage
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Live reports whether the record can still be replayed at now.
func (r *IdempotencyRecord) Live(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}
