// Package idempotency replays the stored outcome of a mutating request when
// a client retries it with the same token.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"cdr.dev/slog"
	"github.com/coder/quartz"

	"github.com/alexanderramin/togglguard/internal/domain"
	"github.com/alexanderramin/togglguard/internal/repository"
)

// HeaderKey is the request header carrying the idempotency token.
const HeaderKey = "X-Idempotency-Key"

// Result TTLs. Error outcomes are kept shorter so a corrected retry can run
// soon after.
const (
	SuccessTTL = 180 * time.Second
	ErrorTTL   = 60 * time.Second
)

// Replay is a previously stored response.
type Replay struct {
	Status int
	Body   json.RawMessage
}

// Guard reads and writes idempotency records. Store failures never reach
// the caller: a failed read executes the request, a failed write only loses
// the replay.
type Guard struct {
	repo  repository.IdempotencyRepo
	clock quartz.Clock
	log   slog.Logger
}

func NewGuard(repo repository.IdempotencyRepo, clock quartz.Clock, log slog.Logger) *Guard {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Guard{repo: repo, clock: clock, log: log.Named("idempotency")}
}

// ReadReplay returns the live record for (scope, subject, token). An empty
// token always misses.
func (g *Guard) ReadReplay(ctx context.Context, scope, subject, token string) (*Replay, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, false
	}
	rec, err := g.repo.Get(ctx, scope, subjectID(subject), token)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			g.log.Warn(ctx, "idempotency read failed",
				slog.F("scope", scope), slog.F("subject", subject), slog.Error(err))
		}
		return nil, false
	}
	if !rec.Live(g.clock.Now()) {
		return nil, false
	}
	return &Replay{Status: rec.Status, Body: rec.Body}, true
}

// WriteResult stores the outcome of one execution for ttl. An empty token
// is a no-op. While a record for the key is live it is kept as is.
func (g *Guard) WriteResult(ctx context.Context, scope, subject, token string, status int, body any, ttl time.Duration) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	raw, err := json.Marshal(body)
	if err != nil {
		g.log.Error(ctx, "encoding idempotent response", slog.F("scope", scope), slog.Error(err))
		return
	}
	now := g.clock.Now().UTC()
	rec := &domain.IdempotencyRecord{
		Scope:     scope,
		SubjectID: subjectID(subject),
		Token:     token,
		Status:    status,
		Body:      raw,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	stored, err := g.repo.Insert(ctx, rec, now)
	if err != nil {
		g.log.Warn(ctx, "idempotency write failed",
			slog.F("scope", scope), slog.F("subject", subject), slog.Error(err))
		return
	}
	if !stored {
		g.log.Debug(ctx, "idempotency record already present", slog.F("scope", scope), slog.F("subject", subject))
	}
}

// TTLFor picks the retention for a response status.
func TTLFor(status int) time.Duration {
	if status >= 200 && status < 300 {
		return SuccessTTL
	}
	return ErrorTTL
}

// Purge removes records that expired before now.
func (g *Guard) Purge(ctx context.Context) (int64, error) {
	return g.repo.DeleteExpired(ctx, g.clock.Now())
}

func subjectID(subject string) string {
	return domain.NormalizeMember(subject)
}
