package httpapi

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/alexanderramin/togglguard/internal/domain"
	"github.com/alexanderramin/togglguard/internal/idempotency"
	"github.com/alexanderramin/togglguard/internal/service"
	"github.com/alexanderramin/togglguard/internal/timerguard"
)

// HeaderReplayed marks a response served from a stored idempotency record.
const HeaderReplayed = "X-Idempotent-Replay"

// Idempotency scopes, one per mutating operation.
const (
	scopePatchCurrent = "time-entries-current-patch"
	scopeStart        = "time-entries-start"
	scopeStop         = "time-entries-stop"
)

type timerResponse struct {
	Member  string             `json:"member"`
	Entry   *timeEntryResponse `json:"entry"`
	Warning *string            `json:"warning"`
}

type currentTimerResponse struct {
	Member  string             `json:"member"`
	Current *timeEntryResponse `json:"current"`
	Warning *string            `json:"warning"`
}

type startTimerRequest struct {
	Member      string `json:"member" validate:"required"`
	Description string `json:"description"`
	Project     string `json:"project"`
	TZOffset    *int   `json:"tzOffset"`
}

type stopTimerRequest struct {
	Member   string `json:"member" validate:"required"`
	TZOffset *int   `json:"tzOffset"`
}

type patchTimerRequest struct {
	Member         string   `json:"member" validate:"required"`
	Description    *string  `json:"description"`
	Project        *string  `json:"project"`
	ElapsedSeconds *float64 `json:"elapsedSeconds"`
	TZOffset       *int     `json:"tzOffset"`
}

type updateEntryRequest struct {
	Member      string    `json:"member" validate:"required"`
	EntryID     string    `json:"entryId" validate:"required"`
	Description *string   `json:"description"`
	Project     *string   `json:"project"`
	StartAt     time.Time `json:"startAt" validate:"required"`
	StopAt      time.Time `json:"stopAt" validate:"required"`
	TZOffset    *int      `json:"tzOffset"`
}

type deleteEntryRequest struct {
	Member  string `json:"member" validate:"required"`
	EntryID string `json:"entryId" validate:"required"`
}

type okResponse struct {
	OK    bool               `json:"ok"`
	Entry *timeEntryResponse `json:"entry,omitempty"`
}

func timerResult(res *service.TimerResult) timerResponse {
	return timerResponse{
		Member:  res.Member,
		Entry:   entryResponse(res.Entry),
		Warning: optional(timerguard.AutoStopWarning(res.AutoStopped)),
	}
}

// idempotent runs a mutation at most once per idempotency token. A live
// record for (scope, member, token) is replayed byte for byte; otherwise run
// executes and its outcome, success or error, is stored. Requests for
// unknown members are rejected before anything is recorded.
func (s *Server) idempotent(rw http.ResponseWriter, r *http.Request, scope, member string, run func(ctx context.Context) (any, error)) {
	ctx := r.Context()
	token := r.Header.Get(idempotency.HeaderKey)
	if replay, ok := s.idem.ReadReplay(ctx, scope, member, token); ok {
		rw.Header().Set(HeaderReplayed, "true")
		writeRaw(rw, replay.Status, replay.Body)
		return
	}
	if _, err := s.timers.ResolveMember(member); err != nil {
		s.writeError(rw, r, err)
		return
	}

	status := http.StatusOK
	body, err := run(ctx)
	if err != nil {
		var resp Response
		status, resp = errorResponse(rw.Header(), err)
		if status == http.StatusInternalServerError {
			s.log.Error(ctx, "request failed", errField(r, err)...)
		}
		body = resp
	}
	raw, err := encode(body)
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	s.idem.WriteResult(ctx, scope, member, token, status, json.RawMessage(raw), idempotency.TTLFor(status))
	writeRaw(rw, status, raw)
}

func (s *Server) currentTimer(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cur, err := s.timers.Current(r.Context(), q.Get("member"), tzParam(q))
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	Write(rw, http.StatusOK, currentTimerResponse{
		Member:  cur.Member,
		Current: entryResponse(cur.Current),
		Warning: optional(timerguard.AutoStopWarning(cur.AutoStopped)),
	})
}

func (s *Server) startTimer(rw http.ResponseWriter, r *http.Request) {
	var req startTimerRequest
	if !Read(rw, r, &req) {
		return
	}
	s.idempotent(rw, r, scopeStart, req.Member, func(ctx context.Context) (any, error) {
		res, err := s.timers.Start(ctx, service.StartInput{
			Member:          req.Member,
			Description:     req.Description,
			Project:         req.Project,
			TZOffsetMinutes: domain.TZOffsetFromPtr(req.TZOffset),
		})
		if err != nil {
			return nil, err
		}
		return timerResult(res), nil
	})
}

func (s *Server) stopTimer(rw http.ResponseWriter, r *http.Request) {
	var req stopTimerRequest
	if !Read(rw, r, &req) {
		return
	}
	s.idempotent(rw, r, scopeStop, req.Member, func(ctx context.Context) (any, error) {
		res, err := s.timers.Stop(ctx, req.Member, domain.TZOffsetFromPtr(req.TZOffset))
		if err != nil {
			return nil, err
		}
		return timerResult(res), nil
	})
}

func (s *Server) patchCurrentTimer(rw http.ResponseWriter, r *http.Request) {
	var req patchTimerRequest
	if !Read(rw, r, &req) {
		return
	}
	in := service.UpdateCurrentInput{
		Member:          req.Member,
		Description:     req.Description,
		Project:         req.Project,
		TZOffsetMinutes: domain.TZOffsetFromPtr(req.TZOffset),
	}
	if req.ElapsedSeconds != nil && !math.IsNaN(*req.ElapsedSeconds) && !math.IsInf(*req.ElapsedSeconds, 0) {
		elapsed := int64(math.Floor(*req.ElapsedSeconds))
		in.ElapsedSeconds = &elapsed
	}
	s.idempotent(rw, r, scopePatchCurrent, req.Member, func(ctx context.Context) (any, error) {
		res, err := s.timers.UpdateCurrent(ctx, in)
		if err != nil {
			return nil, err
		}
		return timerResult(res), nil
	})
}

func (s *Server) updateEntry(rw http.ResponseWriter, r *http.Request) {
	var req updateEntryRequest
	if !Read(rw, r, &req) {
		return
	}
	entry, err := s.timers.UpdateEntry(r.Context(), service.UpdateEntryInput{
		Member:          req.Member,
		EntryID:         req.EntryID,
		Description:     req.Description,
		Project:         req.Project,
		StartAt:         req.StartAt.UTC(),
		StopAt:          req.StopAt.UTC(),
		TZOffsetMinutes: domain.TZOffsetFromPtr(req.TZOffset),
	})
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	Write(rw, http.StatusOK, okResponse{OK: true, Entry: entryResponse(entry)})
}

func (s *Server) deleteEntry(rw http.ResponseWriter, r *http.Request) {
	var req deleteEntryRequest
	if !Read(rw, r, &req) {
		return
	}
	if err := s.timers.DeleteEntry(r.Context(), req.Member, req.EntryID); err != nil {
		s.writeError(rw, r, err)
		return
	}
	Write(rw, http.StatusOK, okResponse{OK: true})
}
