package httpapi

import (
	"errors"
	"net/http"

	"github.com/alexanderramin/togglguard/internal/domain"
	"github.com/alexanderramin/togglguard/internal/repository"
	"github.com/alexanderramin/togglguard/internal/service"
	"github.com/alexanderramin/togglguard/internal/toggl"
)

// errorResponse maps err to a status and body. Headers that must accompany
// the status are set on h.
func errorResponse(h http.Header, err error) (int, Response) {
	var upstream *toggl.UpstreamError
	switch {
	case service.IsBadRequest(err):
		return http.StatusBadRequest, Response{Error: err.Error()}
	case errors.Is(err, service.ErrUnknownMember):
		return http.StatusNotFound, Response{Error: err.Error()}
	case errors.Is(err, domain.ErrNoRunningEntry):
		return http.StatusNotFound, Response{Error: "No running time entry."}
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, Response{Error: "Time entry not found."}
	case errors.As(err, &upstream):
		return upstreamResponse(h, upstream)
	default:
		return http.StatusInternalServerError, Response{Error: "Internal error."}
	}
}

func upstreamResponse(h http.Header, err *toggl.UpstreamError) (int, Response) {
	resp := Response{
		RetryAfter:     err.RetryAfter,
		QuotaRemaining: err.QuotaRemaining,
		QuotaResetsIn:  err.QuotaResetsIn,
	}
	switch err.Kind {
	case toggl.RateLimited:
		resp.Error = "Rate limited by Toggl. Please retry shortly."
		if err.RetryAfter != "" {
			h.Set(toggl.HeaderRetryAfter, err.RetryAfter)
		}
	case toggl.QuotaExhausted:
		resp.Error = "Toggl API quota reached. Please wait for reset before retrying."
		if err.QuotaResetsIn != "" {
			h.Set(toggl.HeaderQuotaResetsIn, err.QuotaResetsIn)
		}
	default:
		resp.Error = err.Message
		if resp.Error == "" {
			resp.Error = "Toggl is unavailable."
		}
	}
	return err.HTTPStatus(), resp
}

// writeError reports err to the client, logging unexpected failures.
func (s *Server) writeError(rw http.ResponseWriter, r *http.Request, err error) {
	status, resp := errorResponse(rw.Header(), err)
	if status == http.StatusInternalServerError {
		s.log.Error(r.Context(), "request failed", errField(r, err)...)
	}
	Write(rw, status, resp)
}
