package httpapi

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/alexanderramin/togglguard/internal/domain"
	"github.com/alexanderramin/togglguard/internal/service"
)

func refreshParam(vals url.Values) bool {
	switch strings.ToLower(strings.TrimSpace(vals.Get("refresh"))) {
	case "1", "true":
		return true
	default:
		return false
	}
}

func tzParam(vals url.Values) int {
	return domain.ParseTZOffset(vals.Get("tzOffset"))
}

func (s *Server) members(rw http.ResponseWriter, _ *http.Request) {
	Write(rw, http.StatusOK, map[string][]string{"members": s.team.Members()})
}

func (s *Server) dailyEntries(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := s.entries.Daily(r.Context(), service.EntriesRequest{
		Member:          q.Get("member"),
		Date:            q.Get("date"),
		TZOffsetMinutes: tzParam(q),
		Refresh:         refreshParam(q),
	})
	writeView(s, rw, r, view, err)
}

func (s *Server) teamDay(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := s.team.Day(r.Context(), service.TeamDayRequest{
		Date:            q.Get("date"),
		TZOffsetMinutes: tzParam(q),
		Refresh:         refreshParam(q),
	})
	writeView(s, rw, r, view, err)
}

func (s *Server) teamWeek(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := s.team.Week(r.Context(), service.TeamWeekRequest{
		Date:    q.Get("date"),
		Refresh: refreshParam(q),
	})
	writeView(s, rw, r, view, err)
}

func (s *Server) dailyRanking(rw http.ResponseWriter, r *http.Request) {
	ranking, err := s.timers.DailyRanking(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		s.writeError(rw, r, err)
		return
	}
	Write(rw, http.StatusOK, ranking)
}
