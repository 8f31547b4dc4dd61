package http

import (
	"net/http"

	"subcal/internal/log"
)

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		writeError(w, r, log.OpProject, err)
		return
	}
	year, month, err := parseYearMonth(r, s.calendar.Now())
	if err != nil {
		writeError(w, r, log.OpProject, err)
		return
	}

	view, err := s.calendar.Month(r.Context(), user, year, month)
	if err != nil {
		writeError(w, r, log.OpProject, err)
		return
	}

	writeJSON(w, http.StatusOK, newCalendarResponse(view, requestLocale(r, s.locale)))
}
