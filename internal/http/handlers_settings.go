package http

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"subcal/internal/core"
	"subcal/internal/log"
)

// handleGetRate returns the rate currently used for base/quote, which may be
// the configured default.
func (s *Server) handleGetRate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	base := strings.ToUpper(strings.TrimSpace(q.Get("base")))
	quote := strings.ToUpper(strings.TrimSpace(q.Get("quote")))
	if quote == "" {
		quote = s.calendar.DisplayCurrency()
	}
	if _, err := core.NormalizeCurrency(base); err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	if _, err := core.NormalizeCurrency(quote); err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}

	rate, err := s.rates.Rate(r.Context(), base, quote)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, rateResponse{Base: base, Quote: quote, Rate: rate.String()})
}

func (s *Server) handleUpdateRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	if req.Quote == "" {
		req.Quote = s.calendar.DisplayCurrency()
	}
	// Rates keep their full precision; positivity is checked by Validate.
	rate, err := decimal.NewFromString(req.Rate.String())
	if err != nil {
		writeError(w, r, log.OpUpdate, core.ErrInvalidRate)
		return
	}

	er := core.ExchangeRate{Base: strings.TrimSpace(req.Base), Quote: strings.TrimSpace(req.Quote), Rate: rate}
	if err := s.rates.Update(r.Context(), er); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Exchange rate updated",
		"base", strings.ToUpper(er.Base), "quote", strings.ToUpper(er.Quote), "rate", rate.String())
	writeJSON(w, http.StatusOK, rateResponse{
		Base:  strings.ToUpper(er.Base),
		Quote: strings.ToUpper(er.Quote),
		Rate:  rate.String(),
	})
}

func (s *Server) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	pref, err := s.reminders.Preference(r.Context(), user)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, newNotificationResponse(pref))
}

// handleUpdateNotifications takes the user from the query string, falling
// back to the body.
func (s *Server) handleUpdateNotifications(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	user := sanitizeInput(r.URL.Query().Get("user"))
	if user == "" {
		user = sanitizeInput(req.UserID)
	}

	pref, err := s.reminders.SavePreference(r.Context(), core.NotificationPreference{
		UserID:     user,
		Enabled:    req.Enabled,
		DaysBefore: req.DaysBefore,
	})
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, newNotificationResponse(pref))
}
