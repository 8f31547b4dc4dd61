package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"subcal/internal/core"
	"subcal/internal/log"
	"subcal/internal/middleware/trace"
	"subcal/internal/storage"
)

const maxBodyBytes = 64 << 10

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// parseYearMonth extracts year and month from query parameters. Missing values
// default to the month containing now; malformed ones are an error.
func parseYearMonth(r *http.Request, now time.Time) (year, month int, err error) {
	year = now.Year()
	month = int(now.Month())

	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if year, err = strconv.Atoi(v); err != nil || year < 1 || year > 9999 {
			return 0, 0, fmt.Errorf("%w: year %q", errBadRequest, v)
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		if month, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("%w: month %q", errBadRequest, v)
		}
		if month < 1 || month > 12 {
			return 0, 0, fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
		}
	}
	return year, month, nil
}

// requireUser reads the mandatory user query parameter.
func requireUser(r *http.Request) (string, error) {
	user := sanitizeInput(r.URL.Query().Get("user"))
	if user == "" {
		return "", core.ErrEmptyUser
	}
	return user, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// requestLocale picks the formatting locale: ?locale= first, then
// Accept-Language, then fallback.
func requestLocale(r *http.Request, fallback language.Tag) language.Tag {
	if v := strings.TrimSpace(r.URL.Query().Get("locale")); v != "" {
		if tag, err := language.Parse(v); err == nil {
			return tag
		}
	}
	if v := r.Header.Get("Accept-Language"); v != "" {
		if tags, _, err := language.ParseAcceptLanguage(v); err == nil && len(tags) > 0 {
			return tags[0]
		}
	}
	return fallback
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps err onto a status code. Server side failures are logged and
// their details kept out of the response body.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, op, log.NewFields().WithComponent(log.ComponentHTTP))
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg, RequestID: trace.RequestID(r.Context())})
}

var validationErrors = []error{
	core.ErrInvalidDay,
	core.ErrInvalidMonth,
	core.ErrInvalidAmount,
	core.ErrInvalidCycle,
	core.ErrInvalidStatus,
	core.ErrInvalidBillingDay,
	core.ErrInvalidCurrency,
	core.ErrInvalidRate,
	core.ErrEmptyName,
	core.ErrMissingStartDate,
	core.ErrInvalidStartDate,
	core.ErrNameTooLong,
	core.ErrInvalidDaysBefore,
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, core.ErrEmptyUser):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}
