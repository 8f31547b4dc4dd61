package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"

	"subcal/internal/log"
	"subcal/internal/middleware/ratelimit"
	"subcal/internal/middleware/trace"
	"subcal/internal/rates"
	"subcal/internal/services"
	"subcal/internal/storage"
)

var testNow = time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, limit ratelimit.Config) *Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "subcal.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	provider := rates.NewProvider(repo, time.Minute)
	provider.SetDefault("USD", "KRW", decimal.NewFromInt(1300))

	cal := services.NewCalendarService(repo, provider, "KRW", "USD").
		WithClock(func() time.Time { return testNow })

	srv := NewServer(":0", Deps{
		Subscriptions: services.NewSubscriptionService(repo, nil),
		Calendar:      cal,
		Reminders:     services.NewReminderProcessor(repo, cal, nil),
		Rates:         provider,
		Store:         repo,
	}, Options{
		Locale:    language.Korean,
		RateLimit: limit,
		Logger:    log.New(log.Config{Level: log.ParseLevel("error"), Output: io.Discard}),
	})
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func generousLimit() ratelimit.Config {
	return ratelimit.Config{RequestsPerSecond: 1000, Burst: 1000}
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = strings.NewReader(b)
		default:
			buf, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("marshal body: %v", err)
			}
			r = bytes.NewReader(buf)
		}
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func createSub(t *testing.T, srv *Server, body map[string]any) subscriptionResponse {
	t.Helper()
	rr := do(t, srv, http.MethodPost, "/api/subscriptions", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	return decode[subscriptionResponse](t, rr)
}

func TestHealthReadyAndMetrics(t *testing.T) {
	srv := newTestServer(t, generousLimit())

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := do(t, srv, http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestResponseHeaders(t *testing.T) {
	srv := newTestServer(t, generousLimit())

	rr := do(t, srv, http.MethodGet, "/api/subscriptions?user=u1", nil)
	if rr.Header().Get(trace.HeaderRequestID) == "" {
		t.Error("missing request id header")
	}
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rr.Header().Get("Content-Type"); !strings.HasPrefix(got, "application/json") {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestCalendarMixedCurrencies(t *testing.T) {
	srv := newTestServer(t, generousLimit())

	createSub(t, srv, map[string]any{
		"user_id": "u1", "name": "Tving", "cycle": "monthly", "billing_day": 20,
		"start_date": "2024-01-20", "amount": "13900", "currency": "KRW", "category": "Video",
	})
	createSub(t, srv, map[string]any{
		"user_id": "u1", "name": "Spotify", "cycle": "monthly", "billing_day": 20,
		"start_date": "2024-03-20", "amount": 8, "currency": "usd", "category": "Music",
	})

	rr := do(t, srv, http.MethodGet, "/api/calendar?user=u1&year=2025&month=1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("calendar status=%d body=%s", rr.Code, rr.Body.String())
	}
	cal := decode[calendarResponse](t, rr)

	if cal.Year != 2025 || cal.Month != 1 || cal.Currency != "KRW" {
		t.Errorf("calendar header = %d-%d %s", cal.Year, cal.Month, cal.Currency)
	}
	if cal.Title != "2025년 1월" {
		t.Errorf("title = %q", cal.Title)
	}
	if len(cal.Events) != 1 {
		t.Fatalf("events = %+v", cal.Events)
	}
	ev := cal.Events[0]
	if ev.Date != "2025-01-20" || ev.Count != 2 || ev.Total != "24300" {
		t.Errorf("event = %+v", ev)
	}
	if !strings.Contains(ev.TotalFormatted, "24,300") {
		t.Errorf("total formatted = %q", ev.TotalFormatted)
	}
	if cal.Total != "24300" || cal.Payments != 2 {
		t.Errorf("total = %s payments = %d", cal.Total, cal.Payments)
	}
	if len(cal.Today) != 1 || len(cal.Week) != 1 || len(cal.Upcoming) != 1 {
		t.Errorf("today = %d week = %d upcoming = %d, want 1 each", len(cal.Today), len(cal.Week), len(cal.Upcoming))
	}
	if len(cal.Categories) != 2 {
		t.Errorf("categories = %+v", cal.Categories)
	}

	if len(cal.Weeks) != 6 {
		t.Fatalf("grid weeks = %d, want 6", len(cal.Weeks))
	}
	// January 2025 starts on a Wednesday.
	first := cal.Weeks[0][0]
	if first.Date != "2024-12-29" || first.IsCurrentMonth {
		t.Errorf("first cell = %+v", first)
	}
	var today dayResponse
	for _, week := range cal.Weeks {
		if len(week) != 7 {
			t.Fatalf("week has %d days", len(week))
		}
		for _, d := range week {
			if d.IsToday {
				today = d
			}
		}
	}
	if today.Date != "2025-01-20" || len(today.Events) != 1 || today.IsPast {
		t.Errorf("today cell = %+v", today)
	}
}

func TestCalendarLocaleAndDefaults(t *testing.T) {
	srv := newTestServer(t, generousLimit())

	rr := do(t, srv, http.MethodGet, "/api/calendar?user=u1&locale=en", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("calendar status=%d", rr.Code)
	}
	cal := decode[calendarResponse](t, rr)
	if cal.Year != 2025 || cal.Month != 1 {
		t.Errorf("default month = %d-%d, want 2025-1", cal.Year, cal.Month)
	}
	if cal.Title != "January 2025" {
		t.Errorf("title = %q", cal.Title)
	}
	if len(cal.Events) != 0 || cal.Total != "0" {
		t.Errorf("empty calendar = %+v", cal)
	}
}

func TestCalendarBadRequests(t *testing.T) {
	srv := newTestServer(t, generousLimit())

	tests := []struct {
		path string
		want int
	}{
		{"/api/calendar", http.StatusBadRequest},
		{"/api/calendar?user=u1&month=13", http.StatusUnprocessableEntity},
		{"/api/calendar?user=u1&month=jan", http.StatusBadRequest},
		{"/api/calendar?user=u1&year=-1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, tt.path, nil)
			if rr.Code != tt.want {
				t.Errorf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body.String())
			}
			if e := decode[errorResponse](t, rr); e.Error == "" || e.RequestID == "" {
				t.Errorf("error body = %+v", e)
			}
		})
	}
}

func TestSubscriptionValidation(t *testing.T) {
	srv := newTestServer(t, generousLimit())

	valid := func() map[string]any {
		return map[string]any{
			"user_id": "u1", "name": "Netflix", "cycle": "monthly", "billing_day": 15,
			"start_date": "2024-01-15", "amount": "17000", "currency": "KRW",
		}
	}

	tests := []struct {
		name   string
		mutate func(map[string]any)
		want   int
	}{
		{"missing user", func(b map[string]any) { delete(b, "user_id") }, http.StatusBadRequest},
		{"empty name", func(b map[string]any) { b["name"] = "  " }, http.StatusUnprocessableEntity},
		{"unknown cycle", func(b map[string]any) { b["cycle"] = "fortnightly" }, http.StatusUnprocessableEntity},
		{"billing day too large", func(b map[string]any) { b["billing_day"] = 32 }, http.StatusUnprocessableEntity},
		{"missing start date", func(b map[string]any) { delete(b, "start_date") }, http.StatusUnprocessableEntity},
		{"malformed start date", func(b map[string]any) { b["start_date"] = "15/01/2024" }, http.StatusUnprocessableEntity},
		{"zero amount", func(b map[string]any) { b["amount"] = "0" }, http.StatusUnprocessableEntity},
		{"bad currency", func(b map[string]any) { b["currency"] = "W0N" }, http.StatusUnprocessableEntity},
		{"unknown field", func(b map[string]any) { b["price"] = 1 }, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := valid()
			tt.mutate(body)
			rr := do(t, srv, http.MethodPost, "/api/subscriptions", body)
			if rr.Code != tt.want {
				t.Errorf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	rr := do(t, srv, http.MethodPost, "/api/subscriptions", "{not json")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("malformed json status=%d", rr.Code)
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	srv := newTestServer(t, generousLimit())

	created := createSub(t, srv, map[string]any{
		"user_id": "u1", "name": "Netflix", "cycle": "monthly", "billing_day": 15,
		"start_date": "2024-01-15", "amount": "17000", "currency": "krw",
	})
	if created.ID == "" || created.Status != "active" || created.Currency != "KRW" {
		t.Fatalf("created = %+v", created)
	}
	path := "/api/subscriptions/" + created.ID

	rr := do(t, srv, http.MethodGet, path, nil)
	if rr.Code != http.StatusOK || decode[subscriptionResponse](t, rr).Name != "Netflix" {
		t.Fatalf("get status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodPut, path, map[string]any{
		"user_id": "someone-else", "name": "Netflix Premium", "cycle": "yearly", "billing_day": 15,
		"start_date": "2024-01-15", "amount": "170000", "currency": "KRW",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	updated := decode[subscriptionResponse](t, rr)
	if updated.UserID != "u1" || updated.Cycle != "yearly" || updated.Amount != "170000" {
		t.Errorf("updated = %+v", updated)
	}

	rr = do(t, srv, http.MethodPost, path+"/status", map[string]any{"status": "paused"})
	if rr.Code != http.StatusOK || decode[subscriptionResponse](t, rr).Status != "paused" {
		t.Fatalf("status change status=%d body=%s", rr.Code, rr.Body.String())
	}
	rr = do(t, srv, http.MethodPost, path+"/status", map[string]any{"status": "gone"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid status code=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodGet, "/api/calendar?user=u1&year=2025&month=1", nil)
	if cal := decode[calendarResponse](t, rr); len(cal.Events) != 0 {
		t.Errorf("paused subscription projected: %+v", cal.Events)
	}

	rr = do(t, srv, http.MethodGet, "/api/subscriptions?user=u1", nil)
	if list := decode[[]subscriptionResponse](t, rr); len(list) != 1 {
		t.Errorf("list = %+v", list)
	}

	if rr = do(t, srv, http.MethodDelete, path, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		if rr = do(t, srv, method, path, nil); rr.Code != http.StatusNotFound {
			t.Errorf("%s after delete status=%d", method, rr.Code)
		}
	}
}

func TestRatesEndpoint(t *testing.T) {
	srv := newTestServer(t, generousLimit())

	rr := do(t, srv, http.MethodGet, "/api/rates?base=USD", nil)
	if rr.Code != http.StatusOK || decode[rateResponse](t, rr).Rate != "1300" {
		t.Fatalf("default rate status=%d body=%s", rr.Code, rr.Body.String())
	}

	createSub(t, srv, map[string]any{
		"user_id": "u1", "name": "Spotify", "cycle": "monthly", "billing_day": 20,
		"start_date": "2024-03-20", "amount": "10", "currency": "USD",
	})

	rr = do(t, srv, http.MethodPut, "/api/rates", map[string]any{"base": "usd", "rate": "1400"})
	if rr.Code != http.StatusOK {
		t.Fatalf("update rate status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := decode[rateResponse](t, rr); got.Base != "USD" || got.Quote != "KRW" {
		t.Errorf("rate response = %+v", got)
	}

	rr = do(t, srv, http.MethodGet, "/api/calendar?user=u1&year=2025&month=1", nil)
	if cal := decode[calendarResponse](t, rr); cal.Total != "14000" || cal.Rate != "1400" {
		t.Errorf("calendar after rate update total=%s rate=%s", cal.Total, cal.Rate)
	}

	for _, body := range []map[string]any{
		{"base": "USD", "rate": "0"},
		{"base": "US", "rate": "1300"},
	} {
		if rr = do(t, srv, http.MethodPut, "/api/rates", body); rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("PUT %v status=%d", body, rr.Code)
		}
	}
	if rr = do(t, srv, http.MethodGet, "/api/rates?base=EUR", nil); rr.Code != http.StatusNotFound {
		t.Errorf("unknown pair status=%d", rr.Code)
	}
}

func TestRatesKeepFullPrecision(t *testing.T) {
	srv := newTestServer(t, generousLimit())

	for _, rate := range []string{"0.00075", "1312.455"} {
		rr := do(t, srv, http.MethodPut, "/api/rates", map[string]any{"base": "KRW", "quote": "USD", "rate": rate})
		if rr.Code != http.StatusOK {
			t.Fatalf("PUT rate %s status=%d body=%s", rate, rr.Code, rr.Body.String())
		}
		if got := decode[rateResponse](t, rr).Rate; got != rate {
			t.Errorf("PUT rate = %s, want %s", got, rate)
		}

		rr = do(t, srv, http.MethodGet, "/api/rates?base=KRW&quote=USD", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("GET rate status=%d body=%s", rr.Code, rr.Body.String())
		}
		if got := decode[rateResponse](t, rr).Rate; got != rate {
			t.Errorf("stored rate = %s, want %s", got, rate)
		}
	}

	for _, rate := range []string{"-0.001", "abc"} {
		rr := do(t, srv, http.MethodPut, "/api/rates", map[string]any{"base": "KRW", "quote": "USD", "rate": rate})
		if rr.Code == http.StatusOK {
			t.Errorf("PUT rate %s accepted", rate)
		}
	}
}

func TestNotificationsEndpoint(t *testing.T) {
	srv := newTestServer(t, generousLimit())

	rr := do(t, srv, http.MethodGet, "/api/notifications?user=u1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}
	if pref := decode[notificationResponse](t, rr); pref.Enabled || pref.UserID != "u1" {
		t.Errorf("default preference = %+v", pref)
	}

	rr = do(t, srv, http.MethodPut, "/api/notifications?user=u1", map[string]any{"enabled": true, "days_before": 3})
	if rr.Code != http.StatusOK {
		t.Fatalf("put status=%d body=%s", rr.Code, rr.Body.String())
	}
	if pref := decode[notificationResponse](t, rr); !pref.Enabled || pref.DaysBefore != 3 {
		t.Errorf("saved preference = %+v", pref)
	}

	rr = do(t, srv, http.MethodPut, "/api/notifications", map[string]any{"user_id": "u2", "days_before": 99})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid days before status=%d", rr.Code)
	}
	if rr = do(t, srv, http.MethodGet, "/api/notifications", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("missing user status=%d", rr.Code)
	}
}

func TestRateLimitAppliesToAPI(t *testing.T) {
	srv := newTestServer(t, ratelimit.Config{RequestsPerSecond: 0.001, Burst: 1})

	if rr := do(t, srv, http.MethodGet, "/api/subscriptions?user=u1", nil); rr.Code != http.StatusOK {
		t.Fatalf("first request status=%d", rr.Code)
	}
	rr := do(t, srv, http.MethodGet, "/api/subscriptions?user=u1", nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status=%d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	if rr := do(t, srv, http.MethodGet, "/healthz", nil); rr.Code != http.StatusOK {
		t.Errorf("health check should not be limited, status=%d", rr.Code)
	}
}

func TestErrorStatus(t *testing.T) {
	if got := errorStatus(context.DeadlineExceeded); got != http.StatusInternalServerError {
		t.Errorf("errorStatus(unknown) = %d", got)
	}
	if got := errorStatus(storage.ErrNotFound); got != http.StatusNotFound {
		t.Errorf("errorStatus(ErrNotFound) = %d", got)
	}
}

func TestRequestLocale(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/calendar", nil)
	if got := requestLocale(req, language.Korean); got != language.Korean {
		t.Errorf("fallback = %s", got)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if got := requestLocale(req, language.Korean); got.String() != "en-US" {
		t.Errorf("Accept-Language = %s", got)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/calendar?locale=ko", nil)
	req.Header.Set("Accept-Language", "en")
	if got := requestLocale(req, language.English); got.String() != "ko" {
		t.Errorf("query locale = %s", got)
	}
}
