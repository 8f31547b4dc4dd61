package http

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/text/language"

	"subcal/internal/calendar"
	"subcal/internal/core"
	"subcal/internal/services"
)

type (
	subscriptionRequest struct {
		UserID     string      `json:"user_id"`
		Name       string      `json:"name"`
		Cycle      string      `json:"cycle"`
		BillingDay int         `json:"billing_day"`
		StartDate  string      `json:"start_date"`
		Amount     json.Number `json:"amount"`
		Currency   string      `json:"currency"`
		Status     string      `json:"status,omitempty"`
		Category   string      `json:"category,omitempty"`
		Notes      string      `json:"notes,omitempty"`
	}

	subscriptionResponse struct {
		ID         string    `json:"id"`
		UserID     string    `json:"user_id"`
		Name       string    `json:"name"`
		Cycle      string    `json:"cycle"`
		BillingDay int       `json:"billing_day,omitempty"`
		StartDate  string    `json:"start_date,omitempty"`
		Amount     string    `json:"amount"`
		Currency   string    `json:"currency"`
		Status     string    `json:"status"`
		Category   string    `json:"category,omitempty"`
		Notes      string    `json:"notes,omitempty"`
		CreatedAt  time.Time `json:"created_at"`
		UpdatedAt  time.Time `json:"updated_at"`
	}

	statusRequest struct {
		Status string `json:"status"`
	}

	rateRequest struct {
		Base  string      `json:"base"`
		Quote string      `json:"quote"`
		Rate  json.Number `json:"rate"`
	}

	rateResponse struct {
		Base  string `json:"base"`
		Quote string `json:"quote"`
		Rate  string `json:"rate"`
	}

	notificationRequest struct {
		UserID     string `json:"user_id"`
		Enabled    bool   `json:"enabled"`
		DaysBefore int    `json:"days_before"`
	}

	notificationResponse struct {
		UserID       string `json:"user_id"`
		Enabled      bool   `json:"enabled"`
		DaysBefore   int    `json:"days_before"`
		LastNotified string `json:"last_notified,omitempty"`
	}

	eventSubscription struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}

	eventResponse struct {
		Date           string              `json:"date"`
		DateFormatted  string              `json:"date_formatted"`
		Total          string              `json:"total"`
		TotalFormatted string              `json:"total_formatted"`
		Currency       string              `json:"currency"`
		Count          int                 `json:"count"`
		Subscriptions  []eventSubscription `json:"subscriptions"`
	}

	dayResponse struct {
		Date           string          `json:"date"`
		Day            int             `json:"day"`
		IsToday        bool            `json:"is_today"`
		IsCurrentMonth bool            `json:"is_current_month"`
		IsPast         bool            `json:"is_past"`
		Events         []eventResponse `json:"events,omitempty"`
	}

	skippedResponse struct {
		SubscriptionID string `json:"subscription_id"`
		Name           string `json:"name"`
		Reason         string `json:"reason"`
	}

	categoryResponse struct {
		Name            string `json:"name"`
		Amount          string `json:"amount"`
		AmountFormatted string `json:"amount_formatted"`
	}

	calendarResponse struct {
		Year           int                `json:"year"`
		Month          int                `json:"month"`
		Title          string             `json:"title"`
		Locale         string             `json:"locale"`
		Currency       string             `json:"currency"`
		Rate           string             `json:"rate"`
		Total          string             `json:"total"`
		TotalFormatted string             `json:"total_formatted"`
		Payments       int                `json:"payments"`
		Weeks          [][]dayResponse    `json:"weeks"`
		Events         []eventResponse    `json:"events"`
		Today          []eventResponse    `json:"today"`
		Week           []eventResponse    `json:"week"`
		Upcoming       []eventResponse    `json:"upcoming"`
		Categories     []categoryResponse `json:"categories"`
		Skipped        []skippedResponse  `json:"skipped,omitempty"`
		FallbackCycles []string           `json:"fallback_cycles,omitempty"`
	}
)

// toSubscription converts the request body into a domain value. Fields are
// parsed here; business validation is left to the service.
func (req subscriptionRequest) toSubscription() (core.Subscription, error) {
	cycle, err := core.ParseCycle(req.Cycle)
	if err != nil {
		return core.Subscription{}, err
	}
	start, err := core.ParseDate(req.StartDate)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("%w: %v", core.ErrInvalidStartDate, err)
	}
	amount, err := core.ParseAmount(req.Amount.String())
	if err != nil {
		return core.Subscription{}, err
	}
	var status core.Status
	if req.Status != "" {
		if status, err = core.ParseStatus(req.Status); err != nil {
			return core.Subscription{}, err
		}
	}
	return core.Subscription{
		UserID:     sanitizeInput(req.UserID),
		Name:       sanitizeInput(req.Name),
		Cycle:      cycle,
		BillingDay: req.BillingDay,
		StartDate:  start,
		Amount:     amount,
		Currency:   req.Currency,
		Status:     status,
		Category:   sanitizeInput(req.Category),
		Notes:      sanitizeInput(req.Notes),
	}, nil
}

func newSubscriptionResponse(s core.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:         s.ID,
		UserID:     s.UserID,
		Name:       s.Name,
		Cycle:      string(s.Cycle),
		BillingDay: s.BillingDay,
		StartDate:  s.StartDate.String(),
		Amount:     s.Amount.String(),
		Currency:   s.Currency,
		Status:     string(s.Status),
		Category:   s.Category,
		Notes:      s.Notes,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

func newNotificationResponse(p core.NotificationPreference) notificationResponse {
	return notificationResponse{
		UserID:       p.UserID,
		Enabled:      p.Enabled,
		DaysBefore:   p.DaysBefore,
		LastNotified: p.LastNotified.String(),
	}
}

func newEventResponses(events []calendar.PaymentEvent, tag language.Tag) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		subs := make([]eventSubscription, 0, len(ev.Subscriptions))
		for _, s := range ev.Subscriptions {
			subs = append(subs, eventSubscription{
				ID:       s.ID,
				Name:     s.Name,
				Amount:   s.Amount.String(),
				Currency: s.Currency,
			})
		}
		out = append(out, eventResponse{
			Date:           ev.Date.String(),
			DateFormatted:  calendar.FormatDate(ev.Date, tag),
			Total:          ev.TotalAmount.String(),
			TotalFormatted: calendar.FormatAmount(ev.TotalAmount, ev.Currency, tag),
			Currency:       ev.Currency,
			Count:          ev.Count(),
			Subscriptions:  subs,
		})
	}
	return out
}

func newCalendarResponse(v services.MonthView, tag language.Tag) calendarResponse {
	p := v.Projection
	resp := calendarResponse{
		Year:           p.Year,
		Month:          p.Month,
		Title:          calendar.FormatMonth(p.Year, p.Month, tag),
		Locale:         tag.String(),
		Currency:       p.Currency,
		Rate:           p.Rate.String(),
		Total:          v.Total.String(),
		TotalFormatted: calendar.FormatAmount(v.Total, p.Currency, tag),
		Payments:       v.Overview.Payments,
		Events:         newEventResponses(p.Events, tag),
		Today:          newEventResponses(v.Today, tag),
		Week:           newEventResponses(v.Week, tag),
		Upcoming:       newEventResponses(v.Upcoming, tag),
		Categories:     make([]categoryResponse, 0, len(v.Overview.ByCategory)),
		FallbackCycles: p.FallbackCycles,
	}

	resp.Weeks = make([][]dayResponse, 0, len(v.Grid.Weeks))
	for _, week := range v.Grid.Weeks {
		days := make([]dayResponse, 0, len(week))
		for _, d := range week {
			day := dayResponse{
				Date:           d.Date.String(),
				Day:            d.Date.Day(),
				IsToday:        d.IsToday,
				IsCurrentMonth: d.IsCurrentMonth,
				IsPast:         d.IsPast,
			}
			if len(d.Events) > 0 {
				day.Events = newEventResponses(d.Events, tag)
			}
			days = append(days, day)
		}
		resp.Weeks = append(resp.Weeks, days)
	}

	for _, c := range v.Overview.ByCategory {
		resp.Categories = append(resp.Categories, categoryResponse{
			Name:            c.Name,
			Amount:          c.Amount.String(),
			AmountFormatted: calendar.FormatAmount(c.Amount, p.Currency, tag),
		})
	}
	for _, sk := range p.Skipped {
		resp.Skipped = append(resp.Skipped, skippedResponse{
			SubscriptionID: sk.SubscriptionID,
			Name:           sk.Name,
			Reason:         sk.Reason,
		})
	}
	return resp
}
