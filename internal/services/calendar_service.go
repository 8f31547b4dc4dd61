package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"subcal/internal/calendar"
	"subcal/internal/core"
	"subcal/internal/metrics"
)

// upcomingDays is the look-ahead of MonthView.Upcoming, limited to the
// viewed month.
const upcomingDays = 7

// MonthView is everything the calendar screen shows for one month.
type MonthView struct {
	Projection calendar.Projection
	Grid       calendar.Grid
	Today      []calendar.PaymentEvent
	Week       []calendar.PaymentEvent
	Upcoming   []calendar.PaymentEvent
	Total      decimal.Decimal
	Overview   core.MonthOverview
}

// CalendarService projects a user's subscriptions into months.
type CalendarService struct {
	subs    SubscriptionStore
	rates   RateSource
	display string
	foreign string
	now     func() time.Time
}

// NewCalendarService shows amounts in display; subscriptions billed in any
// other currency are converted with the foreign->display rate.
func NewCalendarService(subs SubscriptionStore, rates RateSource, display, foreign string) *CalendarService {
	return &CalendarService{
		subs:    subs,
		rates:   rates,
		display: strings.ToUpper(display),
		foreign: strings.ToUpper(foreign),
		now:     time.Now,
	}
}

// WithClock replaces the clock used for today/this-week flags.
func (s *CalendarService) WithClock(now func() time.Time) *CalendarService {
	s.now = now
	return s
}

func (s *CalendarService) Now() time.Time {
	return s.now()
}

func (s *CalendarService) DisplayCurrency() string {
	return s.display
}

// Project returns the user's payment events for year/month along with the
// data quality report.
func (s *CalendarService) Project(ctx context.Context, userID string, year, month int) (p calendar.Projection, err error) {
	start := time.Now()
	defer func() { metrics.ObserveProjection(err, time.Since(start)) }()

	if strings.TrimSpace(userID) == "" {
		return calendar.Projection{}, core.ErrEmptyUser
	}

	subs, err := s.subs.ListActiveSubscriptions(ctx, userID)
	if err != nil {
		return calendar.Projection{}, fmt.Errorf("load subscriptions: %w", err)
	}

	rate, err := s.rates.Rate(ctx, s.foreign, s.display)
	if err != nil {
		return calendar.Projection{}, fmt.Errorf("load exchange rate: %w", err)
	}

	p, err = calendar.ProjectWithReport(subs, year, month, rate, s.display)
	if err != nil {
		return calendar.Projection{}, err
	}

	for _, sk := range p.Skipped {
		metrics.IncSkipped(sk.Reason)
		slog.WarnContext(ctx, "Subscription skipped in projection",
			"user_id", userID,
			"subscription_id", sk.SubscriptionID,
			"name", sk.Name,
			"reason", sk.Reason)
	}
	if n := len(p.FallbackCycles); n > 0 {
		metrics.AddFallbackCycles(n)
		slog.WarnContext(ctx, "Unknown billing cycle projected as monthly",
			"user_id", userID,
			"subscription_ids", p.FallbackCycles)
	}

	slog.DebugContext(ctx, "Projected month",
		"user_id", userID,
		"year", year,
		"month", month,
		"subscriptions", len(subs),
		"events", len(p.Events))
	return p, nil
}

// Month builds the full calendar view for year/month.
func (s *CalendarService) Month(ctx context.Context, userID string, year, month int) (MonthView, error) {
	p, err := s.Project(ctx, userID, year, month)
	if err != nil {
		return MonthView{}, err
	}

	now := s.now()
	return MonthView{
		Projection: p,
		Grid:       calendar.BuildGrid(year, month, p.Events, now),
		Today:      calendar.TodayEvents(p.Events, now),
		Week:       calendar.WeekEvents(p.Events, now),
		Upcoming:   calendar.UpcomingEvents(p.Events, now, upcomingDays),
		Total:      calendar.MonthTotal(p.Events),
		Overview:   calendar.Overview(p),
	}, nil
}
