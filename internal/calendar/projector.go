package calendar

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"subcal/internal/core"
)

// Skip reasons reported for subscriptions that cannot be projected.
const (
	ReasonMissingStartDate  = "missing_start_date"
	ReasonInvalidBillingDay = "invalid_billing_day"
)

type (
	// PaymentEvent aggregates every subscription billing on the same date.
	PaymentEvent struct {
		Date          core.Date
		Subscriptions []core.Subscription
		TotalAmount   decimal.Decimal
		Currency      string
	}

	// Skipped is an active subscription left out of a projection because of
	// incomplete data.
	Skipped struct {
		SubscriptionID string
		Name           string
		Reason         string
	}

	// Projection is the full result of projecting a month.
	Projection struct {
		Year     int
		Month    int
		Currency string
		Rate     decimal.Decimal
		Events   []PaymentEvent
		Skipped  []Skipped
		// FallbackCycles lists subscription ids whose cycle was not recognised
		// and were stepped monthly.
		FallbackCycles []string
	}
)

// Count returns the number of subscriptions billing in the event.
func (e PaymentEvent) Count() int {
	return len(e.Subscriptions)
}

// Project returns the payment events of year/month for the given
// subscriptions, sorted by date. Amounts not in display are multiplied by
// rate. Invalid input yields no events.
func Project(subs []core.Subscription, year, month int, rate decimal.Decimal, display string) []PaymentEvent {
	p, err := ProjectWithReport(subs, year, month, rate, display)
	if err != nil {
		return nil
	}
	return p.Events
}

// ProjectWithReport is Project plus the data quality report.
func ProjectWithReport(subs []core.Subscription, year, month int, rate decimal.Decimal, display string) (Projection, error) {
	if month < 1 || month > 12 {
		return Projection{}, core.ErrInvalidMonth
	}
	if !rate.IsPositive() {
		return Projection{}, core.ErrInvalidRate
	}
	display = strings.ToUpper(strings.TrimSpace(display))

	from := core.NewDate(year, month, 1)
	to := core.NewDate(year, month, core.DaysInMonth(year, month))

	proj := Projection{Year: year, Month: month, Currency: display, Rate: rate}
	byDate := make(map[string]*PaymentEvent)

	for _, sub := range subs {
		if !sub.IsActive() {
			continue
		}
		if reason := skipReason(sub); reason != "" {
			proj.Skipped = append(proj.Skipped, Skipped{
				SubscriptionID: sub.ID,
				Name:           sub.Name,
				Reason:         reason,
			})
			continue
		}
		if sub.StartDate.After(to.Time) {
			continue
		}

		rec, known := RecurrenceFor(sub.Cycle)
		if !known {
			proj.FallbackCycles = append(proj.FallbackCycles, sub.ID)
		}

		amount := core.Convert(sub.Amount, sub.Currency, display, rate)
		for _, d := range rec.Occurrences(sub, from, to) {
			key := d.String()
			ev, ok := byDate[key]
			if !ok {
				ev = &PaymentEvent{Date: d, TotalAmount: decimal.Zero, Currency: display}
				byDate[key] = ev
			}
			ev.Subscriptions = append(ev.Subscriptions, sub)
			ev.TotalAmount = ev.TotalAmount.Add(amount)
		}
	}

	proj.Events = make([]PaymentEvent, 0, len(byDate))
	for _, ev := range byDate {
		proj.Events = append(proj.Events, *ev)
	}
	sort.Slice(proj.Events, func(i, j int) bool {
		return proj.Events[i].Date.Before(proj.Events[j].Date.Time)
	})

	return proj, nil
}

func skipReason(sub core.Subscription) string {
	if sub.StartDate.IsZero() {
		return ReasonMissingStartDate
	}
	if sub.BillingDay < 1 || sub.BillingDay > 31 {
		return ReasonInvalidBillingDay
	}
	return ""
}
