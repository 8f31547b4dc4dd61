package calendar

import (
	"time"

	"github.com/shopspring/decimal"

	"subcal/internal/core"
)

// EventsOn returns the events falling on date.
func EventsOn(events []PaymentEvent, date core.Date) []PaymentEvent {
	var out []PaymentEvent
	for _, ev := range events {
		if ev.Date.SameDay(date) {
			out = append(out, ev)
		}
	}
	return out
}

// TodayEvents returns the events due on the calendar date of now.
func TodayEvents(events []PaymentEvent, now time.Time) []PaymentEvent {
	return EventsOn(events, core.DateOf(now))
}

// WeekEvents returns the events of the Sunday..Saturday week containing now.
func WeekEvents(events []PaymentEvent, now time.Time) []PaymentEvent {
	today := core.DateOf(now)
	sunday := today.AddDays(-int(today.Weekday()))
	saturday := sunday.AddDays(DaysPerWeek - 1)
	return between(events, sunday, saturday)
}

// UpcomingEvents returns the events in the days following now, today included.
func UpcomingEvents(events []PaymentEvent, now time.Time, days int) []PaymentEvent {
	if days < 0 {
		return nil
	}
	today := core.DateOf(now)
	return between(events, today, today.AddDays(days))
}

// MonthTotal sums the totals of all events.
func MonthTotal(events []PaymentEvent) decimal.Decimal {
	total := decimal.Zero
	for _, ev := range events {
		total = total.Add(ev.TotalAmount)
	}
	return total
}

// Overview folds a projection into a per-category month summary, amounts in
// the projection currency.
func Overview(p Projection) core.MonthOverview {
	o := core.MonthOverview{
		Year:     p.Year,
		Month:    p.Month,
		Currency: p.Currency,
		Total:    MonthTotal(p.Events),
	}
	idx := make(map[string]int)
	for _, ev := range p.Events {
		o.Payments += ev.Count()
		for _, sub := range ev.Subscriptions {
			name := sub.Category
			if name == "" {
				name = "Uncategorized"
			}
			i, ok := idx[name]
			if !ok {
				i = len(o.ByCategory)
				idx[name] = i
				o.ByCategory = append(o.ByCategory, core.CategoryAmount{Name: name, Amount: decimal.Zero})
			}
			o.ByCategory[i].Amount = o.ByCategory[i].Amount.Add(core.Convert(sub.Amount, sub.Currency, p.Currency, p.Rate))
		}
	}
	return o
}

func between(events []PaymentEvent, from, to core.Date) []PaymentEvent {
	var out []PaymentEvent
	for _, ev := range events {
		if !ev.Date.Before(from.Time) && !ev.Date.After(to.Time) {
			out = append(out, ev)
		}
	}
	return out
}
