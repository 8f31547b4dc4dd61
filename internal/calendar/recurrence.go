// Package calendar projects recurring subscription payments onto a month.
//
// This file implements the Strategy Pattern for billing cycle advancement.
// Each cycle (weekly, monthly, quarterly, yearly) has its own recurrence that
// knows how to enumerate due dates inside a date window.
package calendar

import (
	"sync"

	"subcal/internal/core"
)

// Recurrence is the strategy interface for enumerating the due dates of a
// subscription. Implementations must be pure.
type Recurrence interface {
	// Occurrences returns every due date of sub within [from, to], ascending.
	// Callers guarantee that sub.StartDate is not after to.
	Occurrences(sub core.Subscription, from, to core.Date) []core.Date
}

// WeeklyRecurrence bills every seven days, anchored on the start date weekday.
type WeeklyRecurrence struct{}

func (WeeklyRecurrence) Occurrences(sub core.Subscription, from, to core.Date) []core.Date {
	cur := sub.StartDate
	if cur.Before(from.Time) {
		gap := int(from.Sub(cur.Time).Hours() / 24)
		weeks := (gap + 6) / 7
		cur = cur.AddDays(weeks * 7)
	}

	var out []core.Date
	for !cur.After(to.Time) {
		out = append(out, cur)
		cur = cur.AddDays(7)
	}
	return out
}

// MonthRecurrence bills every Months months on the billing day, anchored on the
// start date month. A billing day past the end of a shorter month is clamped
// to that month's last day.
type MonthRecurrence struct {
	Months int
}

func (r MonthRecurrence) Occurrences(sub core.Subscription, from, to core.Date) []core.Date {
	step := r.Months
	if step < 1 {
		step = 1
	}

	var out []core.Date
	cur := sub.StartDate
	if !cur.Before(from.Time) {
		// The start date itself is the first payment.
		out = append(out, cur)
		cur = AddMonthsClamped(cur, step, sub.BillingDay)
	} else {
		cur = firstAlignedOnOrAfter(sub, step, from)
	}

	for !cur.After(to.Time) {
		if !cur.Before(from.Time) {
			out = append(out, cur)
		}
		cur = AddMonthsClamped(cur, step, sub.BillingDay)
	}
	return out
}

// firstAlignedOnOrAfter returns the first billing date on or after from whose
// month lies a whole number of steps after the start month.
func firstAlignedOnOrAfter(sub core.Subscription, step int, from core.Date) core.Date {
	start := monthIndex(sub.StartDate.Year(), sub.StartDate.Month())
	target := monthIndex(from.Year(), from.Month())

	k := (target - start + step - 1) / step
	cur := AddMonthsClamped(sub.StartDate, k*step, sub.BillingDay)
	for cur.Before(from.Time) {
		k++
		cur = AddMonthsClamped(sub.StartDate, k*step, sub.BillingDay)
	}
	return cur
}

func monthIndex(year, month int) int {
	return year*12 + month - 1
}

// AddMonthsClamped moves d forward by n months and places it on billingDay,
// clamped to the last day of the resulting month.
func AddMonthsClamped(d core.Date, n, billingDay int) core.Date {
	idx := monthIndex(d.Year(), d.Month()) + n
	year, month := idx/12, idx%12+1
	day := billingDay
	if last := core.DaysInMonth(year, month); day > last {
		day = last
	}
	return core.NewDate(year, month, day)
}

// recurrences maps billing cycles to their strategies. Guarded by
// recurrencesMu since RegisterRecurrence may run alongside projections.
var (
	recurrencesMu sync.RWMutex
	recurrences   = map[core.Cycle]Recurrence{
		core.Weekly:    WeeklyRecurrence{},
		core.Monthly:   MonthRecurrence{Months: 1},
		core.Quarterly: MonthRecurrence{Months: 3},
		core.Yearly:    MonthRecurrence{Months: 12},
	}
)

// fallbackRecurrence is used for cycles nothing is registered for.
var fallbackRecurrence Recurrence = MonthRecurrence{Months: 1}

// RecurrenceFor returns the strategy for cycle. The boolean is false when the
// cycle is unknown and the monthly fallback was returned instead.
func RecurrenceFor(cycle core.Cycle) (Recurrence, bool) {
	recurrencesMu.RLock()
	r, ok := recurrences[cycle]
	recurrencesMu.RUnlock()
	if !ok {
		return fallbackRecurrence, false
	}
	return r, true
}

// RegisterRecurrence registers a strategy for a new billing cycle.
func RegisterRecurrence(cycle core.Cycle, r Recurrence) {
	recurrencesMu.Lock()
	defer recurrencesMu.Unlock()
	recurrences[cycle] = r
}

func unregisterRecurrence(cycle core.Cycle) {
	recurrencesMu.Lock()
	defer recurrencesMu.Unlock()
	delete(recurrences, cycle)
}
