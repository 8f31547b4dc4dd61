package calendar

import (
	"time"

	"subcal/internal/core"
)

// Grid dimensions. Every month is laid out on the same 6x7 grid.
const (
	WeeksPerGrid = 6
	DaysPerWeek  = 7
)

type (
	// Day is one cell of the calendar grid.
	Day struct {
		Date           core.Date
		Events         []PaymentEvent
		IsToday        bool
		IsCurrentMonth bool
		IsPast         bool
	}

	Week [DaysPerWeek]Day

	// Grid is a month view starting on the Sunday on or before the 1st.
	Grid struct {
		Year  int
		Month int
		Weeks [WeeksPerGrid]Week
	}
)

// BuildGrid lays out year/month and binds each day to its events. now is the
// wall clock used for the today and past flags; only its calendar date counts.
func BuildGrid(year, month int, events []PaymentEvent, now time.Time) Grid {
	first := core.NewDate(year, month, 1)
	start := first.AddDays(-int(first.Weekday()))
	today := core.DateOf(now)

	byDate := make(map[string][]PaymentEvent, len(events))
	for _, ev := range events {
		key := ev.Date.String()
		byDate[key] = append(byDate[key], ev)
	}

	g := Grid{Year: year, Month: month}
	for w := 0; w < WeeksPerGrid; w++ {
		for d := 0; d < DaysPerWeek; d++ {
			date := start.AddDays(w*DaysPerWeek + d)
			g.Weeks[w][d] = Day{
				Date:           date,
				Events:         byDate[date.String()],
				IsToday:        date.SameDay(today),
				IsCurrentMonth: date.Year() == year && date.Month() == month,
				IsPast:         date.Before(today.Time),
			}
		}
	}
	return g
}

// BuildGridNow is BuildGrid against the current wall clock.
func BuildGridNow(year, month int, events []PaymentEvent) Grid {
	return BuildGrid(year, month, events, time.Now())
}

// Days returns the 42 cells in display order.
func (g Grid) Days() []Day {
	out := make([]Day, 0, WeeksPerGrid*DaysPerWeek)
	for _, w := range g.Weeks {
		out = append(out, w[:]...)
	}
	return out
}
