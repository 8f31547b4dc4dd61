package calendar

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"subcal/internal/core"
)

func fixtureEvents() []PaymentEvent {
	subs := []core.Subscription{
		sub("music", core.Monthly, 5, core.NewDate(2024, 1, 5), 10900, "KRW"),
		sub("video", core.Monthly, 12, core.NewDate(2024, 1, 12), 17000, "KRW"),
		sub("cloud", core.Monthly, 14, core.NewDate(2024, 1, 14), 3, "USD"),
		sub("news", core.Monthly, 20, core.NewDate(2024, 1, 20), 5000, "KRW"),
	}
	subs[0].Category = "Music"
	subs[1].Category = "Video"
	subs[2].Category = "Software"
	return Project(subs, 2025, 1, rate1300, "KRW")
}

func TestTodayEvents(t *testing.T) {
	events := fixtureEvents()

	today := TodayEvents(events, time.Date(2025, 1, 12, 21, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{"2025-01-12"}, dates(today))

	assert.Empty(t, TodayEvents(events, time.Date(2025, 1, 13, 9, 0, 0, 0, time.UTC)))
}

func TestWeekEvents(t *testing.T) {
	events := fixtureEvents()

	// Wednesday 2025-01-15: week runs Sunday 12th to Saturday 18th.
	week := WeekEvents(events, time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{"2025-01-12", "2025-01-14"}, dates(week))

	// Sunday itself belongs to the week it starts.
	week = WeekEvents(events, time.Date(2025, 1, 19, 8, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{"2025-01-20"}, dates(week))
}

func TestUpcomingEvents(t *testing.T) {
	events := fixtureEvents()
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, []string{"2025-01-12", "2025-01-14"}, dates(UpcomingEvents(events, now, 4)))
	assert.Empty(t, UpcomingEvents(events, now, 0))
	assert.Nil(t, UpcomingEvents(events, now, -1))
}

func TestMonthTotal(t *testing.T) {
	total := MonthTotal(fixtureEvents())
	// 10900 + 17000 + 3*1300 + 5000
	assert.True(t, total.Equal(decimal.NewFromInt(36800)), "total = %s", total)
	assert.True(t, MonthTotal(nil).IsZero())
}

func TestOverview(t *testing.T) {
	subs := []core.Subscription{
		sub("music", core.Monthly, 5, core.NewDate(2024, 1, 5), 10900, "KRW"),
		sub("cloud", core.Monthly, 14, core.NewDate(2024, 1, 14), 3, "USD"),
		sub("misc", core.Monthly, 14, core.NewDate(2024, 1, 14), 1000, "KRW"),
	}
	subs[0].Category = "Music"
	subs[1].Category = "Software"

	p, err := ProjectWithReport(subs, 2025, 1, rate1300, "KRW")
	assert.NoError(t, err)

	o := Overview(p)
	assert.Equal(t, 3, o.Payments)
	assert.Equal(t, "KRW", o.Currency)
	assert.True(t, o.Total.Equal(decimal.NewFromInt(15800)))
	if assert.Len(t, o.ByCategory, 3) {
		assert.Equal(t, "Music", o.ByCategory[0].Name)
		assert.Equal(t, "Software", o.ByCategory[1].Name)
		assert.True(t, o.ByCategory[1].Amount.Equal(decimal.NewFromInt(3900)))
		assert.Equal(t, "Uncategorized", o.ByCategory[2].Name)
	}
}
