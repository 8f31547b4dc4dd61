package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"subcal/internal/amqp"
	"subcal/internal/calendar"
	"subcal/internal/core"
	"subcal/internal/metrics"
)

// ReminderProcessor publishes a reminder for payments due DaysBefore days
// from now, at most once per user per day.
type ReminderProcessor struct {
	prefs     PreferenceStore
	calendar  *CalendarService
	publisher ReminderPublisher
}

func NewReminderProcessor(prefs PreferenceStore, cal *CalendarService, publisher ReminderPublisher) *ReminderProcessor {
	return &ReminderProcessor{prefs: prefs, calendar: cal, publisher: publisher}
}

// Preference returns the user's reminder settings, disabled when never set.
func (p *ReminderProcessor) Preference(ctx context.Context, userID string) (core.NotificationPreference, error) {
	if strings.TrimSpace(userID) == "" {
		return core.NotificationPreference{}, core.ErrEmptyUser
	}
	return p.prefs.GetNotificationPreference(ctx, userID)
}

// SavePreference stores pref. LastNotified is kept from the stored row.
func (p *ReminderProcessor) SavePreference(ctx context.Context, pref core.NotificationPreference) (core.NotificationPreference, error) {
	if err := pref.Validate(); err != nil {
		return core.NotificationPreference{}, err
	}
	if err := p.prefs.UpsertNotificationPreference(ctx, pref); err != nil {
		return core.NotificationPreference{}, fmt.Errorf("save notification preference: %w", err)
	}
	return p.prefs.GetNotificationPreference(ctx, pref.UserID)
}

// ProcessDueReminders returns the number of reminders published. Failures for
// one user are logged and do not stop the others.
func (p *ReminderProcessor) ProcessDueReminders(ctx context.Context, now time.Time) (int, error) {
	if p.prefs == nil || p.calendar == nil || p.publisher == nil {
		return 0, errors.New("reminder processor not properly initialized")
	}

	prefs, err := p.prefs.ListEnabledNotificationPreferences(ctx)
	if err != nil {
		return 0, err
	}

	today := core.DateOf(now)
	slog.InfoContext(ctx, "Processing payment reminders",
		"users", len(prefs),
		"date", today.String())

	sent := 0
	for _, pref := range prefs {
		if pref.LastNotified.SameDay(today) {
			continue
		}

		due := today.AddDays(pref.DaysBefore)
		proj, err := p.calendar.Project(ctx, pref.UserID, due.Year(), due.Month())
		if err != nil {
			slog.ErrorContext(ctx, "Failed to project reminder month",
				"user_id", pref.UserID,
				"error", err)
			continue
		}

		events := calendar.EventsOn(proj.Events, due)
		if len(events) == 0 {
			continue
		}

		msg := reminderMessage(pref, due, proj.Currency, events)
		err = p.publisher.PublishReminder(ctx, msg)
		metrics.IncReminder(err)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to publish reminder",
				"user_id", pref.UserID,
				"due_date", msg.DueDate,
				"error", err)
			continue
		}

		if err := p.prefs.MarkNotified(ctx, pref.UserID, today); err != nil {
			// The reminder went out; worst case it is sent again on the next tick.
			slog.ErrorContext(ctx, "Failed to record reminder",
				"user_id", pref.UserID,
				"error", err)
		}
		sent++
	}

	slog.InfoContext(ctx, "Payment reminder processing complete",
		"sent", sent,
		"checked", len(prefs))
	return sent, nil
}

func reminderMessage(pref core.NotificationPreference, due core.Date, currency string, events []calendar.PaymentEvent) *amqp.ReminderMessage {
	var names []string
	for _, ev := range events {
		for _, s := range ev.Subscriptions {
			names = append(names, s.Name)
		}
	}
	return &amqp.ReminderMessage{
		UserID:        pref.UserID,
		DueDate:       due.String(),
		DaysBefore:    pref.DaysBefore,
		Total:         calendar.MonthTotal(events).StringFixed(2),
		Currency:      currency,
		Subscriptions: names,
	}
}
