package services

import (
	"context"

	"github.com/shopspring/decimal"

	"subcal/internal/amqp"
	"subcal/internal/core"
)

// Outbound dependencies of the services. storage.SQLiteRepository, amqp.Client
// and rates.Provider satisfy them.
type (
	SubscriptionStore interface {
		CreateSubscription(ctx context.Context, s core.Subscription) (core.Subscription, error)
		GetSubscription(ctx context.Context, id string) (core.Subscription, error)
		ListSubscriptions(ctx context.Context, userID string) ([]core.Subscription, error)
		ListActiveSubscriptions(ctx context.Context, userID string) ([]core.Subscription, error)
		UpdateSubscription(ctx context.Context, s core.Subscription) (core.Subscription, error)
		UpdateSubscriptionStatus(ctx context.Context, id string, status core.Status) error
		DeleteSubscription(ctx context.Context, id string) error
	}

	PreferenceStore interface {
		GetNotificationPreference(ctx context.Context, userID string) (core.NotificationPreference, error)
		UpsertNotificationPreference(ctx context.Context, p core.NotificationPreference) error
		ListEnabledNotificationPreferences(ctx context.Context) ([]core.NotificationPreference, error)
		MarkNotified(ctx context.Context, userID string, day core.Date) error
	}

	RateSource interface {
		Rate(ctx context.Context, base, quote string) (decimal.Decimal, error)
	}

	ChangePublisher interface {
		PublishSubscriptionChange(ctx context.Context, subscriptionID, userID, action string) error
	}

	ReminderPublisher interface {
		PublishReminder(ctx context.Context, msg *amqp.ReminderMessage) error
	}
)
