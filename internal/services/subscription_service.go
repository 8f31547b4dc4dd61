package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"subcal/internal/amqp"
	"subcal/internal/core"
)

// SubscriptionService persists subscriptions and announces every change on
// the change feed.
type SubscriptionService struct {
	store     SubscriptionStore
	publisher ChangePublisher
}

// NewSubscriptionService wires the service. publisher may be nil, in which
// case changes are stored but not announced.
func NewSubscriptionService(store SubscriptionStore, publisher ChangePublisher) *SubscriptionService {
	return &SubscriptionService{store: store, publisher: publisher}
}

func normalize(s core.Subscription) (core.Subscription, error) {
	s.Name = strings.TrimSpace(s.Name)
	s.Category = strings.TrimSpace(s.Category)
	if s.Status == "" {
		s.Status = core.StatusActive
	}
	cur, err := core.NormalizeCurrency(s.Currency)
	if err != nil {
		return s, err
	}
	s.Currency = cur
	return s, s.Validate()
}

// Create validates and stores s. Status defaults to active.
func (svc *SubscriptionService) Create(ctx context.Context, s core.Subscription) (core.Subscription, error) {
	s, err := normalize(s)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("validate subscription: %w", err)
	}

	created, err := svc.store.CreateSubscription(ctx, s)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("save subscription: %w", err)
	}

	svc.announce(ctx, created, amqp.ActionCreated)
	return created, nil
}

func (svc *SubscriptionService) Get(ctx context.Context, id string) (core.Subscription, error) {
	return svc.store.GetSubscription(ctx, id)
}

func (svc *SubscriptionService) List(ctx context.Context, userID string) ([]core.Subscription, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, core.ErrEmptyUser
	}
	return svc.store.ListSubscriptions(ctx, userID)
}

// Update replaces the stored subscription. The owner cannot change.
func (svc *SubscriptionService) Update(ctx context.Context, s core.Subscription) (core.Subscription, error) {
	existing, err := svc.store.GetSubscription(ctx, s.ID)
	if err != nil {
		return core.Subscription{}, err
	}
	s.UserID = existing.UserID
	if s.Status == "" {
		s.Status = existing.Status
	}

	s, err = normalize(s)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("validate subscription: %w", err)
	}

	updated, err := svc.store.UpdateSubscription(ctx, s)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("update subscription: %w", err)
	}

	svc.announce(ctx, updated, amqp.ActionUpdated)
	return updated, nil
}

// SetStatus pauses, cancels or reactivates a subscription.
func (svc *SubscriptionService) SetStatus(ctx context.Context, id string, status core.Status) (core.Subscription, error) {
	if !status.Valid() {
		return core.Subscription{}, core.ErrInvalidStatus
	}
	if err := svc.store.UpdateSubscriptionStatus(ctx, id, status); err != nil {
		return core.Subscription{}, err
	}
	s, err := svc.store.GetSubscription(ctx, id)
	if err != nil {
		return core.Subscription{}, err
	}

	svc.announce(ctx, s, amqp.ActionUpdated)
	return s, nil
}

func (svc *SubscriptionService) Delete(ctx context.Context, id string) error {
	s, err := svc.store.GetSubscription(ctx, id)
	if err != nil {
		return err
	}
	if err := svc.store.DeleteSubscription(ctx, id); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}

	svc.announce(ctx, s, amqp.ActionDeleted)
	return nil
}

// announce publishes a change message. Failures are logged only: the change
// is already stored.
func (svc *SubscriptionService) announce(ctx context.Context, s core.Subscription, action string) {
	if svc.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping change message",
			"subscription_id", s.ID, "action", action)
		return
	}
	if err := svc.publisher.PublishSubscriptionChange(ctx, s.ID, s.UserID, action); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change message",
			"subscription_id", s.ID,
			"user_id", s.UserID,
			"action", action,
			"error", err)
	}
}
