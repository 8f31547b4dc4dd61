package amqp

import (
	"encoding/json"
	"time"
)

// Change actions carried by SubscriptionChangeMessage.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// SubscriptionChangeMessage announces that a user's subscription set changed.
// Consumers re-read the snapshot from storage; the message carries ids only.
type SubscriptionChangeMessage struct {
	SubscriptionID string    `json:"subscription_id"`
	UserID         string    `json:"user_id"`
	Action         string    `json:"action"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewSubscriptionChangeMessage(subscriptionID, userID, action string) *SubscriptionChangeMessage {
	return &SubscriptionChangeMessage{
		SubscriptionID: subscriptionID,
		UserID:         userID,
		Action:         action,
		Timestamp:      time.Now(),
	}
}

func (m *SubscriptionChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SubscriptionChangeMessageFromJSON(data []byte) (*SubscriptionChangeMessage, error) {
	var msg SubscriptionChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReminderMessage tells a notifier that payments are coming up for a user.
type ReminderMessage struct {
	UserID        string    `json:"user_id"`
	DueDate       string    `json:"due_date"`
	DaysBefore    int       `json:"days_before"`
	Total         string    `json:"total"`
	Currency      string    `json:"currency"`
	Subscriptions []string  `json:"subscriptions"`
	Timestamp     time.Time `json:"timestamp"`
}

func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReminderMessageFromJSON(data []byte) (*ReminderMessage, error) {
	var msg ReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
