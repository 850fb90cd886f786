package models

import (
	"encoding/json"
	"time"
)

// WebhookEvent проверенное событие платёжного провайдера.
type WebhookEvent struct {
	ID      string
	Type    string
	Created time.Time
	Object  json.RawMessage
}

// SubscriptionNotification сообщение об изменении статуса подписки для брокера.
type SubscriptionNotification struct {
	EventID        string    `json:"event_id"`
	UserUID        string    `json:"user_uid"`
	CustomerID     string    `json:"customer_id"`
	SubscriptionID string    `json:"subscription_id"`
	Plan           PlanID    `json:"plan,omitempty"`
	Status         string    `json:"status"`
	OccurredAt     time.Time `json:"occurred_at"`
}
