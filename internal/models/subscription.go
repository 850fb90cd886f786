package models

import "time"

// PlanID идентификатор тарифного плана.
type PlanID string

const (
	PlanMonthly  PlanID = "monthly"
	PlanAnnually PlanID = "annually"
)

// Status состояние подписки.
type Status string

const (
	// StatusIncomplete подписка создана и ожидает подтверждения оплаты.
	StatusIncomplete Status = "incomplete"
	StatusActive     Status = "active"
	// StatusCanceled конечное состояние, из него подписка не возвращается.
	StatusCanceled Status = "canceled"
)

// Subscription запись о подписке пользователя.
type Subscription struct {
	SubscriptionID   string
	UserUID          string
	CustomerID       string
	Plan             PlanID
	Status           Status
	CurrentPeriodEnd *time.Time
	CanceledAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Summary сокращённое представление подписки для ответов API и кэша.
func (s Subscription) Summary() *SubscriptionSummary {
	return &SubscriptionSummary{
		SubscriptionID:   s.SubscriptionID,
		Plan:             s.Plan,
		Status:           s.Status,
		CurrentPeriodEnd: s.CurrentPeriodEnd,
	}
}

// SubscriptionSummary подписка в том виде, в каком её видит клиент.
type SubscriptionSummary struct {
	SubscriptionID   string     `json:"subscriptionId"`
	Plan             PlanID     `json:"plan"`
	Status           Status     `json:"status"`
	CurrentPeriodEnd *time.Time `json:"currentPeriodEnd,omitempty"`
}

// Activation данные для перевода подписки в активное состояние.
type Activation struct {
	UserUID          string
	CustomerID       string
	SubscriptionID   string
	Plan             PlanID
	CurrentPeriodEnd *time.Time
}

// CheckoutSession ответ инициатора оформления подписки. Не сохраняется.
type CheckoutSession struct {
	ClientSecret   string `json:"clientSecret"`
	CustomerID     string `json:"customerId"`
	SubscriptionID string `json:"subscriptionId"`
}
