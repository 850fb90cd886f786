package paymentprovider

import (
	"errors"
	"time"

	"github.com/magabrotheeeer/subscription-checkout/internal/models"
)

// MetadataUserKey ключ метаданных с внутренним идентификатором пользователя.
const MetadataUserKey = "firebaseUid"

// MetadataPlanKey ключ метаданных с идентификатором плана.
const MetadataPlanKey = "plan"

// ErrInvalidSignature подпись вебхука не прошла проверку.
var ErrInvalidSignature = errors.New("invalid signature")

// CustomerRequest параметры создания клиента.
type CustomerRequest struct {
	UserUID        string
	Email          string
	IdempotencyKey string
}

// SubscriptionRequest параметры создания подписки с отложенной оплатой.
type SubscriptionRequest struct {
	CustomerID string
	PriceID    string
	UserUID    string
	Plan       models.PlanID
}

// SubscriptionResult созданная подписка. ClientSecret пуст, если провайдер
// не вернул секрет подтверждения.
type SubscriptionResult struct {
	SubscriptionID string
	CustomerID     string
	Status         string
	ClientSecret   string
}

// Subscription состояние подписки у провайдера.
type Subscription struct {
	ID               string
	CustomerID       string
	Status           string
	PriceID          string
	Metadata         map[string]string
	CurrentPeriodEnd *time.Time
}

// PaymentStatus статус платежа после подтверждения.
type PaymentStatus string

const (
	PaymentSucceeded             PaymentStatus = "succeeded"
	PaymentProcessing            PaymentStatus = "processing"
	PaymentRequiresAction        PaymentStatus = "requires_action"
	PaymentRequiresPaymentMethod PaymentStatus = "requires_payment_method"
	PaymentCanceled              PaymentStatus = "canceled"
)

// CardError отказ, текст которого предназначен пользователю.
type CardError struct {
	Code    string
	Message string
}

func (e *CardError) Error() string {
	return "card error: " + e.Code + ": " + e.Message
}

// UserMessage текст для показа пользователю.
func (e *CardError) UserMessage() string {
	return e.Message
}
