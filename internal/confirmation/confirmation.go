// Package confirmation подтверждает первый платёж подписки на стороне клиента.
// Клиент знает только секрет подтверждения; данные карты сервису не передаются.
package confirmation

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-checkout/internal/paymentprovider"
)

// ErrSubmitInProgress предыдущая отправка формы ещё не завершилась.
var ErrSubmitInProgress = errors.New("submission already in progress")

// Сообщения пользователю.
const (
	MessageSucceeded  = "Payment successful"
	MessageProcessing = "Payment pending, processing…"
	MessageFailed     = "Payment failed, try another method"
	MessageError      = "Payment failed"
)

// Outcome итог отправки формы.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeSucceeded
	// OutcomeProcessing платёж принят, итог придёт вебхуком. Это не успех.
	OutcomeProcessing
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeProcessing:
		return "processing"
	default:
		return "failed"
	}
}

// Form данные формы оплаты.
type Form struct {
	Name            string `validate:"required"`
	BusinessName    string
	Plan            string `validate:"required,oneof=monthly annually"`
	PaymentMethodID string `validate:"required"`
}

// Result итог и сообщение для пользователя.
type Result struct {
	Outcome Outcome
	Message string
}

// PaymentConfirmer подтверждение платежа у провайдера.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, clientSecret, paymentMethodID string) (paymentprovider.PaymentStatus, error)
}

// Client форма оплаты одной сессии оформления.
type Client struct {
	clientSecret string
	confirmer    PaymentConfirmer
	validate     *validator.Validate
	log          *slog.Logger
	inFlight     atomic.Bool
}

// New создаёт форму для секрета подтверждения clientSecret.
func New(clientSecret string, confirmer PaymentConfirmer, log *slog.Logger) *Client {
	return &Client{
		clientSecret: clientSecret,
		confirmer:    confirmer,
		validate:     validator.New(),
		log:          log,
	}
}

// Submit проверяет форму и подтверждает платёж. Пока вызов не завершён,
// повторная отправка возвращает ErrSubmitInProgress. Ошибка проверки формы
// возвращается как validator.ValidationErrors, провайдер при этом не вызывается.
func (c *Client) Submit(ctx context.Context, form Form) (Result, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return Result{}, ErrSubmitInProgress
	}
	defer c.inFlight.Store(false)

	if err := c.validate.Struct(form); err != nil {
		return Result{}, err
	}

	status, err := c.confirmer.ConfirmPayment(ctx, c.clientSecret, form.PaymentMethodID)
	if err != nil {
		c.log.Warn("payment confirmation failed", sl.Err(err))
		return Result{Outcome: OutcomeFailed, Message: userMessage(err)}, nil
	}

	c.log.Info("payment confirmed", slog.String("status", string(status)), slog.String("plan", form.Plan))
	switch status {
	case paymentprovider.PaymentSucceeded:
		return Result{Outcome: OutcomeSucceeded, Message: MessageSucceeded}, nil
	case paymentprovider.PaymentProcessing:
		return Result{Outcome: OutcomeProcessing, Message: MessageProcessing}, nil
	default:
		return Result{Outcome: OutcomeFailed, Message: MessageFailed}, nil
	}
}

// InFlight сообщает, выполняется ли отправка.
func (c *Client) InFlight() bool {
	return c.inFlight.Load()
}

func userMessage(err error) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) && um.UserMessage() != "" {
		return um.UserMessage()
	}
	return MessageError
}
