package paymentprovider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// ErrMalformedClientSecret секрет подтверждения не содержит идентификатор платежа.
var ErrMalformedClientSecret = errors.New("malformed client secret")

// Confirmer подтверждает платёж на стороне клиента.
// Использует только публикуемый ключ и секрет подтверждения.
type Confirmer struct {
	api *client.API
}

// NewConfirmer создаёт клиент подтверждения с публикуемым ключом.
func NewConfirmer(publishableKey, apiURL string, log *slog.Logger) *Confirmer {
	log = log.With(slog.String("component", "stripe-confirm"))
	return &Confirmer{
		api: client.New(publishableKey, newBackends(apiURL, 0, log)),
	}
}

// PaymentIntentID извлекает идентификатор платежа из секрета вида "pi_xxx_secret_yyy".
func PaymentIntentID(clientSecret string) (string, error) {
	id, _, ok := strings.Cut(clientSecret, "_secret_")
	if !ok || !strings.HasPrefix(id, "pi_") {
		return "", ErrMalformedClientSecret
	}
	return id, nil
}

// ConfirmPayment подтверждает платёж способом оплаты paymentMethodID.
// Отказ карты возвращается как *CardError.
func (c *Confirmer) ConfirmPayment(ctx context.Context, clientSecret, paymentMethodID string) (PaymentStatus, error) {
	const op = "paymentprovider.ConfirmPayment"

	id, err := PaymentIntentID(clientSecret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(paymentMethodID),
	}
	params.Context = ctx
	params.AddExtra("client_secret", clientSecret)

	pi, err := c.api.PaymentIntents.Confirm(id, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return "", fmt.Errorf("%s: %w", op, &CardError{Code: string(stripeErr.Code), Message: stripeErr.Msg})
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return PaymentStatus(pi.Status), nil
}
