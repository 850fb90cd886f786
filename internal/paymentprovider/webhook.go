package paymentprovider

import (
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/magabrotheeeer/subscription-checkout/internal/models"
)

// ConstructEvent проверяет подпись тела вебхука и разбирает событие.
// Несовпадение версии API не считается ошибкой: объект события разбирается отдельно.
func (c *Client) ConstructEvent(payload []byte, signature string) (models.WebhookEvent, error) {
	const op = "paymentprovider.ConstructEvent"

	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return models.WebhookEvent{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidSignature, err)
	}

	out := models.WebhookEvent{
		ID:      event.ID,
		Type:    string(event.Type),
		Created: time.Unix(event.Created, 0).UTC(),
	}
	if event.Data != nil {
		out.Object = event.Data.Raw
	}
	return out, nil
}
