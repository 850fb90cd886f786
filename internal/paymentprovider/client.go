// Package paymentprovider адаптер к Stripe: клиенты, подписки, проверка вебхуков
// и подтверждение платежа на стороне клиента.
package paymentprovider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/magabrotheeeer/subscription-checkout/internal/config"
)

const requestTimeout = 30 * time.Second

// Client серверный клиент Stripe. Создаётся из явной конфигурации, без глобального ключа SDK.
type Client struct {
	api           *client.API
	webhookSecret string
	log           *slog.Logger
}

// New создаёт клиент с секретным ключом.
func New(cfg config.Stripe, log *slog.Logger) *Client {
	log = log.With(slog.String("component", "stripe"))
	return &Client{
		api:           client.New(cfg.SecretKey, newBackends(cfg.APIURL, cfg.MaxNetworkRetries, log)),
		webhookSecret: cfg.WebhookSecret,
		log:           log,
	}
}

func newBackends(apiURL string, retries int64, log *slog.Logger) *stripe.Backends {
	backendConfig := func() *stripe.BackendConfig {
		c := &stripe.BackendConfig{
			MaxNetworkRetries: stripe.Int64(retries),
			LeveledLogger:     leveledLogger{log: log},
			HTTPClient:        &http.Client{Timeout: requestTimeout},
		}
		if apiURL != "" {
			c.URL = stripe.String(apiURL)
		}
		return c
	}
	return &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig()),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig()),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig()),
	}
}

// CreateCustomer создаёт клиента с почтой и идентификатором пользователя в метаданных.
func (c *Client) CreateCustomer(ctx context.Context, req CustomerRequest) (string, error) {
	const op = "paymentprovider.CreateCustomer"

	params := &stripe.CustomerParams{
		Email: stripe.String(req.Email),
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserKey, req.UserUID)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	cus, err := c.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return cus.ID, nil
}

// CreateSubscription создаёт подписку в режиме default_incomplete и запрашивает
// секрет подтверждения первого счёта.
func (c *Client) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*SubscriptionResult, error) {
	const op = "paymentprovider.CreateSubscription"

	params := &stripe.SubscriptionParams{
		Customer: stripe.String(req.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(req.PriceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserKey, req.UserUID)
	params.AddMetadata(MetadataPlanKey, string(req.Plan))
	params.AddExpand("latest_invoice.confirmation_secret")

	sub, err := c.api.Subscriptions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res := &SubscriptionResult{
		SubscriptionID: sub.ID,
		CustomerID:     req.CustomerID,
		Status:         string(sub.Status),
	}
	if sub.Customer != nil && sub.Customer.ID != "" {
		res.CustomerID = sub.Customer.ID
	}
	if sub.LatestInvoice != nil && sub.LatestInvoice.ConfirmationSecret != nil {
		res.ClientSecret = sub.LatestInvoice.ConfirmationSecret.ClientSecret
	}
	return res, nil
}

// GetSubscription читает подписку, чтобы узнать конец оплаченного периода и цену.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	const op = "paymentprovider.GetSubscription"

	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := c.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := &Subscription{
		ID:       sub.ID,
		Status:   string(sub.Status),
		Metadata: sub.Metadata,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			out.PriceID = item.Price.ID
		}
		if item.CurrentPeriodEnd > 0 {
			end := time.Unix(item.CurrentPeriodEnd, 0).UTC()
			out.CurrentPeriodEnd = &end
		}
	}
	return out, nil
}

// Describe возвращает код и тип ошибки Stripe для журнала.
func Describe(err error) []any {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return nil
	}
	return []any{
		slog.String("stripe_type", string(stripeErr.Type)),
		slog.String("stripe_code", string(stripeErr.Code)),
		slog.Int("stripe_status", stripeErr.HTTPStatusCode),
		slog.String("stripe_request_id", stripeErr.RequestID),
	}
}
