// Package checkout создаёт подписку с отложенной оплатой и возвращает клиенту
// секрет подтверждения первого платежа.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/subscription-checkout/internal/cache"
	"github.com/magabrotheeeer/subscription-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-checkout/internal/models"
	"github.com/magabrotheeeer/subscription-checkout/internal/paymentprovider"
	"github.com/magabrotheeeer/subscription-checkout/internal/plans"
	"github.com/magabrotheeeer/subscription-checkout/internal/storage"
)

var (
	// ErrMissingConfirmationSecret провайдер создал подписку, но не вернул секрет подтверждения.
	ErrMissingConfirmationSecret = errors.New("Missing confirmation_secret client_secret.")
	// ErrUpstream ошибка платёжного провайдера. Текст провайдера клиенту не передаётся.
	ErrUpstream = errors.New("payment provider error")
)

// Request входные данные оформления подписки.
type Request struct {
	Plan      string
	UserEmail string
	UserID    string
}

// CustomerRepository хранит соответствие пользователя и клиента провайдера.
type CustomerRepository interface {
	GetCustomerByUser(ctx context.Context, userUID string) (*models.Customer, error)
	// SaveCustomer вставляет запись, если её ещё нет, и возвращает сохранённую.
	SaveCustomer(ctx context.Context, customer models.Customer) (*models.Customer, error)
}

// SubscriptionRepository сохраняет созданные подписки.
type SubscriptionRepository interface {
	CreatePendingSubscription(ctx context.Context, sub models.Subscription) error
}

// Provider операции платёжного провайдера, нужные для оформления.
type Provider interface {
	CreateCustomer(ctx context.Context, req paymentprovider.CustomerRequest) (string, error)
	CreateSubscription(ctx context.Context, req paymentprovider.SubscriptionRequest) (*paymentprovider.SubscriptionResult, error)
}

// Cache сброс кэша профиля после появления новой подписки.
type Cache interface {
	Invalidate(ctx context.Context, key string) error
}

// Service оформляет подписки.
type Service struct {
	catalog       *plans.Catalog
	customers     CustomerRepository
	subscriptions SubscriptionRepository
	provider      Provider
	cache         Cache
	log           *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(catalog *plans.Catalog, customers CustomerRepository, subscriptions SubscriptionRepository,
	provider Provider, cache Cache, log *slog.Logger) *Service {
	return &Service{
		catalog:       catalog,
		customers:     customers,
		subscriptions: subscriptions,
		provider:      provider,
		cache:         cache,
		log:           log,
	}
}

// CreateSession проверяет план, находит или создаёт клиента провайдера и создаёт
// подписку в статусе incomplete. Неизвестный план возвращает plans.ErrUnknownPlan
// до обращения к провайдеру.
func (s *Service) CreateSession(ctx context.Context, req Request) (*models.CheckoutSession, error) {
	const op = "checkout.CreateSession"
	log := s.log.With(slog.String("op", op), slog.String("user_uid", req.UserID))

	plan, err := s.catalog.Lookup(req.Plan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	priceID, err := s.catalog.PriceID(req.Plan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	customerID, err := s.ensureCustomer(ctx, log, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.provider.CreateSubscription(ctx, paymentprovider.SubscriptionRequest{
		CustomerID: customerID,
		PriceID:    priceID,
		UserUID:    req.UserID,
		Plan:       plan.ID,
	})
	if err != nil {
		log.Error("failed to create subscription", append([]any{sl.Err(err)}, paymentprovider.Describe(err)...)...)
		return nil, fmt.Errorf("%s: %w", op, ErrUpstream)
	}
	if res.ClientSecret == "" {
		log.Error("subscription created without confirmation secret",
			slog.String("customer_id", res.CustomerID),
			slog.String("subscription_id", res.SubscriptionID),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrMissingConfirmationSecret)
	}

	err = s.subscriptions.CreatePendingSubscription(ctx, models.Subscription{
		SubscriptionID: res.SubscriptionID,
		UserUID:        req.UserID,
		CustomerID:     res.CustomerID,
		Plan:           plan.ID,
		Status:         models.StatusIncomplete,
	})
	if err != nil {
		log.Error("failed to save subscription",
			slog.String("customer_id", res.CustomerID),
			slog.String("subscription_id", res.SubscriptionID),
			sl.Err(err),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// дашборд мог закэшировать прежнюю подписку или её отсутствие
	if err := s.cache.Invalidate(ctx, cache.UserSubscriptionKey(req.UserID)); err != nil {
		log.Warn("failed to invalidate profile cache", sl.Err(err))
	}

	log.Info("checkout session created",
		slog.String("plan", string(plan.ID)),
		slog.String("customer_id", res.CustomerID),
		slog.String("subscription_id", res.SubscriptionID),
	)
	return &models.CheckoutSession{
		ClientSecret:   res.ClientSecret,
		CustomerID:     res.CustomerID,
		SubscriptionID: res.SubscriptionID,
	}, nil
}

func (s *Service) ensureCustomer(ctx context.Context, log *slog.Logger, req Request) (string, error) {
	existing, err := s.customers.GetCustomerByUser(ctx, req.UserID)
	if err == nil {
		return existing.CustomerID, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}

	customerID, err := s.provider.CreateCustomer(ctx, paymentprovider.CustomerRequest{
		UserUID:        req.UserID,
		Email:          req.UserEmail,
		IdempotencyKey: "customer-" + req.UserID,
	})
	if err != nil {
		log.Error("failed to create customer", append([]any{sl.Err(err)}, paymentprovider.Describe(err)...)...)
		return "", ErrUpstream
	}

	saved, err := s.customers.SaveCustomer(ctx, models.Customer{
		UserUID:    req.UserID,
		CustomerID: customerID,
		Email:      req.UserEmail,
	})
	if err != nil {
		log.Error("failed to save customer", slog.String("customer_id", customerID), sl.Err(err))
		return "", err
	}
	return saved.CustomerID, nil
}
