// Package reconciler применяет события платёжного провайдера к локальному
// состоянию подписок. Повторная доставка события не меняет результат.
package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-checkout/internal/cache"
	"github.com/magabrotheeeer/subscription-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-checkout/internal/metrics"
	"github.com/magabrotheeeer/subscription-checkout/internal/models"
	"github.com/magabrotheeeer/subscription-checkout/internal/paymentprovider"
	"github.com/magabrotheeeer/subscription-checkout/internal/plans"
	"github.com/magabrotheeeer/subscription-checkout/internal/rabbitmq"
	"github.com/magabrotheeeer/subscription-checkout/internal/storage"
)

const (
	dedupTTL    = 72 * time.Hour
	detachedTimeout = 5 * time.Second
)

// Verifier проверяет подпись вебхука и разбирает событие.
type Verifier interface {
	ConstructEvent(payload []byte, signature string) (models.WebhookEvent, error)
}

// SubscriptionStore переходы состояния подписки.
type SubscriptionStore interface {
	ActivateSubscription(ctx context.Context, a models.Activation) (bool, error)
	CancelSubscription(ctx context.Context, customerID, subscriptionID string, at time.Time) ([]string, error)
}

// SubscriptionReader читает подписку у провайдера.
type SubscriptionReader interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*paymentprovider.Subscription, error)
}

// Cache дедупликация событий и сброс кэша профиля.
type Cache interface {
	Seen(ctx context.Context, key string) (bool, error)
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Invalidate(ctx context.Context, key string) error
}

// Publisher отправляет уведомления об изменении подписки.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Service обрабатывает вебхуки.
type Service struct {
	verifier  Verifier
	store     SubscriptionStore
	provider  SubscriptionReader
	cache     Cache
	publisher Publisher
	catalog   *plans.Catalog
	metrics   *metrics.Recorder
	log       *slog.Logger
}

// Deps зависимости Service.
type Deps struct {
	Verifier  Verifier
	Store     SubscriptionStore
	Provider  SubscriptionReader
	Cache     Cache
	Publisher Publisher
	Catalog   *plans.Catalog
	Metrics   *metrics.Recorder
}

// NewService создает новый экземпляр Service.
func NewService(d Deps, log *slog.Logger) *Service {
	return &Service{
		verifier:  d.Verifier,
		store:     d.Store,
		provider:  d.Provider,
		cache:     d.Cache,
		publisher: d.Publisher,
		catalog:   d.Catalog,
		metrics:   d.Metrics,
		log:       log,
	}
}

// Reconcile проверяет подпись и применяет событие.
// Ошибка с paymentprovider.ErrInvalidSignature означает отказ без изменения состояния,
// любая другая ошибка означает сбой хранилища: событие нужно доставить повторно.
func (s *Service) Reconcile(ctx context.Context, payload []byte, signature string) error {
	const op = "reconciler.Reconcile"

	event, err := s.verifier.ConstructEvent(payload, signature)
	if err != nil {
		s.log.Warn("webhook signature rejected", sl.Err(err))
		s.metrics.WebhookEvent(KindIgnored.String(), metrics.ResultRejected)
		return fmt.Errorf("%s: %w", op, err)
	}

	kind := Classify(event.Type)
	log := s.log.With(
		slog.String("op", op),
		slog.String("event_id", event.ID),
		slog.String("event_type", event.Type),
	)
	if kind == KindIgnored {
		log.Debug("event ignored")
		s.metrics.WebhookEvent(kind.String(), metrics.ResultIgnored)
		return nil
	}

	key := cache.EventKey(event.ID)
	seen, err := s.cache.Seen(ctx, key)
	switch {
	case err != nil:
		log.Warn("event deduplication unavailable", sl.Err(err))
	case seen:
		log.Info("duplicate event")
		s.metrics.WebhookEvent(kind.String(), metrics.ResultDuplicate)
		return nil
	}

	result, err := s.apply(ctx, log, kind, event)
	if err != nil {
		log.Error("failed to apply event", sl.Err(err))
		s.metrics.WebhookEvent(kind.String(), metrics.ResultError)
		return fmt.Errorf("%s: %w", op, err)
	}

	// отметка ставится только после применения и не зависит от отмены запроса
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachedTimeout)
	defer cancel()
	if _, err := s.cache.MarkOnce(markCtx, key, dedupTTL); err != nil {
		log.Warn("failed to mark event processed", sl.Err(err))
	}
	s.metrics.WebhookEvent(kind.String(), result)
	return nil
}

func (s *Service) apply(ctx context.Context, log *slog.Logger, kind Kind, event models.WebhookEvent) (string, error) {
	switch kind {
	case KindCheckoutCompleted:
		var obj checkoutSession
		if !decode(log, event, &obj) {
			return metrics.ResultIgnored, nil
		}
		return s.checkoutCompleted(ctx, log, event, obj)

	case KindSubscriptionUpdated:
		var obj subscriptionObject
		if !decode(log, event, &obj) {
			return metrics.ResultIgnored, nil
		}
		switch obj.Status {
		case "active":
			return s.activate(ctx, log, event, models.Activation{
				UserUID:          obj.Metadata[paymentprovider.MetadataUserKey],
				CustomerID:       string(obj.Customer),
				SubscriptionID:   obj.ID,
				Plan:             s.resolvePlan(obj.Metadata[paymentprovider.MetadataPlanKey], obj.priceID()),
				CurrentPeriodEnd: obj.periodEnd(),
			})
		case "canceled":
			return s.cancel(ctx, log, event, string(obj.Customer), obj.ID, obj.CanceledAt)
		default:
			log.Info("subscription status not tracked", slog.String("status", obj.Status))
			return metrics.ResultIgnored, nil
		}

	case KindSubscriptionDeleted:
		var obj subscriptionObject
		if !decode(log, event, &obj) {
			return metrics.ResultIgnored, nil
		}
		return s.cancel(ctx, log, event, string(obj.Customer), obj.ID, obj.CanceledAt)

	case KindInvoicePaid:
		var obj invoiceObject
		if !decode(log, event, &obj) {
			return metrics.ResultIgnored, nil
		}
		details := obj.Parent.SubscriptionDetails
		if details == nil {
			log.Info("invoice is not for a subscription", slog.String("invoice_id", obj.ID))
			return metrics.ResultIgnored, nil
		}
		return s.activate(ctx, log, event, models.Activation{
			UserUID:          details.Metadata[paymentprovider.MetadataUserKey],
			CustomerID:       string(obj.Customer),
			SubscriptionID:   string(details.Subscription),
			Plan:             s.resolvePlan(details.Metadata[paymentprovider.MetadataPlanKey], obj.priceID()),
			CurrentPeriodEnd: obj.periodEnd(),
		})

	case KindInvoicePaymentFailed:
		var obj invoiceObject
		if !decode(log, event, &obj) {
			return metrics.ResultIgnored, nil
		}
		n := models.SubscriptionNotification{
			EventID:    event.ID,
			CustomerID: string(obj.Customer),
			Status:     "payment_failed",
			OccurredAt: event.Created,
		}
		if d := obj.Parent.SubscriptionDetails; d != nil {
			n.UserUID = d.Metadata[paymentprovider.MetadataUserKey]
			n.SubscriptionID = string(d.Subscription)
		}
		log.Info("invoice payment failed", slog.String("invoice_id", obj.ID), slog.String("customer_id", n.CustomerID))
		s.notify(ctx, log, rabbitmq.RoutingPaymentFailed, n)
		return metrics.ResultOK, nil

	case KindIgnored:
		return metrics.ResultIgnored, nil
	}
	return metrics.ResultIgnored, nil
}

func (s *Service) checkoutCompleted(ctx context.Context, log *slog.Logger, event models.WebhookEvent, obj checkoutSession) (string, error) {
	uid := obj.Metadata[paymentprovider.MetadataUserKey]
	if uid == "" {
		uid = obj.ClientReferenceID
	}
	a := models.Activation{
		UserUID:        uid,
		CustomerID:     string(obj.Customer),
		SubscriptionID: string(obj.Subscription),
		Plan:           s.resolvePlan(obj.Metadata[paymentprovider.MetadataPlanKey], ""),
	}
	if a.SubscriptionID == "" {
		log.Info("checkout session without subscription", slog.String("session_id", obj.ID))
		return metrics.ResultIgnored, nil
	}

	if s.provider != nil {
		sub, err := s.provider.GetSubscription(ctx, a.SubscriptionID)
		if err != nil {
			log.Warn("failed to read subscription period", append([]any{sl.Err(err)}, paymentprovider.Describe(err)...)...)
		} else {
			a.CurrentPeriodEnd = sub.CurrentPeriodEnd
			if a.Plan == "" {
				a.Plan = s.resolvePlan(sub.Metadata[paymentprovider.MetadataPlanKey], sub.PriceID)
			}
		}
	}
	return s.activate(ctx, log, event, a)
}

// resolvePlan выбирает план из метаданных, а если их нет, то по цене.
func (s *Service) resolvePlan(fromMetadata, priceID string) models.PlanID {
	if s.catalog == nil {
		return models.PlanID(fromMetadata)
	}
	if p, err := s.catalog.Lookup(fromMetadata); err == nil {
		return p.ID
	}
	if id, ok := s.catalog.ByPriceID(priceID); ok {
		return id
	}
	return ""
}

func (s *Service) activate(ctx context.Context, log *slog.Logger, event models.WebhookEvent, a models.Activation) (string, error) {
	log = log.With(slog.String("user_uid", a.UserUID), slog.String("subscription_id", a.SubscriptionID))
	if a.UserUID == "" || a.SubscriptionID == "" {
		log.Warn("event has no user metadata")
		return metrics.ResultIgnored, nil
	}

	changed, err := s.store.ActivateSubscription(ctx, a)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidData) {
			log.Warn("activation does not match local state", sl.Err(err))
			return metrics.ResultIgnored, nil
		}
		return "", err
	}
	if !changed {
		log.Info("subscription state unchanged")
		return metrics.ResultIgnored, nil
	}

	log.Info("subscription activated", slog.String("plan", string(a.Plan)))
	s.afterChange(ctx, log, rabbitmq.RoutingActivated, models.SubscriptionNotification{
		EventID:        event.ID,
		UserUID:        a.UserUID,
		CustomerID:     a.CustomerID,
		SubscriptionID: a.SubscriptionID,
		Plan:           a.Plan,
		Status:         string(models.StatusActive),
		OccurredAt:     event.Created,
	})
	return metrics.ResultOK, nil
}

func (s *Service) cancel(ctx context.Context, log *slog.Logger, event models.WebhookEvent, customerID, subscriptionID string, canceledAt int64) (string, error) {
	log = log.With(slog.String("customer_id", customerID), slog.String("subscription_id", subscriptionID))
	if customerID == "" {
		log.Warn("event has no customer")
		return metrics.ResultIgnored, nil
	}

	at := event.Created
	if t := unixTime(canceledAt); t != nil {
		at = *t
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	users, err := s.store.CancelSubscription(ctx, customerID, subscriptionID, at)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidData) {
			log.Warn("cancellation does not match local state", sl.Err(err))
			return metrics.ResultIgnored, nil
		}
		return "", err
	}
	if len(users) == 0 {
		log.Info("no active subscription to cancel")
		return metrics.ResultIgnored, nil
	}

	for _, uid := range users {
		log.Info("subscription canceled", slog.String("user_uid", uid))
		s.afterChange(ctx, log, rabbitmq.RoutingCanceled, models.SubscriptionNotification{
			EventID:        event.ID,
			UserUID:        uid,
			CustomerID:     customerID,
			SubscriptionID: subscriptionID,
			Status:         string(models.StatusCanceled),
			OccurredAt:     at,
		})
	}
	return metrics.ResultOK, nil
}

// afterChange сбрасывает кэш профиля и уведомляет подписчиков. Ошибки только журналируются.
// Переход уже зафиксирован, поэтому отмена запроса на afterChange не влияет.
func (s *Service) afterChange(ctx context.Context, log *slog.Logger, routingKey string, n models.SubscriptionNotification) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachedTimeout)
	defer cancel()
	if err := s.cache.Invalidate(ctx, cache.UserSubscriptionKey(n.UserUID)); err != nil {
		log.Warn("failed to invalidate profile cache", sl.Err(err))
	}
	s.notify(ctx, log, routingKey, n)
}

func (s *Service) notify(ctx context.Context, log *slog.Logger, routingKey string, n models.SubscriptionNotification) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, routingKey, n); err != nil {
		log.Warn("failed to publish notification", slog.String("routing_key", routingKey), sl.Err(err))
	}
}

func decode(log *slog.Logger, event models.WebhookEvent, out any) bool {
	if len(event.Object) == 0 {
		log.Warn("event has no data object")
		return false
	}
	if err := json.Unmarshal(event.Object, out); err != nil {
		log.Warn("malformed event object", sl.Err(err))
		return false
	}
	return true
}
