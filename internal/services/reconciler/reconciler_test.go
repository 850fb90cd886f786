package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-checkout/internal/cache"
	"github.com/magabrotheeeer/subscription-checkout/internal/config"
	"github.com/magabrotheeeer/subscription-checkout/internal/metrics"
	"github.com/magabrotheeeer/subscription-checkout/internal/models"
	"github.com/magabrotheeeer/subscription-checkout/internal/paymentprovider"
	"github.com/magabrotheeeer/subscription-checkout/internal/paymentprovider/stripetest"
	"github.com/magabrotheeeer/subscription-checkout/internal/plans"
	"github.com/magabrotheeeer/subscription-checkout/internal/rabbitmq"
	"github.com/magabrotheeeer/subscription-checkout/internal/storage"
)

const webhookSecret = "whsec_reconciler"

func jsonUnmarshal(s string, out any) error {
	return json.Unmarshal([]byte(s), out)
}

type StoreMock struct{ mock.Mock }

func (m *StoreMock) ActivateSubscription(ctx context.Context, a models.Activation) (bool, error) {
	args := m.Called(ctx, a)
	return args.Bool(0), args.Error(1)
}

func (m *StoreMock) CancelSubscription(ctx context.Context, customerID, subscriptionID string, at time.Time) ([]string, error) {
	args := m.Called(ctx, customerID, subscriptionID, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type ProviderMock struct{ mock.Mock }

func (m *ProviderMock) GetSubscription(ctx context.Context, id string) (*paymentprovider.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Subscription), args.Error(1)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, message any) error {
	return m.Called(ctx, routingKey, message).Error(0)
}

type fixture struct {
	svc       *Service
	store     *StoreMock
	provider  *ProviderMock
	publisher *PublisherMock
	cache     *cache.Cache
	redis     *miniredis.Miniredis
	metrics   *metrics.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := cache.InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	catalog, err := plans.New(map[string]string{"monthly": "price_m", "annually": "price_a"})
	require.NoError(t, err)

	f := &fixture{
		store:     new(StoreMock),
		provider:  new(ProviderMock),
		publisher: new(PublisherMock),
		cache:     c,
		redis:     mr,
		metrics:   metrics.New(prometheus.NewRegistry()),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewService(Deps{
		Verifier:  paymentprovider.New(config.Stripe{SecretKey: "sk_test", WebhookSecret: webhookSecret}, log),
		Store:     f.store,
		Provider:  f.provider,
		Cache:     c,
		Publisher: f.publisher,
		Catalog:   catalog,
		Metrics:   f.metrics,
	}, log)
	return f
}

func (f *fixture) deliver(t *testing.T, payload []byte) error {
	t.Helper()
	return f.svc.Reconcile(context.Background(), payload, stripetest.Sign(payload, webhookSecret, time.Now()))
}

func (f *fixture) assertMocks(t *testing.T) {
	f.store.AssertExpectations(t)
	f.provider.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func subscriptionDeleted(id string) []byte {
	return stripetest.Event(id, "customer.subscription.deleted", map[string]any{
		"id":          "sub_1",
		"object":      "subscription",
		"customer":    "cus_1",
		"status":      "canceled",
		"canceled_at": 1700000000,
	})
}

func checkoutCompleted(id string, metadata map[string]string) []byte {
	return stripetest.Event(id, "checkout.session.completed", map[string]any{
		"id":           "cs_1",
		"object":       "checkout.session",
		"mode":         "subscription",
		"customer":     "cus_1",
		"subscription": "sub_1",
		"metadata":     metadata,
	})
}

func TestReconcile_InvalidSignature(t *testing.T) {
	f := newFixture(t)
	payload := subscriptionDeleted("evt_1")

	err := f.svc.Reconcile(context.Background(), payload, stripetest.Sign(payload, "whsec_wrong", time.Now()))
	require.ErrorIs(t, err, paymentprovider.ErrInvalidSignature)

	f.store.AssertNotCalled(t, "CancelSubscription", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.False(t, f.redis.Exists(cache.EventKey("evt_1")))
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.WebhookEventCounter("ignored", metrics.ResultRejected)), 0)
}

func TestReconcile_SubscriptionDeleted(t *testing.T) {
	f := newFixture(t)
	canceledAt := time.Unix(1700000000, 0).UTC()
	require.NoError(t, f.cache.Set(context.Background(), cache.UserSubscriptionKey("uid-1"), "cached", time.Minute))

	f.store.On("CancelSubscription", mock.Anything, "cus_1", "sub_1", canceledAt).Return([]string{"uid-1"}, nil).Once()
	f.publisher.On("Publish", mock.Anything, rabbitmq.RoutingCanceled, mock.MatchedBy(func(n models.SubscriptionNotification) bool {
		return n.UserUID == "uid-1" && n.EventID == "evt_1" && n.Status == "canceled"
	})).Return(nil).Once()

	require.NoError(t, f.deliver(t, subscriptionDeleted("evt_1")))

	assert.False(t, f.redis.Exists(cache.UserSubscriptionKey("uid-1")))
	assert.True(t, f.redis.Exists(cache.EventKey("evt_1")))
	f.assertMocks(t)
}

func TestReconcile_DuplicateDeliveryAppliedOnce(t *testing.T) {
	f := newFixture(t)
	f.store.On("CancelSubscription", mock.Anything, "cus_1", "sub_1", mock.Anything).Return([]string{"uid-1"}, nil).Once()
	f.publisher.On("Publish", mock.Anything, rabbitmq.RoutingCanceled, mock.Anything).Return(nil).Once()

	payload := subscriptionDeleted("evt_dup")
	require.NoError(t, f.deliver(t, payload))
	require.NoError(t, f.deliver(t, payload))

	f.assertMocks(t)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.WebhookEventCounter("subscription_deleted", metrics.ResultDuplicate)), 0)
}

func TestReconcile_CancelWithoutRedisStillIdempotent(t *testing.T) {
	f := newFixture(t)
	f.redis.Close()

	f.store.On("CancelSubscription", mock.Anything, "cus_1", "sub_1", mock.Anything).Return([]string{"uid-1"}, nil).Once()
	f.store.On("CancelSubscription", mock.Anything, "cus_1", "sub_1", mock.Anything).Return([]string{}, nil).Once()
	f.publisher.On("Publish", mock.Anything, rabbitmq.RoutingCanceled, mock.Anything).Return(nil).Once()

	payload := subscriptionDeleted("evt_noredis")
	require.NoError(t, f.deliver(t, payload))
	require.NoError(t, f.deliver(t, payload))
	f.assertMocks(t)
}

func TestReconcile_StorageFailureLeavesEventUnmarked(t *testing.T) {
	f := newFixture(t)
	f.store.On("CancelSubscription", mock.Anything, "cus_1", "sub_1", mock.Anything).Return(nil, errors.New("db down")).Once()
	f.store.On("CancelSubscription", mock.Anything, "cus_1", "sub_1", mock.Anything).Return([]string{"uid-1"}, nil).Once()
	f.publisher.On("Publish", mock.Anything, rabbitmq.RoutingCanceled, mock.Anything).Return(nil).Once()

	payload := subscriptionDeleted("evt_retry")
	err := f.deliver(t, payload)
	require.Error(t, err)
	assert.NotErrorIs(t, err, paymentprovider.ErrInvalidSignature)
	assert.False(t, f.redis.Exists(cache.EventKey("evt_retry")))

	require.NoError(t, f.deliver(t, payload))
	assert.True(t, f.redis.Exists(cache.EventKey("evt_retry")))
	f.assertMocks(t)
}

func TestReconcile_CanceledRequestIsRetried(t *testing.T) {
	f := newFixture(t)
	payload := subscriptionDeleted("evt_canceled")
	ctx, cancel := context.WithCancel(context.Background())

	f.store.On("CancelSubscription", mock.Anything, "cus_1", "sub_1", mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled).Once()
	f.store.On("CancelSubscription", mock.Anything, "cus_1", "sub_1", mock.Anything).Return([]string{"uid-1"}, nil).Once()
	f.publisher.On("Publish", mock.Anything, rabbitmq.RoutingCanceled, mock.Anything).Return(nil).Once()

	err := f.svc.Reconcile(ctx, payload, stripetest.Sign(payload, webhookSecret, time.Now()))
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, f.redis.Exists(cache.EventKey("evt_canceled")))

	require.NoError(t, f.deliver(t, payload))
	f.store.AssertNumberOfCalls(t, "CancelSubscription", 2)
	f.assertMocks(t)
}

func TestReconcile_InFlightEventIsNotDuplicate(t *testing.T) {
	f := newFixture(t)
	payload := subscriptionDeleted("evt_inflight")

	// повторная доставка, пришедшая во время применения, применяется заново
	f.store.On("CancelSubscription", mock.Anything, "cus_1", "sub_1", mock.Anything).
		Run(func(mock.Arguments) {
			assert.False(t, f.redis.Exists(cache.EventKey("evt_inflight")))
		}).
		Return([]string{"uid-1"}, nil).Once()
	f.publisher.On("Publish", mock.Anything, rabbitmq.RoutingCanceled, mock.Anything).Return(nil).Once()

	require.NoError(t, f.deliver(t, payload))
	assert.True(t, f.redis.Exists(cache.EventKey("evt_inflight")))
	assert.InDelta(t, 0, testutil.ToFloat64(f.metrics.WebhookEventCounter("subscription_deleted", metrics.ResultDuplicate)), 0)
	f.assertMocks(t)
}

func TestReconcile_AppliedEventMarkedAfterRequestCanceled(t *testing.T) {
	f := newFixture(t)
	payload := subscriptionDeleted("evt_late_cancel")
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.cache.Set(context.Background(), cache.UserSubscriptionKey("uid-1"), "cached", time.Minute))

	f.store.On("CancelSubscription", mock.Anything, "cus_1", "sub_1", mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return([]string{"uid-1"}, nil).Once()
	f.publisher.On("Publish", mock.Anything, rabbitmq.RoutingCanceled, mock.Anything).Return(nil).Once()

	require.NoError(t, f.svc.Reconcile(ctx, payload, stripetest.Sign(payload, webhookSecret, time.Now())))
	assert.True(t, f.redis.Exists(cache.EventKey("evt_late_cancel")))
	assert.False(t, f.redis.Exists(cache.UserSubscriptionKey("uid-1")))
	f.assertMocks(t)
}

func TestReconcile_CheckoutCompleted(t *testing.T) {
	f := newFixture(t)
	periodEnd := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	f.provider.On("GetSubscription", mock.Anything, "sub_1").Return(&paymentprovider.Subscription{
		ID: "sub_1", PriceID: "price_a", CurrentPeriodEnd: &periodEnd,
	}, nil).Once()
	f.store.On("ActivateSubscription", mock.Anything, models.Activation{
		UserUID:          "uid-1",
		CustomerID:       "cus_1",
		SubscriptionID:   "sub_1",
		Plan:             models.PlanMonthly,
		CurrentPeriodEnd: &periodEnd,
	}).Return(true, nil).Once()
	f.publisher.On("Publish", mock.Anything, rabbitmq.RoutingActivated, mock.MatchedBy(func(n models.SubscriptionNotification) bool {
		return n.UserUID == "uid-1" && n.Plan == models.PlanMonthly
	})).Return(nil).Once()

	require.NoError(t, f.deliver(t, checkoutCompleted("evt_cs", map[string]string{"firebaseUid": "uid-1", "plan": "monthly"})))
	f.assertMocks(t)
}

func TestReconcile_CheckoutCompleted_PlanFromPrice(t *testing.T) {
	f := newFixture(t)
	f.provider.On("GetSubscription", mock.Anything, "sub_1").Return(&paymentprovider.Subscription{
		ID: "sub_1", PriceID: "price_a",
	}, nil).Once()
	f.store.On("ActivateSubscription", mock.Anything, mock.MatchedBy(func(a models.Activation) bool {
		return a.Plan == models.PlanAnnually && a.CurrentPeriodEnd == nil
	})).Return(true, nil).Once()
	f.publisher.On("Publish", mock.Anything, rabbitmq.RoutingActivated, mock.Anything).Return(nil).Once()

	require.NoError(t, f.deliver(t, checkoutCompleted("evt_cs", map[string]string{"firebaseUid": "uid-1"})))
	f.assertMocks(t)
}

func TestReconcile_CheckoutCompleted_ProviderUnavailable(t *testing.T) {
	f := newFixture(t)
	f.provider.On("GetSubscription", mock.Anything, "sub_1").Return(nil, errors.New("timeout")).Once()
	f.store.On("ActivateSubscription", mock.Anything, mock.MatchedBy(func(a models.Activation) bool {
		return a.UserUID == "uid-1" && a.CurrentPeriodEnd == nil
	})).Return(true, nil).Once()
	f.publisher.On("Publish", mock.Anything, rabbitmq.RoutingActivated, mock.Anything).Return(nil).Once()

	require.NoError(t, f.deliver(t, checkoutCompleted("evt_cs", map[string]string{"firebaseUid": "uid-1", "plan": "monthly"})))
	f.assertMocks(t)
}

func TestReconcile_CheckoutCompleted_MissingMetadataAcknowledged(t *testing.T) {
	f := newFixture(t)
	f.provider.On("GetSubscription", mock.Anything, "sub_1").Return(&paymentprovider.Subscription{ID: "sub_1"}, nil).Once()

	require.NoError(t, f.deliver(t, checkoutCompleted("evt_cs", nil)))
	f.store.AssertNotCalled(t, "ActivateSubscription", mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_ActivationOfCanceledIsNoop(t *testing.T) {
	f := newFixture(t)
	f.provider.On("GetSubscription", mock.Anything, "sub_1").Return(&paymentprovider.Subscription{ID: "sub_1"}, nil).Once()
	f.store.On("ActivateSubscription", mock.Anything, mock.Anything).Return(false, nil).Once()

	require.NoError(t, f.deliver(t, checkoutCompleted("evt_late", map[string]string{"firebaseUid": "uid-1", "plan": "monthly"})))
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	f.store.AssertExpectations(t)
}

func TestReconcile_UnknownUserAcknowledged(t *testing.T) {
	f := newFixture(t)
	f.provider.On("GetSubscription", mock.Anything, "sub_1").Return(&paymentprovider.Subscription{ID: "sub_1"}, nil).Once()
	f.store.On("ActivateSubscription", mock.Anything, mock.Anything).
		Return(false, storage.ErrNotFound).Once()

	require.NoError(t, f.deliver(t, checkoutCompleted("evt_ghost", map[string]string{"firebaseUid": "uid-ghost"})))
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_SubscriptionUpdated(t *testing.T) {
	event := func(id, status string) []byte {
		return stripetest.Event(id, "customer.subscription.updated", map[string]any{
			"id":       "sub_1",
			"object":   "subscription",
			"customer": map[string]any{"id": "cus_1", "object": "customer"},
			"status":   status,
			"metadata": map[string]string{"firebaseUid": "uid-1"},
			"items": map[string]any{"data": []map[string]any{{
				"current_period_end": 1900000000,
				"price":              map[string]any{"id": "price_m"},
			}}},
		})
	}

	t.Run("active", func(t *testing.T) {
		f := newFixture(t)
		f.store.On("ActivateSubscription", mock.Anything, mock.MatchedBy(func(a models.Activation) bool {
			return a.CustomerID == "cus_1" && a.Plan == models.PlanMonthly &&
				a.CurrentPeriodEnd != nil && a.CurrentPeriodEnd.Unix() == 1900000000
		})).Return(true, nil).Once()
		f.publisher.On("Publish", mock.Anything, rabbitmq.RoutingActivated, mock.Anything).Return(nil).Once()

		require.NoError(t, f.deliver(t, event("evt_a", "active")))
		f.assertMocks(t)
	})

	t.Run("canceled", func(t *testing.T) {
		f := newFixture(t)
		f.store.On("CancelSubscription", mock.Anything, "cus_1", "sub_1", mock.Anything).Return([]string{"uid-1"}, nil).Once()
		f.publisher.On("Publish", mock.Anything, rabbitmq.RoutingCanceled, mock.Anything).Return(nil).Once()

		require.NoError(t, f.deliver(t, event("evt_c", "canceled")))
		f.assertMocks(t)
	})

	t.Run("past_due is acknowledged", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.deliver(t, event("evt_p", "past_due")))
		f.store.AssertNotCalled(t, "ActivateSubscription", mock.Anything, mock.Anything)
		f.store.AssertNotCalled(t, "CancelSubscription", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestReconcile_InvoicePaid(t *testing.T) {
	f := newFixture(t)
	payload := stripetest.Event("evt_inv", "invoice.paid", map[string]any{
		"id":       "in_1",
		"object":   "invoice",
		"customer": "cus_1",
		"status":   "paid",
		"parent": map[string]any{"subscription_details": map[string]any{
			"subscription": "sub_1",
			"metadata":     map[string]string{"firebaseUid": "uid-1", "plan": "annually"},
		}},
		"lines": map[string]any{"data": []map[string]any{{"period": map[string]any{"end": 1900000000}}}},
	})

	f.store.On("ActivateSubscription", mock.Anything, mock.MatchedBy(func(a models.Activation) bool {
		return a.UserUID == "uid-1" && a.SubscriptionID == "sub_1" && a.Plan == models.PlanAnnually &&
			a.CurrentPeriodEnd != nil && a.CurrentPeriodEnd.Unix() == 1900000000
	})).Return(true, nil).Once()
	f.publisher.On("Publish", mock.Anything, rabbitmq.RoutingActivated, mock.Anything).Return(nil).Once()

	require.NoError(t, f.deliver(t, payload))
	f.assertMocks(t)
}

func TestReconcile_RepeatedInvoicePaidWithoutRedisPublishesOnce(t *testing.T) {
	f := newFixture(t)
	f.redis.Close()
	payload := stripetest.Event("evt_inv_again", "invoice.paid", map[string]any{
		"id":       "in_1",
		"object":   "invoice",
		"customer": "cus_1",
		"status":   "paid",
		"parent": map[string]any{"subscription_details": map[string]any{
			"subscription": "sub_1",
			"metadata":     map[string]string{"firebaseUid": "uid-1", "plan": "monthly"},
		}},
	})

	// хранилище сообщает об отсутствии изменений при повторе, уведомление уходит один раз
	f.store.On("ActivateSubscription", mock.Anything, mock.Anything).Return(true, nil).Once()
	f.store.On("ActivateSubscription", mock.Anything, mock.Anything).Return(false, nil).Once()
	f.publisher.On("Publish", mock.Anything, rabbitmq.RoutingActivated, mock.Anything).Return(nil).Once()

	require.NoError(t, f.deliver(t, payload))
	require.NoError(t, f.deliver(t, payload))
	f.assertMocks(t)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.WebhookEventCounter("invoice_paid", metrics.ResultIgnored)), 0)
}

func TestReconcile_InvoicePaymentFailedNotifiesOnly(t *testing.T) {
	f := newFixture(t)
	payload := stripetest.Event("evt_fail", "invoice.payment_failed", map[string]any{
		"id":       "in_1",
		"object":   "invoice",
		"customer": "cus_1",
		"parent": map[string]any{"subscription_details": map[string]any{
			"subscription": "sub_1",
			"metadata":     map[string]string{"firebaseUid": "uid-1"},
		}},
	})
	f.publisher.On("Publish", mock.Anything, rabbitmq.RoutingPaymentFailed, mock.MatchedBy(func(n models.SubscriptionNotification) bool {
		return n.UserUID == "uid-1" && n.SubscriptionID == "sub_1"
	})).Return(nil).Once()

	require.NoError(t, f.deliver(t, payload))
	f.assertMocks(t)
	f.store.AssertNotCalled(t, "ActivateSubscription", mock.Anything, mock.Anything)
}

func TestReconcile_PublishFailureDoesNotFailEvent(t *testing.T) {
	f := newFixture(t)
	f.store.On("CancelSubscription", mock.Anything, "cus_1", "sub_1", mock.Anything).Return([]string{"uid-1"}, nil).Once()
	f.publisher.On("Publish", mock.Anything, rabbitmq.RoutingCanceled, mock.Anything).Return(errors.New("broker down")).Once()

	require.NoError(t, f.deliver(t, subscriptionDeleted("evt_pub")))
	f.assertMocks(t)
}

func TestReconcile_IgnoredAndMalformed(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.deliver(t, stripetest.Event("evt_other", "customer.created", map[string]any{"id": "cus_1"})))
	assert.False(t, f.redis.Exists(cache.EventKey("evt_other")))

	malformed := stripetest.Event("evt_bad", "customer.subscription.deleted", map[string]any{
		"id": "sub_1", "customer": 42,
	})
	require.NoError(t, f.deliver(t, malformed))

	noCustomer := stripetest.Event("evt_nocus", "customer.subscription.deleted", map[string]any{"id": "sub_1"})
	require.NoError(t, f.deliver(t, noCustomer))

	f.store.AssertNotCalled(t, "CancelSubscription", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.WebhookEventCounter("ignored", metrics.ResultIgnored)), 0)
}
