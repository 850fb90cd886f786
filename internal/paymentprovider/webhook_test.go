package paymentprovider_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-checkout/internal/paymentprovider"
	"github.com/magabrotheeeer/subscription-checkout/internal/paymentprovider/stripetest"
)

func TestClient_ConstructEvent(t *testing.T) {
	c, _ := newClient(t)
	payload := stripetest.Event("evt_1", "customer.subscription.deleted", map[string]any{
		"id":       "sub_1",
		"object":   "subscription",
		"customer": "cus_1",
	})

	event, err := c.ConstructEvent(payload, stripetest.Sign(payload, webhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "customer.subscription.deleted", event.Type)

	var obj map[string]any
	require.NoError(t, json.Unmarshal(event.Object, &obj))
	assert.Equal(t, "cus_1", obj["customer"])
}

func TestClient_ConstructEvent_InvalidSignature(t *testing.T) {
	c, _ := newClient(t)
	payload := stripetest.Event("evt_1", "checkout.session.completed", map[string]any{"id": "cs_1"})

	tests := []struct {
		name      string
		signature string
	}{
		{name: "wrong secret", signature: stripetest.Sign(payload, "whsec_other", time.Now())},
		{name: "expired timestamp", signature: stripetest.Sign(payload, webhookSecret, time.Now().Add(-time.Hour))},
		{name: "empty header", signature: ""},
		{name: "garbage header", signature: "not-a-signature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.ConstructEvent(payload, tt.signature)
			assert.ErrorIs(t, err, paymentprovider.ErrInvalidSignature)
		})
	}
}

func TestClient_ConstructEvent_TamperedPayload(t *testing.T) {
	c, _ := newClient(t)
	payload := stripetest.Event("evt_1", "checkout.session.completed", map[string]any{"id": "cs_1"})
	sig := stripetest.Sign(payload, webhookSecret, time.Now())

	tampered := stripetest.Event("evt_2", "checkout.session.completed", map[string]any{"id": "cs_1"})
	_, err := c.ConstructEvent(tampered, sig)
	assert.ErrorIs(t, err, paymentprovider.ErrInvalidSignature)
}
