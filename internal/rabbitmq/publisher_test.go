package rabbitmq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_PublishRoutesByKey(t *testing.T) {
	amqpURI := amqpURIForTest(t)

	conn, err := Connect(amqpURI, 5, time.Second)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	exchange := "subscriptions-publish-test"
	ch, err := SetupChannel(conn, exchange, GetSubscriptionQueues())
	require.NoError(t, err)

	publisher := NewPublisher(ch, exchange)
	defer func() { _ = publisher.Close() }()

	msg := map[string]any{"user_uid": "u1", "status": "canceled"}
	require.NoError(t, publisher.Publish(context.Background(), RoutingCanceled, msg))

	consumeCh, err := conn.Channel()
	require.NoError(t, err)
	defer func() { _ = consumeCh.Close() }()

	deliveries, err := consumeCh.Consume("subscriptions.canceled", "test-consumer", true, false, false, false, nil)
	require.NoError(t, err)

	select {
	case d := <-deliveries:
		var got map[string]any
		require.NoError(t, json.Unmarshal(d.Body, &got))
		assert.Equal(t, "u1", got["user_uid"])
		assert.Equal(t, "application/json", d.ContentType)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublisher_CanceledContext(t *testing.T) {
	publisher := NewPublisher(nil, "unused")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := publisher.Publish(ctx, RoutingActivated, map[string]string{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublishMessage_MarshalError(t *testing.T) {
	badMsg := struct {
		Ch chan int `json:"ch"`
	}{Ch: make(chan int)}

	err := PublishMessage(nil, "", "rk", badMsg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rabbitmq.PublishMessage")
}
