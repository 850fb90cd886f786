package rabbitmq

// Ключи маршрутизации уведомлений о подписках.
const (
	RoutingActivated     = "subscription.activated"
	RoutingCanceled      = "subscription.canceled"
	RoutingPaymentFailed = "payment.failed"
)

// QueueConfig очередь и ключ, по которому она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetSubscriptionQueues очереди, которые объявляет сервис при старте.
func GetSubscriptionQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "subscriptions.activated", RoutingKey: RoutingActivated},
		{QueueName: "subscriptions.canceled", RoutingKey: RoutingCanceled},
		{QueueName: "payments.failed", RoutingKey: RoutingPaymentFailed},
	}
}
