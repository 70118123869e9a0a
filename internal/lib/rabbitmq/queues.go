package rabbitmq

// Ключи маршрутизации событий подписок.
const (
	RoutingActivated       = "activated"
	RoutingCancelRequested = "cancel_requested"
	RoutingDowngraded      = "downgraded"
)

type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// SubscriptionQueues возвращает очереди, которые объявляются при старте.
func SubscriptionQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "subscription.activated", RoutingKey: RoutingActivated},
		{QueueName: "subscription.cancel_requested", RoutingKey: RoutingCancelRequested},
		{QueueName: "subscription.downgraded", RoutingKey: RoutingDowngraded},
	}
}
