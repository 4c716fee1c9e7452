package bus

import "context"

// Publisher abstracts publishing raw bodies to a topic on a broker.
// Library users provide an implementation that maps to Kafka/NATS/RabbitMQ etc.
type Publisher interface {
	Publish(ctx context.Context, topic string, body []byte, opts PublishOptions) error
}

// MessageHandler receives messages for a subscribed topic.
// Handlers must not block for long; transports may invoke them from a shared delivery goroutine.
type MessageHandler func(ctx context.Context, msg Message)

// Subscriber abstracts topic subscriptions on a broker.
// Delivery is at-least-once; handlers must tolerate redelivery.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, h MessageHandler) error
}
