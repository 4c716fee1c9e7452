package bus

// Adapter is a convenience interface that combines publishing and subscribing capabilities.
// Any transport that implements both Publisher and Subscriber can back the request/reply bridge.
//
// This keeps the bridge decoupled from concrete transports while enabling simple injection
// of user-provided adapters (Kafka, NATS, RabbitMQ, in-memory, etc.).
type Adapter interface {
	Publisher
	Subscriber
}
