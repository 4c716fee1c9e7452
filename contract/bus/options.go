package bus

// PublishOptions controls how a single message is published.
// Key maps to the partition key on Kafka and to a header elsewhere.
type PublishOptions struct {
	Key     string
	Headers map[string]string
}
