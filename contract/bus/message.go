package bus

import "encoding/json"

// HeaderCorrelationID carries the correlation identifier alongside the envelope
// on transports that support message headers.
const HeaderCorrelationID = "x-correlation-id"

// Message is a transport-level record delivered to a subscription or handed to a publisher.
type Message struct {
	Topic   string
	Key     []byte
	Body    []byte
	Headers map[string]string
}

// Envelope is the wire shape shared by requests and responses.
// The payload is opaque to the bridge; only CorrelationID is interpreted.
type Envelope struct {
	Payload       json.RawMessage `json:"payload"`
	CorrelationID string          `json:"correlationId"`
	ReplyTo       string          `json:"replyTo,omitempty"`
}

// NewEnvelope marshals payload and wraps it with the given correlation id.
func NewEnvelope(payload any, correlationID string) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{Payload: raw, CorrelationID: correlationID}, nil
}
