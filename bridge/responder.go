package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	cbus "github.com/next-trace/scg-wallet-bridge/contract/bus"
	berr "github.com/next-trace/scg-wallet-bridge/contract/errors"
)

// HandlerFunc computes the response payload for one request payload.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// Responder serves requests published by a Client: it answers each request envelope
// with a response envelope carrying the same correlation id.
type Responder struct {
	pub           cbus.Publisher
	responseTopic string
	handler       HandlerFunc
	logger        *slog.Logger
}

// NewResponder constructs a Responder. Responses go to the request's replyTo topic,
// or to responseTopic when the request names none.
func NewResponder(pub cbus.Publisher, responseTopic string, h HandlerFunc, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}

	return &Responder{pub: pub, responseTopic: responseTopic, handler: h, logger: logger}
}

// HandleMessage is a cbus.MessageHandler for request topics.
func (r *Responder) HandleMessage(ctx context.Context, msg cbus.Message) {
	env, err := decodeEnvelope(msg)
	if err != nil {
		r.logger.WarnContext(ctx, "malformed request dropped", "topic", msg.Topic, "error", err)
		return
	}

	id := env.CorrelationID

	result, err := r.handler(ctx, env.Payload)
	if err != nil {
		r.logger.ErrorContext(ctx, "request handler failed, no reply sent",
			"correlation_id", id, "topic", msg.Topic, "error", err)

		return
	}

	topic := env.ReplyTo
	if topic == "" {
		topic = r.responseTopic
	}

	if err = r.reply(ctx, topic, id, result); err != nil {
		r.logger.ErrorContext(ctx, "reply failed", "correlation_id", id, "topic", topic, "error", err)
		return
	}

	r.logger.DebugContext(ctx, "reply sent", "correlation_id", id, "topic", topic)
}

// Listen subscribes the responder to requestTopic.
func (r *Responder) Listen(ctx context.Context, sub cbus.Subscriber, requestTopic string) error {
	if err := sub.Subscribe(ctx, requestTopic, r.HandleMessage); err != nil {
		return fmt.Errorf("serve %s: %w", requestTopic, errors.Join(berr.ErrSubscribeFailed, err))
	}

	r.logger.InfoContext(ctx, "serving requests", "topic", requestTopic)

	return nil
}

func (r *Responder) reply(ctx context.Context, topic, id string, result any) error {
	if topic == "" || r.pub == nil {
		return fmt.Errorf("reply: %w", berr.ErrNotConfigured)
	}

	env, err := cbus.NewEnvelope(result, id)
	if err != nil {
		return errors.Join(berr.ErrSerializationFailed, err)
	}

	body, err := json.Marshal(env)
	if err != nil {
		return errors.Join(berr.ErrSerializationFailed, err)
	}

	return r.pub.Publish(ctx, topic, body, cbus.PublishOptions{
		Key:     id,
		Headers: map[string]string{cbus.HeaderCorrelationID: id},
	})
}
