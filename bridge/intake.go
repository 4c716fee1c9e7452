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

// Intake resolves pending requests from messages arriving on response topics.
// Late, duplicate and malformed responses are logged and dropped, never returned as errors.
type Intake struct {
	registry *Registry
	logger   *slog.Logger
	metrics  *Metrics
}

// NewIntake constructs an Intake over registry. m may be nil.
func NewIntake(registry *Registry, logger *slog.Logger, m *Metrics) *Intake {
	if logger == nil {
		logger = slog.Default()
	}

	return &Intake{registry: registry, logger: logger, metrics: m}
}

// HandleMessage is a cbus.MessageHandler for response topics.
func (in *Intake) HandleMessage(ctx context.Context, msg cbus.Message) {
	env, err := decodeEnvelope(msg)
	if err != nil {
		in.metrics.dropped(DropMalformed)
		in.logger.WarnContext(ctx, "malformed response dropped", "topic", msg.Topic, "error", err)

		return
	}

	id := env.CorrelationID
	if !in.registry.Resolve(id, env.Payload) {
		in.metrics.dropped(DropUnmatched)
		in.logger.WarnContext(ctx, "no pending request for response, dropped",
			"correlation_id", id, "topic", msg.Topic)

		return
	}

	in.logger.DebugContext(ctx, "response resolved", "correlation_id", id, "topic", msg.Topic)
}

// Listen subscribes the intake to every response topic.
func (in *Intake) Listen(ctx context.Context, sub cbus.Subscriber, topics ...string) error {
	for _, topic := range topics {
		if err := sub.Subscribe(ctx, topic, in.HandleMessage); err != nil {
			return fmt.Errorf("listen %s: %w", topic, errors.Join(berr.ErrSubscribeFailed, err))
		}

		in.logger.InfoContext(ctx, "listening for responses", "topic", topic)
	}

	return nil
}

// decodeEnvelope parses msg, taking the correlation id from the header when the body lacks one.
func decodeEnvelope(msg cbus.Message) (cbus.Envelope, error) {
	var env cbus.Envelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		return cbus.Envelope{}, errors.Join(berr.ErrMalformedEnvelope, err)
	}

	if env.CorrelationID == "" {
		env.CorrelationID = msg.Headers[cbus.HeaderCorrelationID]
	}

	if env.CorrelationID == "" {
		return cbus.Envelope{}, fmt.Errorf("missing correlation id: %w", berr.ErrMalformedEnvelope)
	}

	return env, nil
}
