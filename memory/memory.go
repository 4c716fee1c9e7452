// Package memory wires a complete request/reply bridge over the in-memory broker.
// It backs the inmemory transport driver, tests and examples.
package memory

import (
	"context"
	"log/slog"

	"github.com/next-trace/scg-wallet-bridge/adapters/inmemory"
	"github.com/next-trace/scg-wallet-bridge/bridge"
)

// Bridge bundles one broker with the registry, client and intake that share it.
type Bridge struct {
	Broker   *inmemory.Broker
	Registry *bridge.Registry
	Client   *bridge.Client
	Intake   *bridge.Intake
	logger   *slog.Logger
}

// New constructs a bridge whose intake listens on every responseTopic.
// Delivery is asynchronous, as on a real broker.
func New(ctx context.Context, logger *slog.Logger, responseTopics ...string) (*Bridge, error) {
	if logger == nil {
		logger = slog.Default()
	}

	b := inmemory.NewAsync()
	reg := bridge.NewRegistry()
	in := bridge.NewIntake(reg, logger, nil)

	if err := in.Listen(ctx, b, responseTopics...); err != nil {
		return nil, err
	}

	return &Bridge{
		Broker:   b,
		Registry: reg,
		Client:   bridge.NewClient(b, reg, logger),
		Intake:   in,
		logger:   logger,
	}, nil
}

// Serve answers requests on requestTopic with h, replying on responseTopic
// unless a request names its own replyTo.
func (b *Bridge) Serve(ctx context.Context, requestTopic, responseTopic string, h bridge.HandlerFunc) error {
	return bridge.NewResponder(b.Broker, responseTopic, h, b.logger).Listen(ctx, b.Broker, requestTopic)
}
