package nats

import (
	"context"
	"errors"
	"fmt"

	cbus "github.com/next-trace/scg-wallet-bridge/contract/bus"
	berr "github.com/next-trace/scg-wallet-bridge/contract/errors"
)

// DeliverFunc receives one inbound NATS message.
type DeliverFunc func(subject string, data []byte, headers map[string]string)

// Client is a minimal NATS-like interface decoupled from any concrete library.
// Users can provide a wrapper around their NATS connection to satisfy this.
type Client interface {
	// Publish publishes a message to a subject with optional headers.
	Publish(subject string, data []byte, headers map[string]string) error
	// Subscribe registers fn for every message on subject.
	Subscribe(subject string, fn DeliverFunc) error
}

// Adapter implements cbus.Adapter using an injected NATS-like Client.
type Adapter struct {
	Client Client
}

// Ensure Adapter implements the combined contract.
var _ cbus.Adapter = (*Adapter)(nil)

// New creates a new NATS adapter instance with the provided client.
func New(c Client) *Adapter { return &Adapter{Client: c} }

func (a *Adapter) Publish(ctx context.Context, topic string, body []byte, opts cbus.PublishOptions) error {
	if err := a.ready(ctx, berr.ErrPublishFailed, "publish"); err != nil {
		return err
	}

	headers := cbus.CopyHeaders(opts.Headers, 1)
	if opts.Key != "" {
		headers["key"] = opts.Key
	}

	if err := a.Client.Publish(topic, body, headers); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("nats publish %s: %w", topic, errors.Join(berr.ErrPublishFailed, err))
	}

	return nil
}

// Subscribe delivers messages on topic to h. Handlers receive ctx, so it should
// live as long as the subscription.
func (a *Adapter) Subscribe(ctx context.Context, topic string, h cbus.MessageHandler) error {
	if err := a.ready(ctx, berr.ErrSubscribeFailed, "subscribe"); err != nil {
		return err
	}

	err := a.Client.Subscribe(topic, func(subject string, data []byte, headers map[string]string) {
		msg := cbus.Message{Topic: subject, Body: data, Headers: headers}
		if k, ok := headers["key"]; ok {
			msg.Key = []byte(k)
		}

		h(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", topic, errors.Join(berr.ErrSubscribeFailed, err))
	}

	return nil
}

func (a *Adapter) ready(ctx context.Context, base error, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Client == nil {
		return fmt.Errorf("nats %s: %w", label, base)
	}

	return nil
}
