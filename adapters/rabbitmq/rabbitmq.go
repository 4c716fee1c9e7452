package rabbitmq

import (
	"context"
	"errors"
	"fmt"

	cbus "github.com/next-trace/scg-wallet-bridge/contract/bus"
	berr "github.com/next-trace/scg-wallet-bridge/contract/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

type PubMsg struct {
	Exchange   string
	RoutingKey string
	Body       []byte
	Headers    map[string]string
}

type Publisher interface {
	Publish(ctx context.Context, m PubMsg) error
}

// Delivery is one consumed AMQP message.
type Delivery struct {
	RoutingKey string
	Body       []byte
	Headers    map[string]string
}

// Consumer binds a queue named after the topic and feeds its deliveries to fn.
type Consumer interface {
	Consume(ctx context.Context, queue string, fn func(Delivery)) error
}

type Adapter struct {
	Publisher  Publisher
	Consumer   Consumer
	Exchange   string
	Propagator cbus.HeaderPropagator // optional, for context propagation into headers
}

var _ cbus.Adapter = (*Adapter)(nil)

func New(p Publisher, c Consumer) *Adapter {
	return &Adapter{Publisher: p, Consumer: c, Exchange: integrationExchange}
}

// NewWithPropagator allows configuring a HeaderPropagator for context propagation.
func NewWithPropagator(p Publisher, c Consumer, hp cbus.HeaderPropagator) *Adapter {
	ad := New(p, c)
	ad.Propagator = hp

	return ad
}

func (a *Adapter) Publish(ctx context.Context, topic string, body []byte, opts cbus.PublishOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Publisher == nil {
		return fmt.Errorf("rabbitmq publish: %w", berr.ErrPublishFailed)
	}

	// copy headers to avoid mutating caller-provided map
	hdrs := cbus.CopyHeaders(opts.Headers, 4)
	if opts.Key != "" {
		hdrs["key"] = opts.Key
	}
	// Inject tracing context via configured propagator (keeps adapter decoupled)
	if a.Propagator != nil {
		a.Propagator.Inject(ctx, hdrs)
	}

	msg := PubMsg{
		Exchange:   a.Exchange,
		RoutingKey: topic,
		Body:       body,
		Headers:    hdrs,
	}
	if err := a.Publisher.Publish(ctx, msg); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("rabbitmq publish %s: %w", topic, errors.Join(berr.ErrPublishFailed, err))
	}

	return nil
}

func (a *Adapter) Subscribe(ctx context.Context, topic string, h cbus.MessageHandler) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Consumer == nil {
		return fmt.Errorf("rabbitmq subscribe %s: %w", topic, berr.ErrSubscribeFailed)
	}

	err := a.Consumer.Consume(ctx, topic, func(d Delivery) {
		msg := cbus.Message{Topic: topic, Body: d.Body, Headers: d.Headers}
		if k, ok := d.Headers["key"]; ok {
			msg.Key = []byte(k)
		}

		h(ctx, msg)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("rabbitmq subscribe %s: %w", topic, errors.Join(berr.ErrSubscribeFailed, err))
	}

	return nil
}

type amqpChannelPublisher struct{ ch *amqp.Channel }

func (p amqpChannelPublisher) Publish(ctx context.Context, m PubMsg) error {
	var h amqp.Table
	if len(m.Headers) > 0 {
		h = amqp.Table{}
		for k, v := range m.Headers {
			h[k] = v
		}
	}

	return p.ch.PublishWithContext(
		ctx,
		m.Exchange,
		m.RoutingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			Headers:      h,
			Body:         m.Body,
			ContentType:  "application/json",
		},
	)
}

func toDelivery(d amqp.Delivery) Delivery {
	out := Delivery{RoutingKey: d.RoutingKey, Body: d.Body}
	if len(d.Headers) > 0 {
		out.Headers = make(map[string]string, len(d.Headers))
		for k, v := range d.Headers {
			out.Headers[k] = fmt.Sprint(v)
		}
	}

	return out
}
