package inmemory

import (
	"context"
	"sync"

	cbus "github.com/next-trace/scg-wallet-bridge/contract/bus"
)

// Broker is a thread-safe in-memory topic broker implementing cbus.Adapter.
// It records every published message for testing and examples.
//
// By default handlers run on the publishing goroutine before Publish returns.
// An async broker delivers each message on its own goroutine instead.
type Broker struct {
	mu        sync.RWMutex
	subs      map[string][]cbus.MessageHandler
	async     bool
	Published []cbus.Message
}

// Ensure Broker implements the combined contract.
var _ cbus.Adapter = (*Broker)(nil)

// New creates a broker with synchronous delivery.
func New() *Broker { return &Broker{subs: make(map[string][]cbus.MessageHandler)} }

// NewAsync creates a broker that delivers each message on a new goroutine.
func NewAsync() *Broker {
	b := New()
	b.async = true

	return b
}

func (b *Broker) Publish(ctx context.Context, topic string, body []byte, opts cbus.PublishOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := cbus.Message{
		Topic:   topic,
		Key:     []byte(opts.Key),
		Body:    append([]byte(nil), body...),
		Headers: cbus.CopyHeaders(opts.Headers, 0),
	}

	b.mu.Lock()
	b.Published = append(b.Published, msg)
	handlers := append([]cbus.MessageHandler(nil), b.subs[topic]...)
	b.mu.Unlock()

	for _, h := range handlers {
		if b.async {
			go h(context.WithoutCancel(ctx), msg)
			continue
		}

		h(ctx, msg)
	}

	return nil
}

func (b *Broker) Subscribe(ctx context.Context, topic string, h cbus.MessageHandler) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], h)
	b.mu.Unlock()

	return nil
}

// Messages returns the messages published to topic so far.
func (b *Broker) Messages(topic string) []cbus.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []cbus.Message

	for _, m := range b.Published {
		if m.Topic == topic {
			out = append(out, m)
		}
	}

	return out
}
