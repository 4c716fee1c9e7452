package bridge_test

import (
	"context"
	"encoding/json"
	"sync"

	cbus "github.com/next-trace/scg-wallet-bridge/contract/bus"
)

// fakePub records published messages and optionally reacts to each one.
type fakePub struct {
	mu     sync.Mutex
	msgs   []cbus.Message
	err    error
	onSend func(msg cbus.Message)
}

func (f *fakePub) Publish(_ context.Context, topic string, body []byte, opts cbus.PublishOptions) error {
	msg := cbus.Message{Topic: topic, Key: []byte(opts.Key), Body: body, Headers: opts.Headers}

	f.mu.Lock()
	f.msgs = append(f.msgs, msg)
	onSend := f.onSend
	f.mu.Unlock()

	if f.err != nil {
		return f.err
	}

	if onSend != nil {
		onSend(msg)
	}

	return nil
}

func (f *fakePub) sent() []cbus.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]cbus.Message(nil), f.msgs...)
}

func mustEnvelope(msg cbus.Message) cbus.Envelope {
	var env cbus.Envelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		panic(err)
	}

	return env
}

func responseFor(req cbus.Message, payload string) cbus.Message {
	env := mustEnvelope(req)
	body, _ := json.Marshal(cbus.Envelope{Payload: json.RawMessage(payload), CorrelationID: env.CorrelationID})

	return cbus.Message{Topic: env.ReplyTo, Body: body}
}
