package bridge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/next-trace/scg-wallet-bridge/adapters/inmemory"
	"github.com/next-trace/scg-wallet-bridge/bridge"
	cbus "github.com/next-trace/scg-wallet-bridge/contract/bus"
	berr "github.com/next-trace/scg-wallet-bridge/contract/errors"
)

func newIntake(t *testing.T) (*bridge.Intake, *bridge.Registry, *bridge.Metrics) {
	t.Helper()

	reg := bridge.NewRegistry()

	m, err := bridge.NewMetrics(nil, reg)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}

	return bridge.NewIntake(reg, nil, m), reg, m
}

func TestIntake_ResolvesPending(t *testing.T) {
	in, reg, _ := newIntake(t)

	p, err := reg.Register("c1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	in.HandleMessage(t.Context(), cbus.Message{
		Topic: "responses",
		Body:  []byte(`{"payload":{"v":1},"correlationId":"c1"}`),
	})

	select {
	case raw := <-p.Done():
		if string(raw) != `{"v":1}` {
			t.Fatalf("payload=%s", raw)
		}
	default:
		t.Fatalf("pending request was not resolved")
	}
}

func TestIntake_CorrelationIDFromHeader(t *testing.T) {
	in, reg, _ := newIntake(t)
	p, _ := reg.Register("hdr")

	in.HandleMessage(t.Context(), cbus.Message{
		Body:    []byte(`{"payload":true}`),
		Headers: map[string]string{cbus.HeaderCorrelationID: "hdr"},
	})

	select {
	case <-p.Done():
	default:
		t.Fatalf("header correlation id was not used")
	}
}

func TestIntake_DropsMalformedAndUnmatched(t *testing.T) {
	in, reg, m := newIntake(t)
	_, _ = reg.Register("keep")

	in.HandleMessage(t.Context(), cbus.Message{Body: []byte(`not json`)})
	in.HandleMessage(t.Context(), cbus.Message{Body: []byte(`{"payload":1}`)})
	in.HandleMessage(t.Context(), cbus.Message{Body: []byte(`{"payload":1,"correlationId":"unknown"}`)})

	if v := testutil.ToFloat64(m.Dropped.WithLabelValues(bridge.DropMalformed)); v != 2 {
		t.Fatalf("malformed counter=%v", v)
	}

	if v := testutil.ToFloat64(m.Dropped.WithLabelValues(bridge.DropUnmatched)); v != 1 {
		t.Fatalf("unmatched counter=%v", v)
	}

	if reg.Len() != 1 {
		t.Fatalf("unrelated pending request must survive, len=%d", reg.Len())
	}
}

func TestIntake_DuplicateResponseDropped(t *testing.T) {
	in, reg, m := newIntake(t)
	p, _ := reg.Register("c1")

	msg := cbus.Message{Body: []byte(`{"payload":"first","correlationId":"c1"}`)}
	in.HandleMessage(t.Context(), msg)
	in.HandleMessage(t.Context(), cbus.Message{Body: []byte(`{"payload":"second","correlationId":"c1"}`)})

	if got := string(<-p.Done()); got != `"first"` {
		t.Fatalf("first response must win, got %s", got)
	}

	if v := testutil.ToFloat64(m.Dropped.WithLabelValues(bridge.DropUnmatched)); v != 1 {
		t.Fatalf("duplicate must be dropped, counter=%v", v)
	}
}

func TestIntake_ListenSubscribesEveryTopic(t *testing.T) {
	in, reg, _ := newIntake(t)
	b := inmemory.New()

	if err := in.Listen(t.Context(), b, "a-responses", "b-responses"); err != nil {
		t.Fatalf("listen: %v", err)
	}

	pa, _ := reg.Register("a")
	pb, _ := reg.Register("b")

	_ = b.Publish(t.Context(), "a-responses", []byte(`{"payload":1,"correlationId":"a"}`), cbus.PublishOptions{})
	_ = b.Publish(t.Context(), "b-responses", []byte(`{"payload":2,"correlationId":"b"}`), cbus.PublishOptions{})

	if string(<-pa.Done()) != "1" || string(<-pb.Done()) != "2" {
		t.Fatalf("responses not routed from both topics")
	}
}

type failingSub struct{}

func (failingSub) Subscribe(context.Context, string, cbus.MessageHandler) error {
	return errors.New("no broker")
}

func TestIntake_ListenWrapsSubscribeError(t *testing.T) {
	in, _, _ := newIntake(t)

	if err := in.Listen(t.Context(), failingSub{}, "responses"); !errors.Is(err, berr.ErrSubscribeFailed) {
		t.Fatalf("want subscribe failed, got %v", err)
	}
}
