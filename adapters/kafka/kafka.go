package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cbus "github.com/next-trace/scg-wallet-bridge/contract/bus"
	berr "github.com/next-trace/scg-wallet-bridge/contract/errors"
)

const pollBackoff = 500 * time.Millisecond

// ErrReaderClosed is returned by a Reader whose underlying client has been closed.
var ErrReaderClosed = errors.New("kafka reader closed")

// Writer is a minimal Kafka-like writer interface.
// Users can adapt segmentio/kafka-go or any other client to this.
type Writer interface {
	Write(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// Record is one consumed Kafka record.
type Record struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Reader is a minimal Kafka-like consumer interface.
type Reader interface {
	AddTopics(topics ...string)
	Poll(ctx context.Context) ([]Record, error)
}

// Adapter implements cbus.Adapter using an injected Writer and Reader.
// Subscriptions only register handlers; Run drives delivery.
type Adapter struct {
	Writer Writer
	Reader Reader
	Logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]cbus.MessageHandler
}

var _ cbus.Adapter = (*Adapter)(nil)

// New creates a new Kafka adapter instance with the provided writer and reader.
// Either may be nil for publish-only or consume-only use.
func New(w Writer, r Reader) *Adapter {
	return &Adapter{Writer: w, Reader: r, handlers: make(map[string][]cbus.MessageHandler)}
}

func (a *Adapter) Publish(ctx context.Context, topic string, body []byte, opts cbus.PublishOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Writer == nil {
		return fmt.Errorf("kafka publish: %w", berr.ErrPublishFailed)
	}

	headers := cbus.CopyHeaders(opts.Headers, 0)

	if err := a.Writer.Write(ctx, topic, []byte(opts.Key), body, headers); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("kafka publish write: %w", errors.Join(berr.ErrPublishFailed, err))
	}

	return nil
}

func (a *Adapter) Subscribe(ctx context.Context, topic string, h cbus.MessageHandler) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.Reader == nil {
		return fmt.Errorf("kafka subscribe %s: %w", topic, berr.ErrSubscribeFailed)
	}

	a.mu.Lock()
	if a.handlers == nil {
		a.handlers = make(map[string][]cbus.MessageHandler)
	}

	_, known := a.handlers[topic]
	a.handlers[topic] = append(a.handlers[topic], h)
	a.mu.Unlock()

	if !known {
		a.Reader.AddTopics(topic)
	}

	return nil
}

// Run polls the reader and dispatches records to subscribed handlers until ctx is done
// or the reader is closed.
func (a *Adapter) Run(ctx context.Context) error {
	if a.Reader == nil {
		return fmt.Errorf("kafka run: %w", berr.ErrNotConfigured)
	}

	for {
		recs, err := a.Reader.Poll(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if errors.Is(err, ErrReaderClosed) {
			return err
		}

		if err != nil {
			a.logger().WarnContext(ctx, "kafka poll failed", "error", err)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollBackoff):
			}
		}

		for _, rec := range recs {
			a.dispatch(ctx, rec)
		}
	}
}

func (a *Adapter) dispatch(ctx context.Context, rec Record) {
	a.mu.RLock()
	handlers := append([]cbus.MessageHandler(nil), a.handlers[rec.Topic]...)
	a.mu.RUnlock()

	msg := cbus.Message{Topic: rec.Topic, Key: rec.Key, Body: rec.Value, Headers: rec.Headers}
	for _, h := range handlers {
		h(ctx, msg)
	}
}

func (a *Adapter) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}

	return a.Logger
}
