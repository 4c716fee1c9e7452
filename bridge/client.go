package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	cbus "github.com/next-trace/scg-wallet-bridge/contract/bus"
	berr "github.com/next-trace/scg-wallet-bridge/contract/errors"
)

// DefaultTimeout applies when a Request carries no timeout of its own.
const DefaultTimeout = 30 * time.Second

// Request describes one request/reply exchange.
type Request struct {
	RequestTopic  string
	ResponseTopic string
	Payload       any
	Timeout       time.Duration
}

// Caller issues a request and decodes the correlated response into out.
type Caller interface {
	Call(ctx context.Context, req Request, out any) error
}

// Client turns publish + await correlated response into one blocking call.
// It is safe for concurrent use; each call owns its correlation id.
type Client struct {
	pub      cbus.Publisher
	registry *Registry
	logger   *slog.Logger
	metrics  *Metrics
	newID    func() string
}

var _ Caller = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithIDGenerator replaces the random UUID correlation id generator.
func WithIDGenerator(fn func() string) ClientOption {
	return func(c *Client) { c.newID = fn }
}

// WithClientMetrics records call outcomes on m.
func WithClientMetrics(m *Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// NewClient constructs a Client publishing through pub and waiting on registry.
func NewClient(pub cbus.Publisher, registry *Registry, logger *slog.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		pub:      pub,
		registry: registry,
		logger:   logger,
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(c)
	}

	return c
}

// Call publishes req and blocks until the correlated response arrives, the timeout
// elapses or ctx is done. Exactly one of those outcomes is reported. On success the
// response payload is decoded into out, which may be nil to discard it.
func (c *Client) Call(ctx context.Context, req Request, out any) error {
	if c.pub == nil || c.registry == nil {
		return fmt.Errorf("call %s: %w", req.RequestTopic, berr.ErrNotConfigured)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	id := c.newID()

	pending, err := c.registry.Register(id)
	if err != nil {
		return err
	}

	if err = c.send(ctx, id, req); err != nil {
		c.registry.Cancel(id)
		c.metrics.call(OutcomePublishError)

		return err
	}

	c.logger.DebugContext(ctx, "request published",
		"correlation_id", id, "topic", req.RequestTopic, "reply_to", req.ResponseTopic)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var raw json.RawMessage

	select {
	case raw = <-pending.Done():
	case <-timer.C:
		if c.registry.Cancel(id) {
			c.metrics.call(OutcomeTimeout)
			c.logger.WarnContext(ctx, "request timed out",
				"correlation_id", id, "topic", req.RequestTopic, "timeout", timeout)

			return fmt.Errorf("call %s after %s: %w", req.RequestTopic, timeout, berr.ErrRequestTimeout)
		}
		// the intake won the race; its value is already in the slot
		raw = <-pending.Done()
	case <-ctx.Done():
		if c.registry.Cancel(id) {
			c.metrics.call(OutcomeCanceled)

			return ctx.Err()
		}

		raw = <-pending.Done()
	}

	return c.decode(ctx, id, req.RequestTopic, raw, out)
}

func (c *Client) send(ctx context.Context, id string, req Request) error {
	env, err := cbus.NewEnvelope(req.Payload, id)
	if err != nil {
		return fmt.Errorf("call %s serialize: %w", req.RequestTopic, errors.Join(berr.ErrSerializationFailed, err))
	}

	env.ReplyTo = req.ResponseTopic

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("call %s serialize: %w", req.RequestTopic, errors.Join(berr.ErrSerializationFailed, err))
	}

	opts := cbus.PublishOptions{
		Key:     id,
		Headers: map[string]string{cbus.HeaderCorrelationID: id},
	}

	if err = c.pub.Publish(ctx, req.RequestTopic, body, opts); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("call %s publish: %w", req.RequestTopic, errors.Join(berr.ErrPublishFailed, err))
	}

	return nil
}

func (c *Client) decode(ctx context.Context, id, topic string, raw json.RawMessage, out any) error {
	if len(raw) == 0 || string(raw) == "null" {
		c.metrics.call(OutcomeConversionError)
		c.logger.ErrorContext(ctx, "empty response payload", "correlation_id", id, "topic", topic)

		return fmt.Errorf("call %s: empty payload: %w", topic, berr.ErrResponseConversion)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			c.metrics.call(OutcomeConversionError)
			c.logger.ErrorContext(ctx, "response conversion failed",
				"correlation_id", id, "topic", topic, "raw", string(raw), "error", err)

			return fmt.Errorf("call %s decode: %w", topic, errors.Join(berr.ErrResponseConversion, err))
		}
	}

	c.metrics.call(OutcomeSuccess)
	c.logger.DebugContext(ctx, "response received", "correlation_id", id, "topic", topic)

	return nil
}

// Call is a typed helper that issues req through c and decodes the response as R.
func Call[R any](ctx context.Context, c Caller, req Request) (R, error) {
	var out R
	if err := c.Call(ctx, req, &out); err != nil {
		var zero R
		return zero, err
	}

	return out, nil
}
