package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	berr "github.com/next-trace/scg-wallet-bridge/contract/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Concrete AMQP connection-backed session with auto-reconnect for publishing and consuming.

const (
	integrationExchange   = "integration"
	integrationExchangeTy = "topic"
)

type Config struct {
	URL         string
	ConnTimeout time.Duration
	Logger      *slog.Logger
}

type consumer struct {
	queue string
	fn    func(Delivery)
}

type session struct {
	cfg       Config
	mu        sync.RWMutex
	conn      *amqp.Connection
	ch        *amqp.Channel
	consumers []consumer
	closed    chan struct{}
	ready     chan struct{} // closed once the first connection is up
	readyOnce sync.Once
}

func newSession(cfg Config) (*session, func()) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &session{
		cfg:    cfg,
		closed: make(chan struct{}),
		ready:  make(chan struct{}),
	}
	go s.run()
	cleanup := func() { s.close() }

	return s, cleanup
}

func (s *session) Publish(ctx context.Context, m PubMsg) error {
	// Fast path: ensure channel available
	s.mu.RLock()
	ch := s.ch
	s.mu.RUnlock()

	if ch == nil {
		// Wait for readiness or context cancellation
		select {
		case <-s.ready:
		case <-ctx.Done():
			return ctx.Err()
		}

		s.mu.RLock()
		ch = s.ch
		s.mu.RUnlock()

		if ch == nil {
			return fmt.Errorf("%w: rabbitmq not connected", berr.ErrPublishFailed)
		}
	}

	return amqpChannelPublisher{ch: ch}.Publish(ctx, m)
}

// Consume registers a consumer that survives reconnects.
func (s *session) Consume(ctx context.Context, queue string, fn func(Delivery)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c := consumer{queue: queue, fn: fn}

	s.mu.Lock()
	s.consumers = append(s.consumers, c)
	conn := s.conn
	s.mu.Unlock()

	// not connected yet: run() starts it after the next successful dial
	if conn == nil {
		return nil
	}

	return s.start(conn, c)
}

func (s *session) start(conn *amqp.Connection, c consumer) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}

	if _, err = ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return err
	}

	if err = ch.QueueBind(c.queue, c.queue, integrationExchange, false, nil); err != nil {
		_ = ch.Close()
		return err
	}

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return err
	}

	go func() {
		for d := range deliveries {
			c.fn(toDelivery(d))
			_ = d.Ack(false)
		}
	}()

	return nil
}

func (s *session) run() {
	backoff := time.Second
	const maxBackoff = 30 * time.Second
	// #nosec G404 -- non-crypto RNG is acceptable for backoff jitter
	rng := rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // non-crypto RNG is acceptable for backoff jitter

	reconnect := func() (*amqp.Connection, *amqp.Channel, error) {
		conn, err := amqp.DialConfig(s.cfg.URL, amqp.Config{
			Locale:     "en_US",
			Properties: amqp.Table{"product": "scg-wallet-bridge"},
			Dial:       amqp.DefaultDial(s.cfg.ConnTimeout),
		})
		if err != nil {
			return nil, nil, err
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		if err := ch.ExchangeDeclare(
			integrationExchange,
			integrationExchangeTy,
			true,
			false,
			false,
			false,
			nil,
		); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, nil, err
		}
		return conn, ch, nil
	}

	for {
		select {
		case <-s.closed:
			return
		default:
		}

		conn, ch, err := reconnect()
		if err != nil {
			s.cfg.Logger.Warn("rabbitmq dial failed", "error", err, "backoff", backoff)
			// exponential backoff with jitter
			jitter := time.Duration(rng.Int63n(int64(backoff / 2)))
			sleep := backoff + jitter/2
			if sleep > maxBackoff {
				sleep = maxBackoff
			}
			t := time.NewTimer(sleep)
			select {
			case <-s.closed:
				t.Stop()
				return
			case <-t.C:
			}
			if backoff < maxBackoff {
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
			continue
		}

		// success
		backoff = time.Second

		s.mu.Lock()
		s.conn = conn
		s.ch = ch
		consumers := append([]consumer(nil), s.consumers...)
		s.mu.Unlock()
		s.readyOnce.Do(func() { close(s.ready) })

		for _, c := range consumers {
			if err := s.start(conn, c); err != nil {
				s.cfg.Logger.Error("rabbitmq consumer start failed", "queue", c.queue, "error", err)
			}
		}

		// Block on connection close notifications to trigger reconnect
		notify := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-s.closed:
			return
		case <-notify:
			s.mu.Lock()
			s.conn = nil
			s.ch = nil
			s.mu.Unlock()
			_ = ch.Close()
			_ = conn.Close()
			// loop to reconnect
		}
	}
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closed:
		// already closed
		return
	default:
		close(s.closed)
	}
	if s.ch != nil {
		_ = s.ch.Close()
		s.ch = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

// NewWithAMQPConn dials RabbitMQ with auto-reconnect, ensures the integration exchange,
// and returns an Adapter and cleanup.
func NewWithAMQPConn(cfg Config) (*Adapter, func(), error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("%w: rabbitmq url required", berr.ErrNotConfigured)
	}
	s, cleanup := newSession(cfg)
	ad := New(s, s)
	return ad, cleanup, nil
}
