package main

import (
	"context"
	"crypto/tls"
	"log/slog"
	"sync"
	"time"

	"github.com/next-trace/scg-wallet-bridge/adapters/inmemory"
	"github.com/next-trace/scg-wallet-bridge/adapters/kafka"
	"github.com/next-trace/scg-wallet-bridge/adapters/nats"
	"github.com/next-trace/scg-wallet-bridge/adapters/rabbitmq"
	memcache "github.com/next-trace/scg-wallet-bridge/cache/memory"
	redcache "github.com/next-trace/scg-wallet-bridge/cache/redis"
	"github.com/next-trace/scg-wallet-bridge/config"
	cbus "github.com/next-trace/scg-wallet-bridge/contract/bus"
	memstore "github.com/next-trace/scg-wallet-bridge/store/memory"
	pgstore "github.com/next-trace/scg-wallet-bridge/store/postgres"
	"github.com/next-trace/scg-wallet-bridge/wallet"
)

// transport splits subscriptions by delivery semantics: requests are shared
// among instances, responses must reach the instance that issued the call.
type transport struct {
	pub       cbus.Publisher
	requests  cbus.Subscriber
	responses cbus.Subscriber
	loops     []func(context.Context) error
	cleanups  []func()
}

func (t *transport) close() {
	for i := len(t.cleanups) - 1; i >= 0; i-- {
		t.cleanups[i]()
	}
}

func newTransport(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*transport, error) {
	switch cfg.Transport.Driver {
	case "kafka":
		return newKafkaTransport(cfg, logger)
	case "nats":
		return newNATSTransport(cfg)
	case "rabbitmq":
		ad, cleanup, err := rabbitmq.NewWithAMQPConn(rabbitmq.Config{
			URL:         cfg.RabbitMQ.URL,
			ConnTimeout: cfg.RabbitMQ.ConnTimeout,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}

		// one durable queue per topic; run a single instance per response topic pair
		return &transport{pub: ad, requests: ad, responses: ad, cleanups: []func(){cleanup}}, nil
	default:
		logger.WarnContext(ctx, "in-memory transport: remote capabilities are unreachable")
		b := inmemory.NewAsync()

		return &transport{pub: b, requests: b, responses: b}, nil
	}
}

func kafkaBase(cfg config.KafkaConfig) kafka.Config {
	base := kafka.Config{
		Brokers:                cfg.Brokers,
		ClientID:               cfg.ClientID,
		RequireAllAcks:         cfg.RequireAllAcks,
		DisableIdempotentWrite: cfg.DisableIdempotentWrite,
		Compression:            cfg.Compression,
	}

	if cfg.TLS {
		base.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return base
}

func newKafkaTransport(cfg *config.Config, logger *slog.Logger) (*transport, error) {
	reqCfg := kafkaBase(cfg.Kafka)
	reqCfg.GroupID = cfg.Kafka.GroupID
	reqCfg.Topics = []string{cfg.Topics.TransferRequest, cfg.Topics.WalletValidationRequest}

	requests, closeReq, err := kafka.NewWithKgo(reqCfg, logger)
	if err != nil {
		return nil, err
	}

	// no consumer group: every instance reads every response partition
	respCfg := kafkaBase(cfg.Kafka)
	respCfg.ClientID += "-responses"
	respCfg.Topics = []string{cfg.Topics.SettlementResponse, cfg.Topics.CardValidationResponse}
	respCfg.ResetToLatest = true

	responses, closeResp, err := kafka.NewWithKgo(respCfg, logger)
	if err != nil {
		closeReq()
		return nil, err
	}

	return &transport{
		pub:       requests,
		requests:  requests,
		responses: responses,
		loops:     []func(context.Context) error{requests.Run, responses.Run},
		cleanups:  []func(){closeReq, closeResp},
	}, nil
}

func newNATSTransport(cfg *config.Config) (*transport, error) {
	base := nats.Config{
		URL:           cfg.NATS.URL,
		Name:          cfg.NATS.Name,
		ConnTimeout:   cfg.NATS.ConnTimeout,
		MaxReconnects: cfg.NATS.MaxReconnects,
	}

	shared := base
	shared.Queue = cfg.NATS.Queue

	requests, closeReq, err := nats.NewWithNATS(shared)
	if err != nil {
		return nil, err
	}

	responses, closeResp, err := nats.NewWithNATS(base)
	if err != nil {
		closeReq()
		return nil, err
	}

	return &transport{
		pub:       requests,
		requests:  requests,
		responses: responses,
		cleanups:  []func(){closeReq, closeResp},
	}, nil
}

type stores struct {
	users     wallet.UserStore
	transfers wallet.TransferStore
	close     func()
}

func newStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	if cfg.Store.Driver != "postgres" {
		s := memstore.New()
		return &stores{users: s, transfers: s, close: func() {}}, nil
	}

	pool, err := pgstore.Connect(ctx, cfg.Store.DSN, cfg.Store.MaxConns, logger)
	if err != nil {
		return nil, err
	}

	s := pgstore.New(pool)
	if err = s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &stores{users: s, transfers: s, close: pool.Close}, nil
}

func newCache(ctx context.Context, cfg *config.Config) (wallet.Cache, func(), error) {
	if cfg.Cache.Driver != "redis" {
		c := memcache.New()
		go c.Start()

		return c, c.Stop, nil
	}

	c := redcache.New(redcache.Options{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, nil, err
	}

	return c, func() { _ = c.Close() }, nil
}

// inflight runs handlers off the delivery goroutine and lets shutdown wait for them.
type inflight struct {
	logger *slog.Logger

	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
}

// detach runs h on its own goroutine so slow handlers do not stall delivery.
// Once draining has begun new messages are refused.
func (f *inflight) detach(h cbus.MessageHandler) cbus.MessageHandler {
	return func(ctx context.Context, msg cbus.Message) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if f.draining {
			f.logger.WarnContext(ctx, "shutting down, request not served", "topic", msg.Topic)
			return
		}

		f.wg.Go(func() { h(context.WithoutCancel(ctx), msg) })
	}
}

// drain refuses new work and waits up to timeout for running handlers.
// It reports whether all of them returned.
func (f *inflight) drain(timeout time.Duration) bool {
	f.mu.Lock()
	f.draining = true
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
