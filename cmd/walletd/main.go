package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/next-trace/scg-wallet-bridge/bridge"
	"github.com/next-trace/scg-wallet-bridge/config"
	"github.com/next-trace/scg-wallet-bridge/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting wallet bridge",
		"env", cfg.Primary.Env,
		"transport", cfg.Transport.Driver,
		"store", cfg.Store.Driver,
		"cache", cfg.Cache.Driver,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err = run(ctx, cfg, logger); err != nil {
		logger.Error("wallet bridge stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("wallet bridge exited")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	tr, err := newTransport(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer tr.close()

	st, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	cache, closeCache, err := newCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	registry := bridge.NewRegistry()

	metrics, err := bridge.NewMetrics(promReg, registry)
	if err != nil {
		return err
	}

	client := bridge.NewClient(tr.pub, registry, logger, bridge.WithClientMetrics(metrics))
	intake := bridge.NewIntake(registry, logger, metrics)

	// subscriptions and transport loops outlive the stop signal until running transfers drain
	serveCtx, stopServing := context.WithCancel(context.WithoutCancel(ctx))
	defer stopServing()

	if err = intake.Listen(serveCtx, tr.responses, cfg.Topics.SettlementResponse, cfg.Topics.CardValidationResponse); err != nil {
		return err
	}

	transfers := wallet.NewTransferService(st.transfers, st.users, cache, client, wallet.TransferConfig{
		RequestTopic:  cfg.Topics.SettlementRequest,
		ResponseTopic: cfg.Topics.SettlementResponse,
		Timeout:       cfg.Timeouts.Settlement,
		CacheTTL:      cfg.Cache.TransactionTTL,
	}, logger)

	users := wallet.NewUserService(st.users, cache, client, wallet.UserConfig{
		CardValidationRequestTopic:  cfg.Topics.CardValidationRequest,
		CardValidationResponseTopic: cfg.Topics.CardValidationResponse,
		CardValidationTimeout:       cfg.Timeouts.CardValidation,
		CacheTTL:                    cfg.Cache.UserTTL,
	}, logger)

	// each request runs the saga and blocks on the ledger; serve it off the delivery goroutine
	handlers := &inflight{logger: logger}
	serveTransfers := bridge.NewResponder(tr.pub, cfg.Topics.TransferResponse, transfers.Handler(), logger)
	if err = tr.requests.Subscribe(serveCtx, cfg.Topics.TransferRequest, handlers.detach(serveTransfers.HandleMessage)); err != nil {
		return err
	}

	serveValidation := bridge.NewResponder(tr.pub, cfg.Topics.WalletValidationResponse, users.ValidationHandler(), logger)
	if err = serveValidation.Listen(serveCtx, tr.requests, cfg.Topics.WalletValidationRequest); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(serveCtx)

	for _, loop := range tr.loops {
		g.Go(func() error {
			if err := loop(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			return nil
		})
	}

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           metricsMux(promReg),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("metrics server starting", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			return nil
		})

		g.Go(func() error {
			<-gctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Info("wallet bridge ready",
		"transfer_requests", cfg.Topics.TransferRequest,
		"wallet_validation_requests", cfg.Topics.WalletValidationRequest,
	)

	select {
	case <-ctx.Done():
	case <-gctx.Done():
	}

	logger.Info("shutting down", "pending_requests", registry.Len())

	if !handlers.drain(cfg.Timeouts.Shutdown) {
		logger.Warn("shutdown grace elapsed with transfers still running",
			"grace", cfg.Timeouts.Shutdown,
			"pending_requests", registry.Len())
	}

	stopServing()

	return g.Wait()
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	return mux
}
