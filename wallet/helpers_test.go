package wallet_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/next-trace/scg-wallet-bridge/adapters/inmemory"
	"github.com/next-trace/scg-wallet-bridge/bridge"
	cachemem "github.com/next-trace/scg-wallet-bridge/cache/memory"
	storemem "github.com/next-trace/scg-wallet-bridge/store/memory"
	"github.com/next-trace/scg-wallet-bridge/wallet"
)

const (
	settlementRequests  = "transaction-requests"
	settlementResponses = "transaction-responses"
	cardRequests        = "debit-card-validation-requests"
	cardResponses       = "debit-card-validation-responses"
)

// spyStore counts store calls on top of the in-memory store.
type spyStore struct {
	*storemem.Store

	phoneLookups  atomic.Int32
	userReads     atomic.Int32
	userUpdates   atomic.Int32
	transferSaves atomic.Int32
	transferReads atomic.Int32

	saveErr error
}

func (s *spyStore) FindUserByPhone(ctx context.Context, phone string) (wallet.UserRecord, error) {
	s.phoneLookups.Add(1)
	return s.Store.FindUserByPhone(ctx, phone)
}

func (s *spyStore) FindUserByID(ctx context.Context, id string) (wallet.UserRecord, error) {
	s.userReads.Add(1)
	return s.Store.FindUserByID(ctx, id)
}

func (s *spyStore) UpdateUser(ctx context.Context, rec wallet.UserRecord) error {
	s.userUpdates.Add(1)
	return s.Store.UpdateUser(ctx, rec)
}

func (s *spyStore) SaveTransfer(ctx context.Context, rec wallet.TransferRecord) (wallet.TransferRecord, error) {
	s.transferSaves.Add(1)
	if s.saveErr != nil {
		return wallet.TransferRecord{}, s.saveErr
	}

	return s.Store.SaveTransfer(ctx, rec)
}

func (s *spyStore) FindTransferByID(ctx context.Context, id string) (wallet.TransferRecord, error) {
	s.transferReads.Add(1)
	return s.Store.FindTransferByID(ctx, id)
}

func (s *spyStore) calls() int32 {
	return s.phoneLookups.Load() + s.userReads.Load() + s.userUpdates.Load() +
		s.transferSaves.Load() + s.transferReads.Load()
}

// spyCache counts cache calls and can be made to fail reads.
type spyCache struct {
	*cachemem.Cache

	gets atomic.Int32
	sets atomic.Int32

	getErr error
}

func (c *spyCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.gets.Add(1)
	if c.getErr != nil {
		return false, c.getErr
	}

	return c.Cache.Get(ctx, key, dst)
}

func (c *spyCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	c.sets.Add(1)
	return c.Cache.Set(ctx, key, v, ttl)
}

type harness struct {
	store     *spyStore
	cache     *spyCache
	broker    *inmemory.Broker
	client    *bridge.Client
	transfers *wallet.TransferService
	users     *wallet.UserService
	logs      *bytes.Buffer
}

type harnessOpts struct {
	ledger  bridge.HandlerFunc
	cards   bridge.HandlerFunc
	timeout time.Duration
}

func newHarness(t *testing.T, o harnessOpts) *harness {
	t.Helper()

	ctx := t.Context()
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	b := inmemory.New()
	reg := bridge.NewRegistry()
	in := bridge.NewIntake(reg, logger, nil)
	require.NoError(t, in.Listen(ctx, b, settlementResponses, cardResponses))

	if o.ledger != nil {
		require.NoError(t, bridge.NewResponder(b, settlementResponses, o.ledger, logger).Listen(ctx, b, settlementRequests))
	}

	if o.cards != nil {
		require.NoError(t, bridge.NewResponder(b, cardResponses, o.cards, logger).Listen(ctx, b, cardRequests))
	}

	if o.timeout == 0 {
		o.timeout = time.Second
	}

	h := &harness{
		store:  &spyStore{Store: storemem.New()},
		cache:  &spyCache{Cache: cachemem.New()},
		broker: b,
		client: bridge.NewClient(b, reg, logger),
		logs:   logs,
	}

	h.transfers = wallet.NewTransferService(h.store, h.store, h.cache, h.client, wallet.TransferConfig{
		RequestTopic:  settlementRequests,
		ResponseTopic: settlementResponses,
		Timeout:       o.timeout,
		CacheTTL:      24 * time.Hour,
	}, logger)

	h.users = wallet.NewUserService(h.store, h.cache, h.client, wallet.UserConfig{
		CardValidationRequestTopic:  cardRequests,
		CardValidationResponseTopic: cardResponses,
		CardValidationTimeout:       o.timeout,
		CacheTTL:                    24 * time.Hour,
	}, logger)

	return h
}

// seedUser stores a user directly, bypassing the spies' counters.
func (h *harness) seedUser(t *testing.T, phone, cardID string) wallet.User {
	t.Helper()

	rec, err := h.store.Store.CreateUser(t.Context(), wallet.ToUserRecord(wallet.User{
		Phone:          phone,
		DocumentNumber: "DOC-" + phone,
		CardID:         cardID,
	}))
	require.NoError(t, err)

	return rec.ToDomain()
}

// confirmingLedger acknowledges every settlement and records the requests it saw.
func confirmingLedger(seen *[]wallet.SettlementRequest) bridge.HandlerFunc {
	return func(_ context.Context, payload json.RawMessage) (any, error) {
		var req wallet.SettlementRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}

		if seen != nil {
			*seen = append(*seen, req)
		}

		tx := req.Transaction
		tx.ID = "ledger-tx-1"

		return tx, nil
	}
}

func cardVerdict(valid bool, msg string) bridge.HandlerFunc {
	return func(context.Context, json.RawMessage) (any, error) {
		return wallet.CardValidationResponse{IsValid: valid, Message: msg}, nil
	}
}

var errStoreDown = errors.New("store down")
