package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/next-trace/scg-wallet-bridge/bridge"
	berr "github.com/next-trace/scg-wallet-bridge/contract/errors"
)

// TransferConfig names the ledger capability and cache policy used by TransferService.
type TransferConfig struct {
	RequestTopic  string
	ResponseTopic string
	Timeout       time.Duration
	CacheTTL      time.Duration
}

// TransferService runs the transfer saga: validate, resolve both parties,
// settle with the remote ledger, persist and cache.
type TransferService struct {
	transfers TransferStore
	users     UserStore
	cache     Cache
	ledger    bridge.Caller
	cfg       TransferConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewTransferService wires the saga. cache may be nil to disable caching.
func NewTransferService(transfers TransferStore, users UserStore, cache Cache, ledger bridge.Caller, cfg TransferConfig, logger *slog.Logger) *TransferService {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSettlementTimeout
	}

	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}

	return &TransferService{
		transfers: transfers,
		users:     users,
		cache:     cache,
		ledger:    ledger,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateTransfer executes the saga for req. Local validation and lookup failures
// return before anything is published. A ledger timeout returns a retryable
// SettlementTimeout and nothing is stored.
func (s *TransferService) CreateTransfer(ctx context.Context, req TransferRequest) (Transfer, error) {
	amount, err := validateTransfer(req)
	if err != nil {
		return Transfer{}, err
	}

	origin, err := s.findParty(ctx, req.OriginPhone)
	if errors.Is(err, ErrNotFound) {
		return Transfer{}, OriginNotFound(req.OriginPhone)
	}

	if err != nil {
		return Transfer{}, fmt.Errorf("resolve origin: %w", err)
	}

	if req.Type.RequiresFundingCard() && !origin.HasCard() {
		return Transfer{}, MissingCard("origin", origin.Phone)
	}

	destination, err := s.findParty(ctx, req.DestinationPhone)
	if errors.Is(err, ErrNotFound) {
		return Transfer{}, DestinationNotFound(req.DestinationPhone)
	}

	if err != nil {
		return Transfer{}, fmt.Errorf("resolve destination: %w", err)
	}

	if !destination.HasCard() {
		return Transfer{}, MissingCard("destination", destination.Phone)
	}

	settlement := SettlementRequest{
		DebitCardIDOrigin:  origin.CardID,
		DebitCardIDDestiny: destination.CardID,
		Transaction: LedgerTransaction{
			Type:            LedgerTypeDeposit,
			Amount:          amount,
			TransactionMode: LedgerModeInterAccount,
			IsByCreditCard:  true,
		},
	}

	confirmation, err := bridge.Call[LedgerTransaction](ctx, s.ledger, bridge.Request{
		RequestTopic:  s.cfg.RequestTopic,
		ResponseTopic: s.cfg.ResponseTopic,
		Payload:       settlement,
		Timeout:       s.cfg.Timeout,
	})
	if errors.Is(err, berr.ErrRequestTimeout) {
		return Transfer{}, SettlementTimeout(err)
	}

	if err != nil {
		return Transfer{}, fmt.Errorf("settle transfer: %w", err)
	}

	transfer := Transfer{
		OriginPhone:       origin.Phone,
		DestinationPhone:  destination.Phone,
		OriginCardID:      origin.CardID,
		DestinationCardID: destination.CardID,
		Amount:            amount,
		Type:              req.Type,
		Mode:              LedgerModeInterAccount,
		LedgerReference:   confirmation.ID,
		CreatedAt:         s.now().UTC().Truncate(time.Microsecond),
	}

	saved, err := s.transfers.SaveTransfer(ctx, ToTransferRecord(transfer))
	if err != nil {
		// the ledger already applied the settlement; an operator has to reconcile it
		s.logger.ErrorContext(ctx, "transfer settled but not persisted",
			"reconciliation_required", true,
			"origin_phone", origin.Phone,
			"destination_phone", destination.Phone,
			"amount", amount.String(),
			"ledger_reference", confirmation.ID,
			"error", err)

		return Transfer{}, fmt.Errorf("persist transfer: %w", err)
	}

	out := saved.ToDomain()
	writeThrough(ctx, s.cache, s.logger, cacheKeyTransferPrefix+out.ID, out, s.cfg.CacheTTL)

	s.logger.InfoContext(ctx, "transfer settled", "transfer_id", out.ID, "ledger_reference", out.LedgerReference)

	return out, nil
}

// FindTransferByID returns a transfer, served from cache when present.
func (s *TransferService) FindTransferByID(ctx context.Context, id string) (Transfer, error) {
	t, err := readThrough(ctx, s.cache, s.logger, cacheKeyTransferPrefix+id, s.cfg.CacheTTL,
		func(ctx context.Context) (Transfer, error) {
			rec, err := s.transfers.FindTransferByID(ctx, id)
			if err != nil {
				return Transfer{}, err
			}

			return rec.ToDomain(), nil
		})
	if errors.Is(err, ErrNotFound) {
		return Transfer{}, TransferNotFound(id)
	}

	if err != nil {
		return Transfer{}, fmt.Errorf("find transfer %s: %w", id, err)
	}

	return t, nil
}

func (s *TransferService) findParty(ctx context.Context, phone string) (WalletParty, error) {
	rec, err := s.users.FindUserByPhone(ctx, phone)
	if err != nil {
		return WalletParty{}, err
	}

	return rec.ToDomain().Party(), nil
}

// validateTransfer returns the request amount at MoneyScale places.
func validateTransfer(req TransferRequest) (Money, error) {
	if req.OriginPhone == "" || req.DestinationPhone == "" {
		return Money{}, InvalidTransfer("origin and destination phones are required")
	}

	if req.OriginPhone == req.DestinationPhone {
		return Money{}, InvalidTransfer("origin and destination must differ")
	}

	if !req.Amount.IsPositive() {
		return Money{}, InvalidAmount(req.Amount.String(), "must be positive")
	}

	amount := NewMoney(req.Amount)
	if !amount.Equal(req.Amount) {
		return Money{}, InvalidAmount(req.Amount.String(), fmt.Sprintf("more than %d decimal places", MoneyScale))
	}

	return amount, nil
}
