package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/next-trace/scg-wallet-bridge/bridge"
	berr "github.com/next-trace/scg-wallet-bridge/contract/errors"
)

// UserConfig names the card validation capability and cache policy used by UserService.
type UserConfig struct {
	CardValidationRequestTopic  string
	CardValidationResponseTopic string
	CardValidationTimeout       time.Duration
	CacheTTL                    time.Duration
}

// UserService manages wallet holders and their debit card association.
type UserService struct {
	users  UserStore
	cache  Cache
	cards  bridge.Caller
	cfg    UserConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewUserService wires the service. cache may be nil to disable caching.
func NewUserService(users UserStore, cache Cache, cards bridge.Caller, cfg UserConfig, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.CardValidationTimeout <= 0 {
		cfg.CardValidationTimeout = defaultCardTimeout
	}

	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}

	return &UserService{users: users, cache: cache, cards: cards, cfg: cfg, logger: logger, now: time.Now}
}

// CreateUser persists u and caches the stored form.
func (s *UserService) CreateUser(ctx context.Context, u User) (User, error) {
	u.ID = ""
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC().Truncate(time.Microsecond)
	}

	rec, err := s.users.CreateUser(ctx, ToUserRecord(u))
	if errors.Is(err, ErrConflict) {
		return User{}, DuplicateUser(err)
	}

	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}

	out := rec.ToDomain()
	writeThrough(ctx, s.cache, s.logger, cacheKeyUserPrefix+out.ID, out, s.cfg.CacheTTL)

	s.logger.InfoContext(ctx, "wallet user created", "user_id", out.ID)

	return out, nil
}

// FindUserByID returns a user, served from cache when present.
func (s *UserService) FindUserByID(ctx context.Context, id string) (User, error) {
	u, err := readThrough(ctx, s.cache, s.logger, cacheKeyUserPrefix+id, s.cfg.CacheTTL,
		func(ctx context.Context) (User, error) {
			rec, err := s.users.FindUserByID(ctx, id)
			if err != nil {
				return User{}, err
			}

			return rec.ToDomain(), nil
		})
	if errors.Is(err, ErrNotFound) {
		return User{}, UserNotFound(id)
	}

	if err != nil {
		return User{}, fmt.Errorf("find user %s: %w", id, err)
	}

	return u, nil
}

// AssociateCard validates cardID with the card service and then attaches it to the user.
func (s *UserService) AssociateCard(ctx context.Context, userID, cardID string) (User, error) {
	verdict, err := bridge.Call[CardValidationResponse](ctx, s.cards, bridge.Request{
		RequestTopic:  s.cfg.CardValidationRequestTopic,
		ResponseTopic: s.cfg.CardValidationResponseTopic,
		Payload:       CardValidationRequest{DebitCardID: cardID},
		Timeout:       s.cfg.CardValidationTimeout,
	})
	if errors.Is(err, berr.ErrRequestTimeout) {
		return User{}, CardValidationTimeout(err)
	}

	if err != nil {
		return User{}, fmt.Errorf("validate card %s: %w", cardID, err)
	}

	if !verdict.IsValid {
		return User{}, InvalidCard(cardID, verdict.Message)
	}

	u, err := s.FindUserByID(ctx, userID)
	if err != nil {
		return User{}, err
	}

	u.CardID = cardID

	if err = s.users.UpdateUser(ctx, ToUserRecord(u)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, UserNotFound(userID)
		}

		return User{}, fmt.Errorf("update user %s: %w", userID, err)
	}

	writeThrough(ctx, s.cache, s.logger, cacheKeyUserPrefix+u.ID, u, s.cfg.CacheTTL)

	s.logger.InfoContext(ctx, "debit card associated", "user_id", u.ID, "card_id", cardID)

	return u, nil
}

// UserExists reports whether a user with id is stored.
func (s *UserService) UserExists(ctx context.Context, id string) (bool, error) {
	return s.users.UserExists(ctx, id)
}

// ValidationHandler answers wallet validation requests. The payload is a user id
// string; the answer is whether that user exists. Failures answer false.
func (s *UserService) ValidationHandler() bridge.HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		var id string
		if err := json.Unmarshal(payload, &id); err != nil {
			s.logger.WarnContext(ctx, "wallet validation payload is not a user id", "error", err)
			return false, nil
		}

		ok, err := s.UserExists(ctx, id)
		if err != nil {
			s.logger.ErrorContext(ctx, "wallet validation lookup failed", "user_id", id, "error", err)
			return false, nil
		}

		return ok, nil
	}
}
