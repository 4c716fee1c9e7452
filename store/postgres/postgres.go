// Package postgres stores wallet documents in PostgreSQL as JSONB, with the
// unique lookup fields lifted into indexed columns.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/next-trace/scg-wallet-bridge/wallet"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS wallet_users (
	id              TEXT PRIMARY KEY,
	phone           TEXT NOT NULL UNIQUE,
	document_number TEXT UNIQUE,
	doc             JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS wallet_transfers (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	doc        JSONB NOT NULL
);
`

// Executor is satisfied by *pgxpool.Pool and pgx.Tx.
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect opens a pool for dsn and verifies connectivity.
func Connect(ctx context.Context, dsn string, maxConns int32, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.InfoContext(ctx, "connected to database",
		"host", cfg.ConnConfig.Host, "database", cfg.ConnConfig.Database, "max_conns", cfg.MaxConns)

	return pool, nil
}

// Store implements wallet.UserStore and wallet.TransferStore.
type Store struct {
	db    Executor
	newID func() string
}

var (
	_ wallet.UserStore     = (*Store)(nil)
	_ wallet.TransferStore = (*Store)(nil)
)

func New(db Executor) *Store {
	return &Store{db: db, newID: uuid.NewString}
}

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	return nil
}

func (s *Store) CreateUser(ctx context.Context, rec wallet.UserRecord) (wallet.UserRecord, error) {
	rec.ID = s.newID()

	doc, err := json.Marshal(rec)
	if err != nil {
		return wallet.UserRecord{}, fmt.Errorf("encode user: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO wallet_users (id, phone, document_number, doc) VALUES ($1, $2, $3, $4)`,
		rec.ID, rec.Phone, nullable(rec.DocumentNumber), doc)
	if err != nil {
		return wallet.UserRecord{}, mapError("create user", err)
	}

	return rec, nil
}

func (s *Store) UpdateUser(ctx context.Context, rec wallet.UserRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE wallet_users SET phone = $2, document_number = $3, doc = $4 WHERE id = $1`,
		rec.ID, rec.Phone, nullable(rec.DocumentNumber), doc)
	if err != nil {
		return mapError("update user", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update user %s: %w", rec.ID, wallet.ErrNotFound)
	}

	return nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (wallet.UserRecord, error) {
	return scanDoc[wallet.UserRecord](s.db.QueryRow(ctx, `SELECT doc FROM wallet_users WHERE id = $1`, id), "find user")
}

func (s *Store) FindUserByPhone(ctx context.Context, phone string) (wallet.UserRecord, error) {
	return scanDoc[wallet.UserRecord](s.db.QueryRow(ctx, `SELECT doc FROM wallet_users WHERE phone = $1`, phone), "find user by phone")
}

func (s *Store) UserExists(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallet_users WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}

	return ok, nil
}

func (s *Store) SaveTransfer(ctx context.Context, rec wallet.TransferRecord) (wallet.TransferRecord, error) {
	if rec.ID == "" {
		rec.ID = s.newID()
	}

	doc, err := json.Marshal(rec)
	if err != nil {
		return wallet.TransferRecord{}, fmt.Errorf("encode transfer: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO wallet_transfers (id, created_at, doc) VALUES ($1, $2, $3)`,
		rec.ID, rec.CreatedAt, doc)
	if err != nil {
		return wallet.TransferRecord{}, mapError("save transfer", err)
	}

	return rec, nil
}

func (s *Store) FindTransferByID(ctx context.Context, id string) (wallet.TransferRecord, error) {
	return scanDoc[wallet.TransferRecord](s.db.QueryRow(ctx, `SELECT doc FROM wallet_transfers WHERE id = $1`, id), "find transfer")
}

func scanDoc[T any](row pgx.Row, op string) (T, error) {
	var (
		out T
		raw []byte
	)

	if err := row.Scan(&raw); err != nil {
		return out, mapError(op, err)
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%s: decode: %w", op, err)
	}

	return out, nil
}

func mapError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, wallet.ErrNotFound)
	}

	if IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, errors.Join(wallet.ErrConflict, err))
	}

	return fmt.Errorf("%s: %w", op, err)
}

// IsUniqueViolation checks if err is a PostgreSQL unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
