// Package memory is an in-process implementation of the wallet stores.
// It enforces the same unique phone and document number rules as the postgres store.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/next-trace/scg-wallet-bridge/wallet"
)

type Store struct {
	mu        sync.RWMutex
	users     map[string]wallet.UserRecord
	transfers map[string]wallet.TransferRecord
	newID     func() string
}

var (
	_ wallet.UserStore     = (*Store)(nil)
	_ wallet.TransferStore = (*Store)(nil)
)

func New() *Store {
	return &Store{
		users:     make(map[string]wallet.UserRecord),
		transfers: make(map[string]wallet.TransferRecord),
		newID:     uuid.NewString,
	}
}

func (s *Store) CreateUser(ctx context.Context, rec wallet.UserRecord) (wallet.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return wallet.UserRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUniqueLocked(rec); err != nil {
		return wallet.UserRecord{}, err
	}

	rec.ID = s.newID()
	s.users[rec.ID] = rec

	return rec, nil
}

func (s *Store) UpdateUser(ctx context.Context, rec wallet.UserRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[rec.ID]; !ok {
		return fmt.Errorf("user %s: %w", rec.ID, wallet.ErrNotFound)
	}

	if err := s.checkUniqueLocked(rec); err != nil {
		return err
	}

	s.users[rec.ID] = rec

	return nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (wallet.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return wallet.UserRecord{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.users[id]
	if !ok {
		return wallet.UserRecord{}, fmt.Errorf("user %s: %w", id, wallet.ErrNotFound)
	}

	return rec, nil
}

func (s *Store) FindUserByPhone(ctx context.Context, phone string) (wallet.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return wallet.UserRecord{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.users {
		if rec.Phone == phone {
			return rec, nil
		}
	}

	return wallet.UserRecord{}, fmt.Errorf("user with phone %s: %w", phone, wallet.ErrNotFound)
}

func (s *Store) UserExists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.users[id]

	return ok, nil
}

func (s *Store) SaveTransfer(ctx context.Context, rec wallet.TransferRecord) (wallet.TransferRecord, error) {
	if err := ctx.Err(); err != nil {
		return wallet.TransferRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = s.newID()
	}

	if _, ok := s.transfers[rec.ID]; ok {
		return wallet.TransferRecord{}, fmt.Errorf("transfer %s: %w", rec.ID, wallet.ErrConflict)
	}

	s.transfers[rec.ID] = rec

	return rec, nil
}

func (s *Store) FindTransferByID(ctx context.Context, id string) (wallet.TransferRecord, error) {
	if err := ctx.Err(); err != nil {
		return wallet.TransferRecord{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.transfers[id]
	if !ok {
		return wallet.TransferRecord{}, fmt.Errorf("transfer %s: %w", id, wallet.ErrNotFound)
	}

	return rec, nil
}

func (s *Store) checkUniqueLocked(rec wallet.UserRecord) error {
	for id, other := range s.users {
		if id == rec.ID {
			continue
		}

		if other.Phone == rec.Phone {
			return fmt.Errorf("phone %s: %w", rec.Phone, wallet.ErrConflict)
		}

		if rec.DocumentNumber != "" && other.DocumentNumber == rec.DocumentNumber {
			return fmt.Errorf("document %s: %w", rec.DocumentNumber, wallet.ErrConflict)
		}
	}

	return nil
}
