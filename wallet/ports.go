package wallet

import (
	"context"
	"time"
)

// UserStore persists wallet users. Missing records are reported as ErrNotFound,
// unique phone or document violations as ErrConflict.
type UserStore interface {
	CreateUser(ctx context.Context, rec UserRecord) (UserRecord, error)
	UpdateUser(ctx context.Context, rec UserRecord) error
	FindUserByID(ctx context.Context, id string) (UserRecord, error)
	FindUserByPhone(ctx context.Context, phone string) (UserRecord, error)
	UserExists(ctx context.Context, id string) (bool, error)
}

// TransferStore persists settled transfers.
type TransferStore interface {
	SaveTransfer(ctx context.Context, rec TransferRecord) (TransferRecord, error)
	FindTransferByID(ctx context.Context, id string) (TransferRecord, error)
}

// Cache is a JSON value cache with per-entry TTL.
// Get reports false on a miss; dst is left untouched in that case.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
