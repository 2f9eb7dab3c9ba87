// Package repository provides data access for the mint hub and the
// destination minters. Each entity gets an interface over *gorm.DB; the Store
// aggregate adds Transaction so that services can bundle a state transition
// with its stats increments into one atomic unit.
package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects an insert.
	// At the minter this is the idempotency signal.
	ErrDuplicate = errors.New("duplicate record")
	// ErrStaleStatus is returned when a guarded status update matched no row:
	// the request moved out of the expected state before the update ran.
	ErrStaleStatus = errors.New("request not in expected status")
)

// Store bundles all repositories behind one handle.
type Store interface {
	MintRequests() MintRequestRepository
	Chains() ChainRepository
	Tokens() MintedTokenRepository
	Processed() ProcessedRequestRepository
	Collections() ChainCollectionRepository
	Stats() StatsRepository

	// Transaction runs fn against a transaction-scoped Store. Any error
	// rolls the whole unit back; guard violations never leave partial state.
	Transaction(ctx context.Context, fn func(Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates a gorm-backed Store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) MintRequests() MintRequestRepository    { return &mintRequestRepository{db: s.db} }
func (s *gormStore) Chains() ChainRepository                { return &chainRepository{db: s.db} }
func (s *gormStore) Tokens() MintedTokenRepository          { return &mintedTokenRepository{db: s.db} }
func (s *gormStore) Processed() ProcessedRequestRepository  { return &processedRequestRepository{db: s.db} }
func (s *gormStore) Collections() ChainCollectionRepository { return &chainCollectionRepository{db: s.db} }
func (s *gormStore) Stats() StatsRepository                 { return &statsRepository{db: s.db} }

func (s *gormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// translateError maps gorm errors onto the repository sentinels.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
