package repository

import (
	"context"
	"errors"

	"aimint-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChainCollectionRepository manages per-chain token counters and supply stats.
type ChainCollectionRepository interface {
	// NextTokenID reserves and returns the next sequential token id for the
	// chain. The counter row is locked for the duration of the surrounding
	// transaction, so concurrent mints serialize here.
	NextTokenID(ctx context.Context, chainID uint32) (uint64, error)
	Get(ctx context.Context, chainID uint32) (*models.ChainCollection, error)
	IncrementSupply(ctx context.Context, chainID uint32, newOwner bool) error
	RecordTransfers(ctx context.Context, chainID uint32, count int) error
}

type chainCollectionRepository struct {
	db *gorm.DB
}

// NewChainCollectionRepository creates a gorm-backed ChainCollectionRepository.
func NewChainCollectionRepository(db *gorm.DB) ChainCollectionRepository {
	return &chainCollectionRepository{db: db}
}

func (r *chainCollectionRepository) NextTokenID(ctx context.Context, chainID uint32) (uint64, error) {
	var coll models.ChainCollection
	tx := r.db.WithContext(ctx)
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&coll, "chain_id = ?", chainID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		coll = models.ChainCollection{ChainID: chainID, NextTokenID: 1}
		if err := tx.Create(&coll).Error; err != nil {
			return 0, translateError(err)
		}
	} else if err != nil {
		return 0, translateError(err)
	}

	id := coll.NextTokenID
	if err := tx.Model(&models.ChainCollection{}).
		Where("chain_id = ?", chainID).
		UpdateColumn("next_token_id", gorm.Expr("next_token_id + 1")).Error; err != nil {
		return 0, translateError(err)
	}
	return id, nil
}

func (r *chainCollectionRepository) Get(ctx context.Context, chainID uint32) (*models.ChainCollection, error) {
	var coll models.ChainCollection
	if err := r.db.WithContext(ctx).First(&coll, "chain_id = ?", chainID).Error; err != nil {
		return nil, translateError(err)
	}
	return &coll, nil
}

func (r *chainCollectionRepository) IncrementSupply(ctx context.Context, chainID uint32, newOwner bool) error {
	updates := map[string]interface{}{
		"total_supply": gorm.Expr("total_supply + 1"),
	}
	if newOwner {
		updates["unique_owners"] = gorm.Expr("unique_owners + 1")
	}
	return translateError(r.db.WithContext(ctx).Model(&models.ChainCollection{}).
		Where("chain_id = ?", chainID).
		Updates(updates).Error)
}

func (r *chainCollectionRepository) RecordTransfers(ctx context.Context, chainID uint32, count int) error {
	return translateError(r.db.WithContext(ctx).Model(&models.ChainCollection{}).
		Where("chain_id = ?", chainID).
		UpdateColumn("transfer_vol", gorm.Expr("transfer_vol + ?", count)).Error)
}
