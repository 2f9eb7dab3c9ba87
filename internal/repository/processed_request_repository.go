package repository

import (
	"context"
	"time"

	"aimint-backend/internal/models"

	"gorm.io/gorm"
)

// ProcessedRequestRepository is the minter's persistent idempotency set.
type ProcessedRequestRepository interface {
	// MarkProcessed inserts the (chainID, requestID) pair. A duplicate delivery
	// returns ErrDuplicate, which aborts the surrounding mint transaction.
	MarkProcessed(ctx context.Context, chainID uint32, requestID string) error
	IsProcessed(ctx context.Context, chainID uint32, requestID string) (bool, error)
}

type processedRequestRepository struct {
	db *gorm.DB
}

// NewProcessedRequestRepository creates a gorm-backed ProcessedRequestRepository.
func NewProcessedRequestRepository(db *gorm.DB) ProcessedRequestRepository {
	return &processedRequestRepository{db: db}
}

func (r *processedRequestRepository) MarkProcessed(ctx context.Context, chainID uint32, requestID string) error {
	rec := models.ProcessedRequest{
		ChainID:     chainID,
		RequestID:   requestID,
		ProcessedAt: time.Now().UTC(),
	}
	return translateError(r.db.WithContext(ctx).Create(&rec).Error)
}

func (r *processedRequestRepository) IsProcessed(ctx context.Context, chainID uint32, requestID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProcessedRequest{}).
		Where("chain_id = ? AND request_id = ?", chainID, requestID).
		Count(&count).Error
	if err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}
