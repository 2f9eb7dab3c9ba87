package repository

import (
	"context"

	"aimint-backend/internal/models"

	"gorm.io/gorm"
)

// MintedTokenRepository persists destination-side token records.
type MintedTokenRepository interface {
	Create(ctx context.Context, token *models.MintedToken) error
	GetByChainToken(ctx context.Context, chainID uint32, tokenID uint64) (*models.MintedToken, error)
	GetBySourceRequest(ctx context.Context, chainID uint32, requestID string) (*models.MintedToken, error)
	FindByOwner(ctx context.Context, chainID uint32, owner string, page, pageSize int) ([]models.MintedToken, int64, error)
	BatchGet(ctx context.Context, chainID uint32, tokenIDs []uint64) ([]models.MintedToken, error)
	UpdateTokenURI(ctx context.Context, chainID uint32, tokenID uint64, tokenURI string) error
	UpdateRoyalty(ctx context.Context, chainID uint32, tokenID uint64, royaltyBps uint16) error
	UpdateOwner(ctx context.Context, chainID uint32, tokenID uint64, newOwner string) error
	CountByOwner(ctx context.Context, chainID uint32, owner string) (int64, error)
}

type mintedTokenRepository struct {
	db *gorm.DB
}

// NewMintedTokenRepository creates a gorm-backed MintedTokenRepository.
func NewMintedTokenRepository(db *gorm.DB) MintedTokenRepository {
	return &mintedTokenRepository{db: db}
}

func (r *mintedTokenRepository) Create(ctx context.Context, token *models.MintedToken) error {
	return translateError(r.db.WithContext(ctx).Create(token).Error)
}

func (r *mintedTokenRepository) GetByChainToken(ctx context.Context, chainID uint32, tokenID uint64) (*models.MintedToken, error) {
	var token models.MintedToken
	if err := r.db.WithContext(ctx).
		First(&token, "chain_id = ? AND token_id = ?", chainID, tokenID).Error; err != nil {
		return nil, translateError(err)
	}
	return &token, nil
}

func (r *mintedTokenRepository) GetBySourceRequest(ctx context.Context, chainID uint32, requestID string) (*models.MintedToken, error) {
	var token models.MintedToken
	if err := r.db.WithContext(ctx).
		First(&token, "chain_id = ? AND source_request_id = ?", chainID, requestID).Error; err != nil {
		return nil, translateError(err)
	}
	return &token, nil
}

func (r *mintedTokenRepository) FindByOwner(ctx context.Context, chainID uint32, owner string, page, pageSize int) ([]models.MintedToken, int64, error) {
	var (
		tokens []models.MintedToken
		total  int64
	)
	q := r.db.WithContext(ctx).Model(&models.MintedToken{}).
		Where("chain_id = ? AND owner = ?", chainID, owner)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}
	if err := q.Order("token_id ASC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&tokens).Error; err != nil {
		return nil, 0, translateError(err)
	}
	return tokens, total, nil
}

func (r *mintedTokenRepository) BatchGet(ctx context.Context, chainID uint32, tokenIDs []uint64) ([]models.MintedToken, error) {
	var tokens []models.MintedToken
	if err := r.db.WithContext(ctx).
		Where("chain_id = ? AND token_id IN ?", chainID, tokenIDs).
		Order("token_id ASC").
		Find(&tokens).Error; err != nil {
		return nil, translateError(err)
	}
	return tokens, nil
}

func (r *mintedTokenRepository) UpdateTokenURI(ctx context.Context, chainID uint32, tokenID uint64, tokenURI string) error {
	return r.updateField(ctx, chainID, tokenID, "token_uri", tokenURI)
}

func (r *mintedTokenRepository) UpdateRoyalty(ctx context.Context, chainID uint32, tokenID uint64, royaltyBps uint16) error {
	return r.updateField(ctx, chainID, tokenID, "royalty_bps", royaltyBps)
}

func (r *mintedTokenRepository) UpdateOwner(ctx context.Context, chainID uint32, tokenID uint64, newOwner string) error {
	return r.updateField(ctx, chainID, tokenID, "owner", newOwner)
}

func (r *mintedTokenRepository) updateField(ctx context.Context, chainID uint32, tokenID uint64, column string, value interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.MintedToken{}).
		Where("chain_id = ? AND token_id = ?", chainID, tokenID).
		Update(column, value)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mintedTokenRepository) CountByOwner(ctx context.Context, chainID uint32, owner string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.MintedToken{}).
		Where("chain_id = ? AND owner = ?", chainID, owner).
		Count(&total).Error
	return total, translateError(err)
}
