package repository

import (
	"context"

	"aimint-backend/internal/models"

	"gorm.io/gorm"
)

// ChainRepository persists destination chain registrations.
type ChainRepository interface {
	Create(ctx context.Context, reg *models.ChainRegistration) error
	GetByID(ctx context.Context, chainID uint32) (*models.ChainRegistration, error)
	List(ctx context.Context) ([]models.ChainRegistration, error)
	Update(ctx context.Context, reg *models.ChainRegistration) error
	SetEnabled(ctx context.Context, chainID uint32, enabled bool) error
}

type chainRepository struct {
	db *gorm.DB
}

// NewChainRepository creates a gorm-backed ChainRepository.
func NewChainRepository(db *gorm.DB) ChainRepository {
	return &chainRepository{db: db}
}

func (r *chainRepository) Create(ctx context.Context, reg *models.ChainRegistration) error {
	return translateError(r.db.WithContext(ctx).Create(reg).Error)
}

func (r *chainRepository) GetByID(ctx context.Context, chainID uint32) (*models.ChainRegistration, error) {
	var reg models.ChainRegistration
	if err := r.db.WithContext(ctx).First(&reg, "chain_id = ?", chainID).Error; err != nil {
		return nil, translateError(err)
	}
	return &reg, nil
}

func (r *chainRepository) List(ctx context.Context) ([]models.ChainRegistration, error) {
	var regs []models.ChainRegistration
	if err := r.db.WithContext(ctx).Order("chain_id ASC").Find(&regs).Error; err != nil {
		return nil, translateError(err)
	}
	return regs, nil
}

func (r *chainRepository) Update(ctx context.Context, reg *models.ChainRegistration) error {
	return translateError(r.db.WithContext(ctx).Save(reg).Error)
}

func (r *chainRepository) SetEnabled(ctx context.Context, chainID uint32, enabled bool) error {
	res := r.db.WithContext(ctx).Model(&models.ChainRegistration{}).
		Where("chain_id = ?", chainID).
		Update("enabled", enabled)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
