package repository

import (
	"context"
	"time"

	"aimint-backend/internal/models"

	"gorm.io/gorm"
)

// MintRequestRepository persists hub request records.
type MintRequestRepository interface {
	Create(ctx context.Context, req *models.MintRequest) error
	GetByID(ctx context.Context, id string) (*models.MintRequest, error)
	// UpdateGuarded applies updates only while the request is in one of the
	// expected statuses. Returns ErrStaleStatus when the guard matched nothing.
	UpdateGuarded(ctx context.Context, id string, expected []models.RequestStatus, updates map[string]interface{}) error
	FindByStatus(ctx context.Context, status models.RequestStatus, page, pageSize int) ([]models.MintRequest, int64, error)
	FindByRequester(ctx context.Context, requester string, page, pageSize int) ([]models.MintRequest, int64, error)
	// FindStuck returns requests sitting in the given status since before cutoff.
	FindStuck(ctx context.Context, status models.RequestStatus, cutoff time.Time, limit int) ([]models.MintRequest, error)
	CountByStatus(ctx context.Context, status models.RequestStatus) (int64, error)
}

type mintRequestRepository struct {
	db *gorm.DB
}

// NewMintRequestRepository creates a gorm-backed MintRequestRepository.
func NewMintRequestRepository(db *gorm.DB) MintRequestRepository {
	return &mintRequestRepository{db: db}
}

func (r *mintRequestRepository) Create(ctx context.Context, req *models.MintRequest) error {
	return translateError(r.db.WithContext(ctx).Create(req).Error)
}

func (r *mintRequestRepository) GetByID(ctx context.Context, id string) (*models.MintRequest, error) {
	var req models.MintRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &req, nil
}

func (r *mintRequestRepository) UpdateGuarded(ctx context.Context, id string, expected []models.RequestStatus, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&models.MintRequest{}).
		Where("id = ? AND status IN ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

func (r *mintRequestRepository) FindByStatus(ctx context.Context, status models.RequestStatus, page, pageSize int) ([]models.MintRequest, int64, error) {
	var (
		reqs  []models.MintRequest
		total int64
	)
	q := r.db.WithContext(ctx).Model(&models.MintRequest{}).Where("status = ?", status)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}
	if err := q.Order("created_at ASC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&reqs).Error; err != nil {
		return nil, 0, translateError(err)
	}
	return reqs, total, nil
}

func (r *mintRequestRepository) FindByRequester(ctx context.Context, requester string, page, pageSize int) ([]models.MintRequest, int64, error) {
	var (
		reqs  []models.MintRequest
		total int64
	)
	q := r.db.WithContext(ctx).Model(&models.MintRequest{}).Where("requester = ?", requester)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}
	if err := q.Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&reqs).Error; err != nil {
		return nil, 0, translateError(err)
	}
	return reqs, total, nil
}

func (r *mintRequestRepository) FindStuck(ctx context.Context, status models.RequestStatus, cutoff time.Time, limit int) ([]models.MintRequest, error) {
	var reqs []models.MintRequest
	if err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, cutoff).
		Order("updated_at ASC").Limit(limit).
		Find(&reqs).Error; err != nil {
		return nil, translateError(err)
	}
	return reqs, nil
}

func (r *mintRequestRepository) CountByStatus(ctx context.Context, status models.RequestStatus) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.MintRequest{}).
		Where("status = ?", status).Count(&total).Error
	return total, translateError(err)
}
