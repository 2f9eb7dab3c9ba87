package repository

import (
	"context"
	"fmt"
	"math/big"

	"aimint-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatsDelta describes increments to apply to the platform stats row.
// FeeDelta is a decimal string added to total_fees_collected (big-int math,
// amounts never fit machine integers).
type StatsDelta struct {
	TotalRequests  int64
	CompletedMints int64
	FeeDelta       string
	WithdrawnDelta string
	ActiveChains   int64
}

// StatsRepository manages the hub's single aggregate stats row.
type StatsRepository interface {
	Get(ctx context.Context) (*models.PlatformStats, error)
	Apply(ctx context.Context, delta StatsDelta) error
}

type statsRepository struct {
	db *gorm.DB
}

// NewStatsRepository creates a gorm-backed StatsRepository.
func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) Get(ctx context.Context) (*models.PlatformStats, error) {
	var stats models.PlatformStats
	if err := r.db.WithContext(ctx).First(&stats, 1).Error; err != nil {
		return nil, translateError(err)
	}
	return &stats, nil
}

// Apply increments the stats row. Runs inside the caller's transaction: the
// row is locked so the read-add-write on the fee string stays consistent.
func (r *statsRepository) Apply(ctx context.Context, delta StatsDelta) error {
	tx := r.db.WithContext(ctx)

	var stats models.PlatformStats
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&stats, 1).Error; err != nil {
		return translateError(err)
	}

	updates := map[string]interface{}{}
	if delta.TotalRequests != 0 {
		updates["total_requests"] = gorm.Expr("total_requests + ?", delta.TotalRequests)
	}
	if delta.CompletedMints != 0 {
		updates["completed_mints"] = gorm.Expr("completed_mints + ?", delta.CompletedMints)
	}
	if delta.ActiveChains != 0 {
		updates["active_chains"] = gorm.Expr("active_chains + ?", delta.ActiveChains)
	}
	if delta.FeeDelta != "" && delta.FeeDelta != "0" {
		sum, err := addDecimal(stats.TotalFeesCollected, delta.FeeDelta)
		if err != nil {
			return fmt.Errorf("total_fees_collected: %w", err)
		}
		updates["total_fees_collected"] = sum
	}
	if delta.WithdrawnDelta != "" && delta.WithdrawnDelta != "0" {
		sum, err := addDecimal(stats.TotalFeesWithdrawn, delta.WithdrawnDelta)
		if err != nil {
			return fmt.Errorf("total_fees_withdrawn: %w", err)
		}
		updates["total_fees_withdrawn"] = sum
	}
	if len(updates) == 0 {
		return nil
	}
	return translateError(tx.Model(&models.PlatformStats{}).
		Where("id = ?", 1).Updates(updates).Error)
}

// addDecimal adds two base-10 amount strings; the result may not go negative.
func addDecimal(current, delta string) (string, error) {
	a, ok := new(big.Int).SetString(current, 10)
	if !ok {
		return "", fmt.Errorf("corrupt stored amount: %q", current)
	}
	b, ok := new(big.Int).SetString(delta, 10)
	if !ok {
		return "", fmt.Errorf("invalid delta: %q", delta)
	}
	sum := a.Add(a, b)
	if sum.Sign() < 0 {
		return "", fmt.Errorf("amount underflow: %s + %s", current, delta)
	}
	return sum.String(), nil
}
