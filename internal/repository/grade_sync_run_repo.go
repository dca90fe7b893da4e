package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Roberto640Alvarado/sae-LTI/internal/models"
)

// GradeSyncRunRepository stores reconciliation audit records.
type GradeSyncRunRepository interface {
	Create(ctx context.Context, run *models.GradeSyncRun) error
	ListByAssignment(ctx context.Context, assignmentID, issuer string, limit int) ([]models.GradeSyncRun, error)
}

type gradeSyncRunRepository struct {
	db *gorm.DB
}

// NewGradeSyncRunRepository instantiates the repository.
func NewGradeSyncRunRepository(db *gorm.DB) GradeSyncRunRepository {
	return &gradeSyncRunRepository{db: db}
}

func (r *gradeSyncRunRepository) Create(ctx context.Context, run *models.GradeSyncRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *gradeSyncRunRepository) ListByAssignment(ctx context.Context, assignmentID, issuer string, limit int) ([]models.GradeSyncRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var runs []models.GradeSyncRun
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("issuer = ?", issuer).
		Order("started_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, err
	}

	return runs, nil
}
