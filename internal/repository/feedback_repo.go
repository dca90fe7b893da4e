package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/Roberto640Alvarado/sae-LTI/internal/models"
)

// FeedbackRepository reads repository evaluations written by the classroom platform.
type FeedbackRepository interface {
	Exists(ctx context.Context, email, idTaskGithub string) (bool, error)
	GetLatest(ctx context.Context, email, idTaskGithub string) (models.Feedback, error)
}

type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository instantiates the repository.
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

func (r *feedbackRepository) baseQuery(ctx context.Context, email, idTaskGithub string) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Feedback{}).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Where("id_task_github = ?", idTaskGithub)
}

func (r *feedbackRepository) Exists(ctx context.Context, email, idTaskGithub string) (bool, error) {
	var count int64
	if err := r.baseQuery(ctx, email, idTaskGithub).Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}

// GetLatest returns the most recent evaluation; students may be re-evaluated after new pushes.
func (r *feedbackRepository) GetLatest(ctx context.Context, email, idTaskGithub string) (models.Feedback, error) {
	var feedback models.Feedback
	if err := r.baseQuery(ctx, email, idTaskGithub).
		Order("created_at DESC").
		Order("id DESC").
		First(&feedback).Error; err != nil {
		return models.Feedback{}, err
	}

	return feedback, nil
}
