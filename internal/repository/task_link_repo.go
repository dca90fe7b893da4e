package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Roberto640Alvarado/sae-LTI/internal/models"
)

// TaskLinkRepository reads assignment links created in the classroom platform.
type TaskLinkRepository interface {
	Exists(ctx context.Context, idTaskMoodle, issuer string) (bool, error)
	GetByMoodleTask(ctx context.Context, idTaskMoodle, issuer string) (models.TaskLink, error)
}

type taskLinkRepository struct {
	db *gorm.DB
}

// NewTaskLinkRepository instantiates the repository.
func NewTaskLinkRepository(db *gorm.DB) TaskLinkRepository {
	return &taskLinkRepository{db: db}
}

func (r *taskLinkRepository) baseQuery(ctx context.Context, idTaskMoodle, issuer string) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.TaskLink{}).
		Where("id_task_moodle = ?", idTaskMoodle).
		Where("issuer = ?", issuer)
}

func (r *taskLinkRepository) Exists(ctx context.Context, idTaskMoodle, issuer string) (bool, error) {
	var count int64
	if err := r.baseQuery(ctx, idTaskMoodle, issuer).Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *taskLinkRepository) GetByMoodleTask(ctx context.Context, idTaskMoodle, issuer string) (models.TaskLink, error) {
	var link models.TaskLink
	if err := r.baseQuery(ctx, idTaskMoodle, issuer).First(&link).Error; err != nil {
		return models.TaskLink{}, err
	}

	return link, nil
}
