package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Roberto640Alvarado/sae-LTI/internal/models"
)

// ClassroomTaskRepository reads classroom task definitions.
type ClassroomTaskRepository interface {
	GetByGithubID(ctx context.Context, idTaskGithub string) (models.ClassroomTask, error)
}

type classroomTaskRepository struct {
	db *gorm.DB
}

// NewClassroomTaskRepository instantiates the repository.
func NewClassroomTaskRepository(db *gorm.DB) ClassroomTaskRepository {
	return &classroomTaskRepository{db: db}
}

func (r *classroomTaskRepository) GetByGithubID(ctx context.Context, idTaskGithub string) (models.ClassroomTask, error) {
	var task models.ClassroomTask
	if err := r.db.WithContext(ctx).
		Where("id_task_github_classroom = ?", idTaskGithub).
		First(&task).Error; err != nil {
		return models.ClassroomTask{}, err
	}

	return task, nil
}
