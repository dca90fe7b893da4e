package models

import "time"

// Feedback is the automated evaluation of a student's repository for a classroom task.
type Feedback struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Email         string    `gorm:"size:255;not null;index:idx_feedback_student_task" json:"email"`
	IDTaskGithub  string    `gorm:"column:id_task_github;size:128;not null;index:idx_feedback_student_task" json:"idTaskGithub"`
	RepositoryURL string    `gorm:"size:512" json:"repositoryUrl"`
	GradeValue    float64   `gorm:"not null;default:0" json:"gradeValue"`
	GradeFeedback float64   `gorm:"not null;default:0" json:"gradeFeedback"`
	Comment       string    `gorm:"type:text" json:"comment"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
