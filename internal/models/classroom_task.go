package models

import "time"

// ClassroomTask is an assignment published on the code-hosting classroom.
type ClassroomTask struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	IDTaskGithubClassroom string    `gorm:"column:id_task_github_classroom;size:128;not null;uniqueIndex" json:"idTaskGithubClassroom"`
	IDClassroom           string    `gorm:"column:id_classroom;size:128" json:"idClassroom"`
	Title                 string    `gorm:"size:255" json:"title"`
	InvitationURL         string    `gorm:"size:512" json:"invitationUrl"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}
