package models

import "time"

// TaskLink associates an LMS assignment with a classroom task.
type TaskLink struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	IDTaskMoodle          string    `gorm:"column:id_task_moodle;size:128;not null;uniqueIndex:idx_task_link_assignment" json:"idTaskMoodle"`
	Issuer                string    `gorm:"size:255;not null;uniqueIndex:idx_task_link_assignment" json:"issuer"`
	IDTaskGithubClassroom string    `gorm:"column:id_task_github_classroom;size:128;not null;index" json:"idTaskGithubClassroom"`
	IDClassroom           string    `gorm:"column:id_classroom;size:128" json:"idClassroom"`
	OrgID                 string    `gorm:"size:128" json:"orgId"`
	OrgName               string    `gorm:"size:255" json:"orgName"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// IsLinked reports whether the link points at a classroom task.
func (t TaskLink) IsLinked() bool {
	return t.IDTaskGithubClassroom != ""
}
