package models

import (
	"time"

	"gorm.io/datatypes"
)

// GradeSyncRun records one gradebook reconciliation.
type GradeSyncRun struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	AssignmentID string         `gorm:"size:128;not null;index:idx_grade_sync_assignment" json:"assignment_id"`
	Issuer       string         `gorm:"size:255;not null;index:idx_grade_sync_assignment" json:"issuer"`
	LineItemID   string         `gorm:"size:512" json:"line_item_id"`
	Total        int            `json:"total"`
	Submitted    int            `json:"submitted"`
	Failed       int            `json:"failed"`
	Scores       datatypes.JSON `json:"scores"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
}

// Partial reports whether some submissions in the run failed.
func (r GradeSyncRun) Partial() bool {
	return r.Failed > 0 && r.Submitted > 0
}
