package dto

import (
	"encoding/json"
	"time"

	"github.com/Roberto640Alvarado/sae-LTI/internal/models"
)

// GradeSyncRequest triggers a gradebook reconciliation for an assignment.
type GradeSyncRequest struct {
	AssignmentID string `json:"assignmentId" validate:"required,max=128"`
	Issuer       string `json:"issuer" validate:"required,url,max=255"`
	// Token is the ltik of the instructor launch.
	Token string `json:"token" validate:"required"`
}

// StudentScore is the reconciliation outcome for one learner.
type StudentScore struct {
	UserID        string  `json:"userId"`
	Email         string  `json:"email"`
	GradeValue    float64 `json:"gradeValue"`
	GradeFeedback float64 `json:"gradeFeedback"`
	ScoreGiven    float64 `json:"scoreGiven"`
	Submitted     bool    `json:"submitted"`
	Error         string  `json:"error,omitempty"`
}

// GradeSyncResponse summarises a reconciliation run.
type GradeSyncResponse struct {
	LineItemID string         `json:"lineItemId"`
	Total      int            `json:"total"`
	Submitted  int            `json:"submitted"`
	Failed     int            `json:"failed"`
	Scores     []StudentScore `json:"scores"`
}

// GradeSyncRunResponse is a stored reconciliation run.
type GradeSyncRunResponse struct {
	ID         uint           `json:"id"`
	LineItemID string         `json:"lineItemId"`
	Total      int            `json:"total"`
	Submitted  int            `json:"submitted"`
	Failed     int            `json:"failed"`
	Scores     []StudentScore `json:"scores"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
}

// NewGradeSyncRunResponse converts a model into a DTO.
func NewGradeSyncRunResponse(run models.GradeSyncRun) GradeSyncRunResponse {
	scores := make([]StudentScore, 0)
	if len(run.Scores) > 0 {
		_ = json.Unmarshal(run.Scores, &scores)
	}

	return GradeSyncRunResponse{
		ID:         run.ID,
		LineItemID: run.LineItemID,
		Total:      run.Total,
		Submitted:  run.Submitted,
		Failed:     run.Failed,
		Scores:     scores,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
}

// NewGradeSyncRunResponseSlice converts a slice of models into DTOs.
func NewGradeSyncRunResponseSlice(runs []models.GradeSyncRun) []GradeSyncRunResponse {
	out := make([]GradeSyncRunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, NewGradeSyncRunResponse(run))
	}
	return out
}
