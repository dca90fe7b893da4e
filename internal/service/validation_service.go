package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Roberto640Alvarado/sae-LTI/internal/models"
	"github.com/Roberto640Alvarado/sae-LTI/internal/repository"
)

var (
	// ErrTaskLinkNotFound indicates the assignment is not linked to a classroom task.
	ErrTaskLinkNotFound = errors.New("task link not found")
	// ErrFeedbackNotFound indicates the student has no evaluation for the task.
	ErrFeedbackNotFound = errors.New("feedback not found")
	// ErrInvitationNotFound indicates the linked classroom task has no invitation url.
	ErrInvitationNotFound = errors.New("invitation url not found")
)

// ValidationService answers the lookups the launch router and grade reconciler depend on.
type ValidationService interface {
	HasTaskLink(ctx context.Context, assignmentID, issuer string) (bool, error)
	GetTaskLinkByMoodleTask(ctx context.Context, assignmentID, issuer string) (models.TaskLink, error)
	HasUser(ctx context.Context, email string) (bool, error)
	HasFeedback(ctx context.Context, email, assignmentID, issuer string) (bool, error)
	GetFeedbackByEmailAndIDTaskGithub(ctx context.Context, email, idTaskGithub string) (models.Feedback, error)
	GetInvitationURLByMoodleTask(ctx context.Context, assignmentID, issuer string) (string, error)
}

type validationService struct {
	links    repository.TaskLinkRepository
	users    repository.UserRepository
	feedback repository.FeedbackRepository
	tasks    repository.ClassroomTaskRepository
	logger   zerolog.Logger
}

// NewValidationService constructs the validation service.
func NewValidationService(links repository.TaskLinkRepository, users repository.UserRepository, feedback repository.FeedbackRepository, tasks repository.ClassroomTaskRepository, logger zerolog.Logger) ValidationService {
	return &validationService{
		links:    links,
		users:    users,
		feedback: feedback,
		tasks:    tasks,
		logger:   logger.With().Str("component", "validation_service").Logger(),
	}
}

func (s *validationService) HasTaskLink(ctx context.Context, assignmentID, issuer string) (bool, error) {
	return s.links.Exists(ctx, assignmentID, issuer)
}

func (s *validationService) GetTaskLinkByMoodleTask(ctx context.Context, assignmentID, issuer string) (models.TaskLink, error) {
	link, err := s.links.GetByMoodleTask(ctx, assignmentID, issuer)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.TaskLink{}, ErrTaskLinkNotFound
		}
		return models.TaskLink{}, err
	}

	return link, nil
}

func (s *validationService) HasUser(ctx context.Context, email string) (bool, error) {
	if strings.TrimSpace(email) == "" {
		return false, nil
	}
	return s.users.ExistsByEmail(ctx, email)
}

func (s *validationService) HasFeedback(ctx context.Context, email, assignmentID, issuer string) (bool, error) {
	link, err := s.GetTaskLinkByMoodleTask(ctx, assignmentID, issuer)
	if err != nil {
		if errors.Is(err, ErrTaskLinkNotFound) {
			return false, nil
		}
		return false, err
	}
	if !link.IsLinked() {
		return false, nil
	}

	return s.feedback.Exists(ctx, email, link.IDTaskGithubClassroom)
}

func (s *validationService) GetFeedbackByEmailAndIDTaskGithub(ctx context.Context, email, idTaskGithub string) (models.Feedback, error) {
	feedback, err := s.feedback.GetLatest(ctx, email, idTaskGithub)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Feedback{}, ErrFeedbackNotFound
		}
		return models.Feedback{}, err
	}

	return feedback, nil
}

func (s *validationService) GetInvitationURLByMoodleTask(ctx context.Context, assignmentID, issuer string) (string, error) {
	link, err := s.GetTaskLinkByMoodleTask(ctx, assignmentID, issuer)
	if err != nil {
		return "", err
	}

	task, err := s.tasks.GetByGithubID(ctx, link.IDTaskGithubClassroom)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Str("id_task_github", link.IDTaskGithubClassroom).Msg("linked classroom task missing")
			return "", ErrInvitationNotFound
		}
		return "", err
	}
	if strings.TrimSpace(task.InvitationURL) == "" {
		return "", ErrInvitationNotFound
	}

	return task.InvitationURL, nil
}
