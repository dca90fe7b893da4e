package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Roberto640Alvarado/sae-LTI/internal/dto"
	"github.com/Roberto640Alvarado/sae-LTI/internal/lti"
	"github.com/Roberto640Alvarado/sae-LTI/internal/models"
	"github.com/Roberto640Alvarado/sae-LTI/internal/observability"
	"github.com/Roberto640Alvarado/sae-LTI/internal/repository"
)

// ScoreMaximum is the scale every automated grade is reported on.
const ScoreMaximum = 10.0

var (
	// ErrInvalidGradeSyncRequest indicates the request body failed validation.
	ErrInvalidGradeSyncRequest = errors.New("invalid grade sync request")
	// ErrLaunchUnauthorized indicates the session token cannot trigger a sync for the assignment.
	ErrLaunchUnauthorized = errors.New("launch session not authorized for grade sync")
	// ErrTaskLinkMissing indicates the assignment has no linked classroom task to grade from.
	ErrTaskLinkMissing = errors.New("assignment is not linked to a classroom task")
	// ErrRosterUnavailable indicates the course roster could not be fetched.
	ErrRosterUnavailable = errors.New("course roster unavailable")
	// ErrLineItemUnavailable indicates no gradebook column could be found or created.
	ErrLineItemUnavailable = errors.New("gradebook line item unavailable")
)

// LaunchResolver turns a session token into the launch it was issued for.
type LaunchResolver interface {
	Resolve(ctx context.Context, ltik string) (lti.Launch, error)
}

// PlatformServices is the roster and gradebook API of the platform.
type PlatformServices interface {
	GetMembers(ctx context.Context, launch lti.LaunchToken, membershipsURL string) ([]lti.Member, error)
	GetLineItems(ctx context.Context, launch lti.LaunchToken, resourceLinkID string) ([]lti.LineItem, error)
	CreateLineItem(ctx context.Context, launch lti.LaunchToken, item lti.LineItem) (lti.LineItem, error)
	SubmitScore(ctx context.Context, launch lti.LaunchToken, lineItemID string, score lti.Score) error
}

// GradeSyncConfig tunes reconciliation.
type GradeSyncConfig struct {
	LineItemLabel     string
	LineItemTag       string
	LookupConcurrency int
}

// GradeSyncService pushes classroom feedback grades into the platform gradebook.
type GradeSyncService interface {
	Sync(ctx context.Context, req dto.GradeSyncRequest) (dto.GradeSyncResponse, error)
	Reconcile(ctx context.Context, assignmentID, issuer string, launch lti.LaunchToken) (dto.GradeSyncResponse, error)
	ListRuns(ctx context.Context, assignmentID, issuer string, limit int) ([]dto.GradeSyncRunResponse, error)
}

type gradeSyncService struct {
	cfg        GradeSyncConfig
	resolver   LaunchResolver
	platform   PlatformServices
	validation ValidationService
	runs       repository.GradeSyncRunRepository
	publisher  GradeSyncPublisher
	validator  *validator.Validate
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewGradeSyncService constructs the grade reconciler. runs and publisher may be nil.
func NewGradeSyncService(cfg GradeSyncConfig, resolver LaunchResolver, platform PlatformServices, validation ValidationService, runs repository.GradeSyncRunRepository, publisher GradeSyncPublisher, validate *validator.Validate, logger zerolog.Logger) GradeSyncService {
	if cfg.LineItemLabel == "" {
		cfg.LineItemLabel = "Nota automática"
	}
	if cfg.LineItemTag == "" {
		cfg.LineItemTag = "autograde"
	}
	if cfg.LookupConcurrency <= 0 {
		cfg.LookupConcurrency = 4
	}

	return &gradeSyncService{
		cfg:        cfg,
		resolver:   resolver,
		platform:   platform,
		validation: validation,
		runs:       runs,
		publisher:  publisher,
		validator:  validate,
		logger:     logger.With().Str("component", "grade_sync_service").Logger(),
		tracer:     otel.Tracer("github.com/Roberto640Alvarado/sae-LTI/internal/service/grades"),
		now:        time.Now,
	}
}

func (s *gradeSyncService) Sync(ctx context.Context, req dto.GradeSyncRequest) (dto.GradeSyncResponse, error) {
	req.AssignmentID = strings.TrimSpace(req.AssignmentID)
	req.Issuer = strings.TrimSpace(req.Issuer)
	req.Token = strings.TrimSpace(req.Token)

	if err := s.validator.Struct(req); err != nil {
		return dto.GradeSyncResponse{}, fmt.Errorf("%w: %v", ErrInvalidGradeSyncRequest, err)
	}

	launch, err := s.resolver.Resolve(ctx, req.Token)
	if err != nil {
		return dto.GradeSyncResponse{}, fmt.Errorf("%w: %v", ErrLaunchUnauthorized, err)
	}
	if launch.Token.Bucket() != lti.BucketStaff {
		return dto.GradeSyncResponse{}, fmt.Errorf("%w: launch is not from an instructor", ErrLaunchUnauthorized)
	}
	if launch.Token.Issuer != req.Issuer || launch.Token.PlatformContext.Resource.ID != req.AssignmentID {
		return dto.GradeSyncResponse{}, fmt.Errorf("%w: launch was issued for another assignment", ErrLaunchUnauthorized)
	}

	return s.Reconcile(ctx, req.AssignmentID, req.Issuer, launch.Token)
}

type learnerGrade struct {
	member        lti.Member
	gradeValue    float64
	gradeFeedback float64
}

func (g learnerGrade) average() float64 {
	return (g.gradeValue + g.gradeFeedback) / 2
}

// Reconcile submits one score per roster learner. Submission failures are recorded per
// student and never abort the batch.
func (s *gradeSyncService) Reconcile(ctx context.Context, assignmentID, issuer string, launch lti.LaunchToken) (dto.GradeSyncResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grades.reconcile", trace.WithAttributes(
		attribute.String("lti.issuer", issuer),
		attribute.String("lti.assignment_id", assignmentID),
	))
	defer span.End()

	response, err := s.reconcile(ctx, assignmentID, issuer, launch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.GradeSyncRuns().WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Str("assignment_id", assignmentID).Str("issuer", issuer).Msg("grade sync failed")
		return dto.GradeSyncResponse{}, err
	}

	span.SetAttributes(
		attribute.Int("grades.total", response.Total),
		attribute.Int("grades.submitted", response.Submitted),
		attribute.Int("grades.failed", response.Failed),
	)
	observability.GradeSyncRuns().WithLabelValues(runOutcome(response)).Inc()

	return response, nil
}

func (s *gradeSyncService) reconcile(ctx context.Context, assignmentID, issuer string, launch lti.LaunchToken) (dto.GradeSyncResponse, error) {
	startedAt := s.now().UTC()

	link, err := s.validation.GetTaskLinkByMoodleTask(ctx, assignmentID, issuer)
	if err != nil {
		if errors.Is(err, ErrTaskLinkNotFound) {
			return dto.GradeSyncResponse{}, ErrTaskLinkMissing
		}
		return dto.GradeSyncResponse{}, fmt.Errorf("load task link: %w", err)
	}
	if !link.IsLinked() {
		return dto.GradeSyncResponse{}, ErrTaskLinkMissing
	}

	members, err := s.platform.GetMembers(ctx, launch, launch.PlatformContext.NamesRoles.ContextMembershipsURL)
	if err != nil {
		return dto.GradeSyncResponse{}, fmt.Errorf("%w: %w", ErrRosterUnavailable, err)
	}

	learners := make([]lti.Member, 0, len(members))
	for _, member := range members {
		if member.IsLearner() {
			learners = append(learners, member)
		}
	}

	grades := s.lookupGrades(ctx, learners, link.IDTaskGithubClassroom)

	response := dto.GradeSyncResponse{
		Total:  len(grades),
		Scores: make([]dto.StudentScore, 0, len(grades)),
	}

	if len(grades) > 0 {
		lineItemID, err := s.resolveLineItem(ctx, launch)
		if err != nil {
			return dto.GradeSyncResponse{}, fmt.Errorf("%w: %w", ErrLineItemUnavailable, err)
		}
		response.LineItemID = lineItemID

		for _, grade := range grades {
			response.Scores = append(response.Scores, s.submit(ctx, launch, lineItemID, grade))
		}
	}

	for _, score := range response.Scores {
		if score.Submitted {
			response.Submitted++
		} else {
			response.Failed++
		}
	}

	s.record(ctx, assignmentID, issuer, startedAt, response)

	return response, nil
}

// lookupGrades fetches feedback concurrently. A missing or failed lookup yields zero sub-scores.
func (s *gradeSyncService) lookupGrades(ctx context.Context, learners []lti.Member, idTaskGithub string) []learnerGrade {
	grades := make([]learnerGrade, len(learners))

	var group errgroup.Group
	group.SetLimit(s.cfg.LookupConcurrency)

	for i, learner := range learners {
		grades[i] = learnerGrade{member: learner}
		if strings.TrimSpace(learner.Email) == "" {
			continue
		}

		group.Go(func() error {
			feedback, err := s.validation.GetFeedbackByEmailAndIDTaskGithub(ctx, learner.Email, idTaskGithub)
			if err != nil {
				if !errors.Is(err, ErrFeedbackNotFound) {
					s.logger.Warn().Err(err).Str("email", learner.Email).Str("user_id", learner.UserID).Msg("feedback lookup failed, grading as zero")
				}
				return nil
			}
			grades[i].gradeValue = feedback.GradeValue
			grades[i].gradeFeedback = feedback.GradeFeedback
			return nil
		})
	}
	_ = group.Wait()

	return grades
}

// resolveLineItem prefers the launch's own line item, then the first one on the
// resource link, and creates one only when none exists.
func (s *gradeSyncService) resolveLineItem(ctx context.Context, launch lti.LaunchToken) (string, error) {
	if lineItem := launch.PlatformContext.Endpoint.LineItem; lineItem != "" {
		return lineItem, nil
	}

	resourceLinkID := launch.PlatformContext.Resource.ID
	items, err := s.platform.GetLineItems(ctx, launch, resourceLinkID)
	if err != nil {
		return "", err
	}
	if len(items) > 0 {
		return items[0].ID, nil
	}

	created, err := s.platform.CreateLineItem(ctx, launch, lti.LineItem{
		ScoreMaximum:   ScoreMaximum,
		Label:          s.cfg.LineItemLabel,
		Tag:            s.cfg.LineItemTag,
		ResourceLinkID: resourceLinkID,
	})
	if err != nil {
		return "", err
	}
	s.logger.Info().Str("line_item_id", created.ID).Str("resource_link_id", resourceLinkID).Msg("line item created")

	return created.ID, nil
}

func (s *gradeSyncService) submit(ctx context.Context, launch lti.LaunchToken, lineItemID string, grade learnerGrade) dto.StudentScore {
	result := dto.StudentScore{
		UserID:        grade.member.UserID,
		Email:         grade.member.Email,
		GradeValue:    grade.gradeValue,
		GradeFeedback: grade.gradeFeedback,
		ScoreGiven:    grade.average(),
	}

	err := s.platform.SubmitScore(ctx, launch, lineItemID, lti.Score{
		UserID:           grade.member.UserID,
		ScoreGiven:       result.ScoreGiven,
		ScoreMaximum:     ScoreMaximum,
		ActivityProgress: lti.ActivityProgressCompleted,
		GradingProgress:  lti.GradingProgressFullyGraded,
	})
	if err != nil {
		result.Error = err.Error()
		observability.GradeSubmissions().WithLabelValues("failed").Inc()
		s.logger.Error().Err(err).Str("email", grade.member.Email).Str("user_id", grade.member.UserID).Msg("score submission failed")
		return result
	}

	result.Submitted = true
	observability.GradeSubmissions().WithLabelValues("submitted").Inc()
	return result
}

// record stores the audit row and announces the run. Both are best-effort.
func (s *gradeSyncService) record(ctx context.Context, assignmentID, issuer string, startedAt time.Time, response dto.GradeSyncResponse) {
	run := models.GradeSyncRun{
		AssignmentID: assignmentID,
		Issuer:       issuer,
		LineItemID:   response.LineItemID,
		Total:        response.Total,
		Submitted:    response.Submitted,
		Failed:       response.Failed,
		StartedAt:    startedAt,
		FinishedAt:   s.now().UTC(),
	}
	if scores, err := json.Marshal(response.Scores); err == nil {
		run.Scores = scores
	}

	if s.runs != nil {
		if err := s.runs.Create(ctx, &run); err != nil {
			s.logger.Warn().Err(err).Str("assignment_id", assignmentID).Msg("failed to store grade sync run")
		}
	}

	if run.Partial() {
		s.logger.Warn().Int("submitted", run.Submitted).Int("failed", run.Failed).Str("assignment_id", assignmentID).Msg("grade sync partially submitted")
	}

	if s.publisher != nil {
		event := GradeSyncEvent{
			RunID:        run.ID,
			AssignmentID: assignmentID,
			Issuer:       issuer,
			LineItemID:   run.LineItemID,
			Total:        run.Total,
			Submitted:    run.Submitted,
			Failed:       run.Failed,
			FinishedAt:   run.FinishedAt,
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish grade sync event")
		}
	}
}

func (s *gradeSyncService) ListRuns(ctx context.Context, assignmentID, issuer string, limit int) ([]dto.GradeSyncRunResponse, error) {
	if s.runs == nil {
		return []dto.GradeSyncRunResponse{}, nil
	}

	runs, err := s.runs.ListByAssignment(ctx, assignmentID, issuer, limit)
	if err != nil {
		return nil, err
	}

	return dto.NewGradeSyncRunResponseSlice(runs), nil
}

func runOutcome(response dto.GradeSyncResponse) string {
	switch {
	case response.Total == 0:
		return "empty"
	case response.Failed == 0:
		return "success"
	case response.Submitted == 0:
		return "failed"
	default:
		return "partial"
	}
}
