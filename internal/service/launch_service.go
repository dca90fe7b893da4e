package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Roberto640Alvarado/sae-LTI/internal/dto"
	"github.com/Roberto640Alvarado/sae-LTI/internal/lti"
	"github.com/Roberto640Alvarado/sae-LTI/internal/observability"
)

const (
	fallbackName  = "Sin nombre"
	fallbackEmail = "Sin email"
	fallbackID    = "unknown"
)

// ErrUnsupportedRole indicates the launch carries no instructor, administrator or learner role.
var ErrUnsupportedRole = errors.New("launch role not supported")

// TokenSigner issues the signed payload handed to the front end.
type TokenSigner interface {
	Sign(payload any, ttl time.Duration) (string, error)
}

// LaunchService decides where a validated launch lands on the front end.
type LaunchService interface {
	Route(ctx context.Context, launch lti.Launch) (dto.LaunchRedirect, error)
}

type launchService struct {
	validation ValidationService
	signer     TokenSigner
	ttl        time.Duration
	sanitizer  *bluemonday.Policy
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// launchClaims are the launch fields routing depends on, with fallbacks applied.
type launchClaims struct {
	name         string
	email        string
	courseID     string
	assignmentID string
	issuer       string
	returnURL    string
}

// NewLaunchService constructs the launch router. Tokens are valid for ttl.
func NewLaunchService(validation ValidationService, signer TokenSigner, ttl time.Duration, logger zerolog.Logger) LaunchService {
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &launchService{
		validation: validation,
		signer:     signer,
		ttl:        ttl,
		sanitizer:  bluemonday.StrictPolicy(),
		logger:     logger.With().Str("component", "launch_service").Logger(),
		tracer:     otel.Tracer("github.com/Roberto640Alvarado/sae-LTI/internal/service/launch"),
	}
}

// Route returns exactly one redirect. On failure it returns the error page redirect
// together with the error.
func (s *launchService) Route(ctx context.Context, launch lti.Launch) (dto.LaunchRedirect, error) {
	claims := s.claims(launch.Token)
	bucket := launch.Token.Bucket()

	ctx, span := s.tracer.Start(ctx, "launch.route", trace.WithAttributes(
		attribute.String("lti.issuer", claims.issuer),
		attribute.String("lti.assignment_id", claims.assignmentID),
		attribute.String("lti.bucket", string(bucket)),
	))
	defer span.End()

	var (
		redirect dto.LaunchRedirect
		branch   string
		err      error
	)
	switch bucket {
	case lti.BucketStaff:
		redirect, branch, err = s.routeInstructor(ctx, launch.Ltik, claims)
	case lti.BucketStudent:
		redirect, branch, err = s.routeStudent(ctx, claims)
	default:
		span.SetStatus(codes.Error, ErrUnsupportedRole.Error())
		return dto.LaunchRedirect{}, ErrUnsupportedRole
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error().Err(err).
			Str("branch", branch).
			Str("assignment_id", claims.assignmentID).
			Str("issuer", claims.issuer).
			Msg("launch routing failed")
		observability.LaunchRedirects().WithLabelValues(dto.DestinationError).Inc()
		return dto.LaunchRedirect{Destination: dto.DestinationError}, err
	}

	span.SetAttributes(attribute.String("launch.destination", redirect.Destination))
	observability.LaunchRedirects().WithLabelValues(redirect.Destination).Inc()
	s.logger.Info().
		Str("branch", branch).
		Str("destination", redirect.Destination).
		Str("assignment_id", claims.assignmentID).
		Msg("launch routed")

	return redirect, nil
}

func (s *launchService) routeInstructor(ctx context.Context, ltik string, claims launchClaims) (dto.LaunchRedirect, string, error) {
	linked, err := s.validation.HasTaskLink(ctx, claims.assignmentID, claims.issuer)
	if err != nil {
		return dto.LaunchRedirect{}, "instructor", fmt.Errorf("check task link: %w", err)
	}

	if !linked {
		redirect, err := s.signed(dto.DestinationRoot, dto.TaskSetupPayload{
			Email:        claims.email,
			IsMoodle:     true,
			CourseID:     claims.courseID,
			AssignmentID: claims.assignmentID,
			Issuer:       claims.issuer,
		})
		return redirect, "instructor_unlinked", err
	}

	link, err := s.validation.GetTaskLinkByMoodleTask(ctx, claims.assignmentID, claims.issuer)
	if err != nil {
		return dto.LaunchRedirect{}, "instructor_linked", fmt.Errorf("load task link: %w", err)
	}

	redirect, err := s.signed(dto.DestinationRepositories, dto.LinkedTaskPayload{
		IDClassroom:  link.IDClassroom,
		IDTaskGithub: link.IDTaskGithubClassroom,
		OrgID:        link.OrgID,
		OrgName:      link.OrgName,
		IDTaskMoodle: link.IDTaskMoodle,
		IsMoodle:     true,
		ReturnURL:    claims.returnURL,
		Ltik:         ltik,
	})
	return redirect, "instructor_linked", err
}

func (s *launchService) routeStudent(ctx context.Context, claims launchClaims) (dto.LaunchRedirect, string, error) {
	known, err := s.validation.HasUser(ctx, claims.email)
	if err != nil {
		return dto.LaunchRedirect{}, "student", fmt.Errorf("check user: %w", err)
	}
	if !known {
		redirect, err := s.signed(dto.DestinationRoot, dto.StudentOnboardingPayload{IsMoodle: true, IsStudentMoodle: true})
		return redirect, "student_unknown", err
	}

	linked, err := s.validation.HasTaskLink(ctx, claims.assignmentID, claims.issuer)
	if err != nil {
		return dto.LaunchRedirect{}, "student", fmt.Errorf("check task link: %w", err)
	}
	if !linked {
		return dto.LaunchRedirect{Destination: dto.DestinationUnavailable}, "student_unlinked", nil
	}

	hasFeedback, err := s.validation.HasFeedback(ctx, claims.email, claims.assignmentID, claims.issuer)
	if err != nil {
		return dto.LaunchRedirect{}, "student", fmt.Errorf("check feedback: %w", err)
	}

	if hasFeedback {
		link, err := s.validation.GetTaskLinkByMoodleTask(ctx, claims.assignmentID, claims.issuer)
		if err != nil {
			return dto.LaunchRedirect{}, "student_feedback", fmt.Errorf("load task link: %w", err)
		}
		redirect, err := s.signed(dto.DestinationFeedback, dto.FeedbackPayload{
			Email:           claims.email,
			IsMoodle:        true,
			IDTaskClassroom: link.IDTaskGithubClassroom,
			Name:            claims.name,
		})
		return redirect, "student_feedback", err
	}

	invitation, err := s.validation.GetInvitationURLByMoodleTask(ctx, claims.assignmentID, claims.issuer)
	if err != nil && !errors.Is(err, ErrInvitationNotFound) {
		return dto.LaunchRedirect{}, "student_invitation", fmt.Errorf("load invitation: %w", err)
	}
	if err != nil {
		s.logger.Warn().Str("assignment_id", claims.assignmentID).Msg("linked task has no invitation url")
	}
	redirect, err := s.signed(dto.DestinationInvitation, dto.InvitationPayload{
		IsMoodle:      true,
		URLInvitation: invitation,
		Name:          claims.name,
	})
	return redirect, "student_invitation", err
}

func (s *launchService) signed(destination string, payload any) (dto.LaunchRedirect, error) {
	token, err := s.signer.Sign(payload, s.ttl)
	if err != nil {
		return dto.LaunchRedirect{}, fmt.Errorf("sign payload: %w", err)
	}

	return dto.LaunchRedirect{Destination: destination, Token: token}, nil
}

func (s *launchService) claims(token lti.LaunchToken) launchClaims {
	name := strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(token.UserInfo.Name)))
	if name == "" {
		name = fallbackName
	}

	return launchClaims{
		name:         name,
		email:        orDefault(token.UserInfo.Email, fallbackEmail),
		courseID:     orDefault(token.PlatformContext.Context.ID, fallbackID),
		assignmentID: orDefault(token.PlatformContext.Resource.ID, fallbackID),
		issuer:       token.Issuer,
		returnURL:    token.PlatformContext.LaunchPresentation.ReturnURL,
	}
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
