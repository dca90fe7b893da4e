package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Roberto640Alvarado/sae-LTI/internal/models"
	"github.com/Roberto640Alvarado/sae-LTI/internal/repository"
)

func setupValidationService(t *testing.T) (ValidationService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	svc := NewValidationService(
		repository.NewTaskLinkRepository(db),
		repository.NewUserRepository(db),
		repository.NewFeedbackRepository(db),
		repository.NewClassroomTaskRepository(db),
		testLogger(),
	)
	return svc, db
}

func TestValidationServiceLookups(t *testing.T) {
	svc, db := setupValidationService(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.User{Email: "Student@Example.com"}).Error)
	require.NoError(t, db.Create(&models.TaskLink{
		IDTaskMoodle:          testAssignment,
		Issuer:                testIssuer,
		IDTaskGithubClassroom: testTaskGithub,
		IDClassroom:           "classroom-3",
	}).Error)
	require.NoError(t, db.Create(&models.ClassroomTask{
		IDTaskGithubClassroom: testTaskGithub,
		InvitationURL:         "https://classroom.github.com/a/abc",
	}).Error)
	require.NoError(t, db.Create(&models.Feedback{
		Email:         "student@example.com",
		IDTaskGithub:  testTaskGithub,
		GradeValue:    9,
		GradeFeedback: 8,
	}).Error)

	known, err := svc.HasUser(ctx, "student@example.com")
	require.NoError(t, err)
	require.True(t, known)

	known, err = svc.HasUser(ctx, "")
	require.NoError(t, err)
	require.False(t, known)

	linked, err := svc.HasTaskLink(ctx, testAssignment, testIssuer)
	require.NoError(t, err)
	require.True(t, linked)

	linked, err = svc.HasTaskLink(ctx, testAssignment, "https://other.example.com")
	require.NoError(t, err)
	require.False(t, linked)

	link, err := svc.GetTaskLinkByMoodleTask(ctx, testAssignment, testIssuer)
	require.NoError(t, err)
	require.Equal(t, "classroom-3", link.IDClassroom)

	_, err = svc.GetTaskLinkByMoodleTask(ctx, "missing", testIssuer)
	require.ErrorIs(t, err, ErrTaskLinkNotFound)

	hasFeedback, err := svc.HasFeedback(ctx, "STUDENT@example.com", testAssignment, testIssuer)
	require.NoError(t, err)
	require.True(t, hasFeedback)

	hasFeedback, err = svc.HasFeedback(ctx, "student@example.com", "missing", testIssuer)
	require.NoError(t, err)
	require.False(t, hasFeedback)

	feedback, err := svc.GetFeedbackByEmailAndIDTaskGithub(ctx, "student@example.com", testTaskGithub)
	require.NoError(t, err)
	require.Equal(t, 9.0, feedback.GradeValue)

	_, err = svc.GetFeedbackByEmailAndIDTaskGithub(ctx, "other@example.com", testTaskGithub)
	require.ErrorIs(t, err, ErrFeedbackNotFound)

	invitation, err := svc.GetInvitationURLByMoodleTask(ctx, testAssignment, testIssuer)
	require.NoError(t, err)
	require.Equal(t, "https://classroom.github.com/a/abc", invitation)
}

func TestValidationServiceInvitationRequiresClassroomTask(t *testing.T) {
	svc, db := setupValidationService(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.TaskLink{
		IDTaskMoodle:          testAssignment,
		Issuer:                testIssuer,
		IDTaskGithubClassroom: testTaskGithub,
	}).Error)

	_, err := svc.GetInvitationURLByMoodleTask(ctx, testAssignment, testIssuer)
	require.ErrorIs(t, err, ErrInvitationNotFound)

	require.NoError(t, db.Create(&models.ClassroomTask{IDTaskGithubClassroom: testTaskGithub}).Error)
	_, err = svc.GetInvitationURLByMoodleTask(ctx, testAssignment, testIssuer)
	require.ErrorIs(t, err, ErrInvitationNotFound)

	_, err = svc.GetInvitationURLByMoodleTask(ctx, "missing", testIssuer)
	require.ErrorIs(t, err, ErrTaskLinkNotFound)
}
