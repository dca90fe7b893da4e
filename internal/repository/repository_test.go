package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Roberto640Alvarado/sae-LTI/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// seed inserts rows owned by the classroom platform; the repositories only read them.
func seed(t *testing.T, db *gorm.DB, rows ...any) {
	t.Helper()
	for _, row := range rows {
		require.NoError(t, db.Create(row).Error)
	}
}

func TestPlatformRepositoryUpsertIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPlatformRepository(db)
	ctx := context.Background()

	platform := models.Platform{
		URL:                    "https://lms.example.com",
		ClientID:               "client-1",
		Name:                   "Old name",
		AuthenticationEndpoint: "https://lms.example.com/auth",
		AccessTokenEndpoint:    "https://lms.example.com/token",
		AuthMethod:             models.PlatformAuthMethodJWKSet,
		AuthKey:                "https://lms.example.com/certs",
	}
	require.NoError(t, repo.Upsert(ctx, &platform))

	updated := platform
	updated.ID = 0
	updated.Name = "New name"
	require.NoError(t, repo.Upsert(ctx, &updated))

	var count int64
	require.NoError(t, db.Model(&models.Platform{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	found, err := repo.FindByIssuer(ctx, "https://lms.example.com", "client-1")
	require.NoError(t, err)
	require.Equal(t, "New name", found.Name)

	found, err = repo.FindByIssuer(ctx, "https://lms.example.com", "")
	require.NoError(t, err)
	require.Equal(t, "client-1", found.ClientID)

	_, err = repo.FindByIssuer(ctx, "https://other.example.com", "")
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestUserRepositoryExistsIsCaseInsensitive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	seed(t, db, &models.User{Email: "Ana@Example.com", Name: "Ana"})

	exists, err := repo.ExistsByEmail(ctx, " ana@example.com ")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = repo.ExistsByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestTaskLinkRepositoryScopesByIssuer(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskLinkRepository(db)
	ctx := context.Background()

	link := models.TaskLink{
		IDTaskMoodle:          "42",
		Issuer:                "https://lms.example.com",
		IDTaskGithubClassroom: "gh-7",
		IDClassroom:           "cls-1",
		OrgID:                 "org-1",
		OrgName:               "uca-org",
	}
	seed(t, db, &link)

	exists, err := repo.Exists(ctx, "42", "https://lms.example.com")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = repo.Exists(ctx, "42", "https://other.example.com")
	require.NoError(t, err)
	require.False(t, exists)

	found, err := repo.GetByMoodleTask(ctx, "42", "https://lms.example.com")
	require.NoError(t, err)
	require.Equal(t, "gh-7", found.IDTaskGithubClassroom)
	require.True(t, found.IsLinked())

	duplicate := link
	duplicate.ID = 0
	require.Error(t, db.Create(&duplicate).Error, "expected unique assignment link")
}

func TestFeedbackRepositoryReturnsLatest(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeedbackRepository(db)
	ctx := context.Background()

	older := models.Feedback{Email: "ana@example.com", IDTaskGithub: "gh-7", GradeValue: 4, GradeFeedback: 5, CreatedAt: time.Now().Add(-time.Hour)}
	newer := models.Feedback{Email: "ana@example.com", IDTaskGithub: "gh-7", GradeValue: 8, GradeFeedback: 9, CreatedAt: time.Now()}
	seed(t, db, &older, &newer)

	exists, err := repo.Exists(ctx, "ANA@example.com", "gh-7")
	require.NoError(t, err)
	require.True(t, exists)

	latest, err := repo.GetLatest(ctx, "ana@example.com", "gh-7")
	require.NoError(t, err)
	require.Equal(t, 8.0, latest.GradeValue)
	require.Equal(t, 9.0, latest.GradeFeedback)

	_, err = repo.GetLatest(ctx, "ana@example.com", "gh-8")
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestClassroomTaskRepositoryGetByGithubID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewClassroomTaskRepository(db)
	ctx := context.Background()

	seed(t, db, &models.ClassroomTask{IDTaskGithubClassroom: "gh-7", InvitationURL: "https://classroom.github.com/a/xyz"})

	task, err := repo.GetByGithubID(ctx, "gh-7")
	require.NoError(t, err)
	require.Equal(t, "https://classroom.github.com/a/xyz", task.InvitationURL)
}

func TestGradeSyncRunRepositoryListsNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGradeSyncRunRepository(db)
	ctx := context.Background()

	first := models.GradeSyncRun{AssignmentID: "42", Issuer: "https://lms.example.com", Total: 2, Submitted: 2, Scores: datatypes.JSON(`[]`), StartedAt: time.Now().Add(-time.Hour)}
	second := models.GradeSyncRun{AssignmentID: "42", Issuer: "https://lms.example.com", Total: 2, Submitted: 1, Failed: 1, Scores: datatypes.JSON(`[]`), StartedAt: time.Now()}
	other := models.GradeSyncRun{AssignmentID: "43", Issuer: "https://lms.example.com", Scores: datatypes.JSON(`[]`), StartedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, &first))
	require.NoError(t, repo.Create(ctx, &second))
	require.NoError(t, repo.Create(ctx, &other))

	runs, err := repo.ListByAssignment(ctx, "42", "https://lms.example.com", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, second.ID, runs[0].ID)
	require.True(t, runs[0].Partial())
}
