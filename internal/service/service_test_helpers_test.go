package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Roberto640Alvarado/sae-LTI/internal/lti"
	"github.com/Roberto640Alvarado/sae-LTI/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type assignmentKey struct {
	assignmentID string
	issuer       string
}

type feedbackKey struct {
	email        string
	idTaskGithub string
}

// fakeValidation is an in-memory ValidationService.
type fakeValidation struct {
	mu          sync.Mutex
	links       map[assignmentKey]models.TaskLink
	users       map[string]bool
	feedback    map[feedbackKey]models.Feedback
	invitations map[string]string
	failLinks   error
	failLookups map[string]error
	lookups     int

	failInvitations error
}

func newFakeValidation() *fakeValidation {
	return &fakeValidation{
		links:       make(map[assignmentKey]models.TaskLink),
		users:       make(map[string]bool),
		feedback:    make(map[feedbackKey]models.Feedback),
		invitations: make(map[string]string),
		failLookups: make(map[string]error),
	}
}

func (f *fakeValidation) HasTaskLink(ctx context.Context, assignmentID, issuer string) (bool, error) {
	if f.failLinks != nil {
		return false, f.failLinks
	}
	_, ok := f.links[assignmentKey{assignmentID, issuer}]
	return ok, nil
}

func (f *fakeValidation) GetTaskLinkByMoodleTask(ctx context.Context, assignmentID, issuer string) (models.TaskLink, error) {
	if f.failLinks != nil {
		return models.TaskLink{}, f.failLinks
	}
	link, ok := f.links[assignmentKey{assignmentID, issuer}]
	if !ok {
		return models.TaskLink{}, ErrTaskLinkNotFound
	}
	return link, nil
}

func (f *fakeValidation) HasUser(ctx context.Context, email string) (bool, error) {
	return f.users[strings.ToLower(email)], nil
}

func (f *fakeValidation) HasFeedback(ctx context.Context, email, assignmentID, issuer string) (bool, error) {
	link, ok := f.links[assignmentKey{assignmentID, issuer}]
	if !ok {
		return false, nil
	}
	_, ok = f.feedback[feedbackKey{strings.ToLower(email), link.IDTaskGithubClassroom}]
	return ok, nil
}

func (f *fakeValidation) GetFeedbackByEmailAndIDTaskGithub(ctx context.Context, email, idTaskGithub string) (models.Feedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++

	if err, ok := f.failLookups[email]; ok {
		return models.Feedback{}, err
	}
	feedback, ok := f.feedback[feedbackKey{strings.ToLower(email), idTaskGithub}]
	if !ok {
		return models.Feedback{}, ErrFeedbackNotFound
	}
	return feedback, nil
}

func (f *fakeValidation) GetInvitationURLByMoodleTask(ctx context.Context, assignmentID, issuer string) (string, error) {
	if f.failInvitations != nil {
		return "", f.failInvitations
	}
	link, ok := f.links[assignmentKey{assignmentID, issuer}]
	if !ok {
		return "", ErrTaskLinkNotFound
	}
	url, ok := f.invitations[link.IDTaskGithubClassroom]
	if !ok {
		return "", ErrInvitationNotFound
	}
	return url, nil
}

// fakePlatformServices records gradebook traffic.
type fakePlatformServices struct {
	members      []lti.Member
	membersErr   error
	lineItems    []lti.LineItem
	lineItemsErr error
	created      []lti.LineItem
	listCalls    int
	submitted    []lti.Score
	submittedTo  []string
	failSubmit   map[string]error
}

func (f *fakePlatformServices) GetMembers(ctx context.Context, launch lti.LaunchToken, membershipsURL string) ([]lti.Member, error) {
	if f.membersErr != nil {
		return nil, f.membersErr
	}
	return f.members, nil
}

func (f *fakePlatformServices) GetLineItems(ctx context.Context, launch lti.LaunchToken, resourceLinkID string) ([]lti.LineItem, error) {
	f.listCalls++
	if f.lineItemsErr != nil {
		return nil, f.lineItemsErr
	}
	return f.lineItems, nil
}

func (f *fakePlatformServices) CreateLineItem(ctx context.Context, launch lti.LaunchToken, item lti.LineItem) (lti.LineItem, error) {
	item.ID = "https://lms.example.com/lineitems/created"
	f.created = append(f.created, item)
	f.lineItems = append(f.lineItems, item)
	return item, nil
}

func (f *fakePlatformServices) SubmitScore(ctx context.Context, launch lti.LaunchToken, lineItemID string, score lti.Score) error {
	if err, ok := f.failSubmit[score.UserID]; ok {
		return err
	}
	f.submitted = append(f.submitted, score)
	f.submittedTo = append(f.submittedTo, lineItemID)
	return nil
}

type fakeResolver struct {
	launches map[string]lti.Launch
}

func (f fakeResolver) Resolve(ctx context.Context, ltik string) (lti.Launch, error) {
	launch, ok := f.launches[ltik]
	if !ok {
		return lti.Launch{}, lti.ErrInvalidLtik
	}
	return launch, nil
}

type failingSigner struct{}

func (failingSigner) Sign(payload any, ttl time.Duration) (string, error) {
	return "", errors.New("signing unavailable")
}
