package dto

import (
	"net/url"
	"strings"
)

// Front-end routes a launch can land on.
const (
	DestinationRepositories = "/repositorios"
	DestinationRoot         = "/"
	DestinationUnavailable  = "/NoDisponible"
	DestinationFeedback     = "/feedback"
	DestinationInvitation   = "/invitacion"
	DestinationError        = "/error"
)

// LaunchRedirect is where the browser is sent after a launch. An empty Token
// means the destination takes no token parameter.
type LaunchRedirect struct {
	Destination string
	Token       string
}

// LinkedTaskPayload is handed to instructors whose assignment is already linked.
type LinkedTaskPayload struct {
	IDClassroom  string `json:"idclassroom"`
	IDTaskGithub string `json:"idtaskgithub"`
	OrgID        string `json:"orgId"`
	OrgName      string `json:"orgName"`
	IDTaskMoodle string `json:"idtaskmoodle"`
	IsMoodle     bool   `json:"isMoodle"`
	ReturnURL    string `json:"url_return"`
	Ltik         string `json:"ltik"`
}

// TaskSetupPayload starts the task linking flow for an instructor.
type TaskSetupPayload struct {
	Email        string `json:"email"`
	IsMoodle     bool   `json:"isMoodle"`
	CourseID     string `json:"courseId"`
	AssignmentID string `json:"assignmentId"`
	Issuer       string `json:"issuer"`
}

// StudentOnboardingPayload flags a student without a classroom account.
type StudentOnboardingPayload struct {
	IsMoodle        bool `json:"isMoodle"`
	IsStudentMoodle bool `json:"isStudentMoodle"`
}

// FeedbackPayload lets a student view the evaluation of their repository.
type FeedbackPayload struct {
	Email           string `json:"email"`
	IsMoodle        bool   `json:"isMoodle"`
	IDTaskClassroom string `json:"idTaskClassroom"`
	Name            string `json:"name"`
}

// InvitationPayload carries the classroom invitation for a student who has not submitted yet.
type InvitationPayload struct {
	IsMoodle      bool   `json:"isMoodle"`
	URLInvitation string `json:"urlInvitation"`
	Name          string `json:"name"`
}

// URL joins the destination onto the front-end base and appends the token query parameter.
func (r LaunchRedirect) URL(base string) string {
	target := strings.TrimSuffix(base, "/") + r.Destination
	if r.Token == "" {
		return target
	}
	return target + "?" + url.Values{"token": {r.Token}}.Encode()
}
