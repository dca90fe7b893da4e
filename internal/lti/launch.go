// Package lti implements the LTI 1.3 tool side: OIDC login initiation, launch
// validation, launch sessions, and the Names and Role Provisioning and
// Assignment and Grade Services clients.
package lti

import "strings"

// Role URI fragments matched against launch and roster roles.
const (
	RoleInstructor    = "#Instructor"
	RoleAdministrator = "#Administrator"
	RoleLearner       = "#Learner"
)

// RoleBucket is the routing class derived from the launch roles.
type RoleBucket string

const (
	BucketStaff   RoleBucket = "staff"
	BucketStudent RoleBucket = "student"
	BucketOther   RoleBucket = "other"
)

// UserInfo carries the identity claims of the launching user.
type UserInfo struct {
	Name       string `json:"name"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	Email      string `json:"email"`
}

// ContextClaim identifies the course the launch came from.
type ContextClaim struct {
	ID    string   `json:"id"`
	Label string   `json:"label,omitempty"`
	Title string   `json:"title,omitempty"`
	Type  []string `json:"type,omitempty"`
}

// ResourceClaim identifies the resource link (the LMS assignment).
type ResourceClaim struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// EndpointClaim holds the Assignment and Grade Services endpoints.
type EndpointClaim struct {
	Scope     []string `json:"scope,omitempty"`
	LineItems string   `json:"lineitems,omitempty"`
	LineItem  string   `json:"lineitem,omitempty"`
}

// NamesRolesClaim holds the Names and Role Provisioning endpoint.
type NamesRolesClaim struct {
	ContextMembershipsURL string   `json:"context_memberships_url,omitempty"`
	ServiceVersions       []string `json:"service_versions,omitempty"`
}

// LaunchPresentation holds presentation hints from the platform.
type LaunchPresentation struct {
	ReturnURL      string `json:"return_url,omitempty"`
	DocumentTarget string `json:"document_target,omitempty"`
	Locale         string `json:"locale,omitempty"`
}

// PlatformContext groups the LTI claims describing where the launch happened.
type PlatformContext struct {
	Roles              []string           `json:"roles"`
	Context            ContextClaim       `json:"context"`
	Resource           ResourceClaim      `json:"resource"`
	Endpoint           EndpointClaim      `json:"endpoint"`
	NamesRoles         NamesRolesClaim    `json:"namesRoles"`
	LaunchPresentation LaunchPresentation `json:"launchPresentation"`
	TargetLinkURI      string             `json:"targetLinkUri,omitempty"`
	MessageType        string             `json:"messageType"`
	Version            string             `json:"version"`
}

// LaunchToken is the validated content of an LTI resource link launch.
type LaunchToken struct {
	Issuer          string          `json:"iss"`
	ClientID        string          `json:"clientId"`
	DeploymentID    string          `json:"deploymentId"`
	UserID          string          `json:"userId"`
	UserInfo        UserInfo        `json:"userInfo"`
	PlatformContext PlatformContext `json:"platformContext"`
}

// Launch is a validated launch together with its session token.
type Launch struct {
	ID    string
	Ltik  string
	Token LaunchToken
}

// HasRole reports whether any launch role contains the fragment.
func (t LaunchToken) HasRole(fragment string) bool {
	return HasRole(t.PlatformContext.Roles, fragment)
}

// Bucket classifies the launching user for routing. Staff wins over learner.
func (t LaunchToken) Bucket() RoleBucket {
	switch {
	case t.HasRole(RoleInstructor), t.HasRole(RoleAdministrator):
		return BucketStaff
	case t.HasRole(RoleLearner):
		return BucketStudent
	default:
		return BucketOther
	}
}

// HasScope reports whether the platform granted an AGS scope for this launch.
func (t LaunchToken) HasScope(scope string) bool {
	for _, granted := range t.PlatformContext.Endpoint.Scope {
		if granted == scope {
			return true
		}
	}
	return false
}

// HasRole reports whether any role URI contains the fragment.
func HasRole(roles []string, fragment string) bool {
	for _, role := range roles {
		if strings.Contains(role, fragment) {
			return true
		}
	}
	return false
}

// IsLearnerRole matches roster roles by full-URI suffix or the short form.
func IsLearnerRole(role string) bool {
	return strings.HasSuffix(role, RoleLearner) || role == "Learner"
}
