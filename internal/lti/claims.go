package lti

import (
	"github.com/golang-jwt/jwt/v5"
)

// Launch message constants accepted by the tool.
const (
	MessageTypeResourceLink = "LtiResourceLinkRequest"
	Version13               = "1.3.0"
)

// AGS and NRPS OAuth scopes.
const (
	ScopeLineItem         = "https://purl.imsglobal.org/spec/lti-ags/scope/lineitem"
	ScopeLineItemReadOnly = "https://purl.imsglobal.org/spec/lti-ags/scope/lineitem.readonly"
	ScopeScore            = "https://purl.imsglobal.org/spec/lti-ags/scope/score"
	ScopeMemberships      = "https://purl.imsglobal.org/spec/lti-nrps/scope/contextmembership.readonly"
)

// idTokenClaims is the wire form of a platform id_token.
type idTokenClaims struct {
	jwt.RegisteredClaims
	AuthorizedParty    string             `json:"azp,omitempty"`
	Nonce              string             `json:"nonce"`
	Name               string             `json:"name,omitempty"`
	GivenName          string             `json:"given_name,omitempty"`
	FamilyName         string             `json:"family_name,omitempty"`
	Email              string             `json:"email,omitempty"`
	MessageType        string             `json:"https://purl.imsglobal.org/spec/lti/claim/message_type"`
	Version            string             `json:"https://purl.imsglobal.org/spec/lti/claim/version"`
	DeploymentID       string             `json:"https://purl.imsglobal.org/spec/lti/claim/deployment_id"`
	TargetLinkURI      string             `json:"https://purl.imsglobal.org/spec/lti/claim/target_link_uri,omitempty"`
	ResourceLink       ResourceClaim      `json:"https://purl.imsglobal.org/spec/lti/claim/resource_link"`
	Roles              []string           `json:"https://purl.imsglobal.org/spec/lti/claim/roles"`
	Context            ContextClaim       `json:"https://purl.imsglobal.org/spec/lti/claim/context"`
	LaunchPresentation LaunchPresentation `json:"https://purl.imsglobal.org/spec/lti/claim/launch_presentation"`
	Endpoint           EndpointClaim      `json:"https://purl.imsglobal.org/spec/lti-ags/claim/endpoint"`
	NamesRoles         NamesRolesClaim    `json:"https://purl.imsglobal.org/spec/lti-nrps/claim/namesroleservice"`
}

func (c idTokenClaims) launchToken(clientID string) LaunchToken {
	return LaunchToken{
		Issuer:       c.Issuer,
		ClientID:     clientID,
		DeploymentID: c.DeploymentID,
		UserID:       c.Subject,
		UserInfo: UserInfo{
			Name:       c.Name,
			GivenName:  c.GivenName,
			FamilyName: c.FamilyName,
			Email:      c.Email,
		},
		PlatformContext: PlatformContext{
			Roles:              c.Roles,
			Context:            c.Context,
			Resource:           c.ResourceLink,
			Endpoint:           c.Endpoint,
			NamesRoles:         c.NamesRoles,
			LaunchPresentation: c.LaunchPresentation,
			TargetLinkURI:      c.TargetLinkURI,
			MessageType:        c.MessageType,
			Version:            c.Version,
		},
	}
}

// ltikClaims is the session token handed to the front end after a launch.
type ltikClaims struct {
	jwt.RegisteredClaims
	ContextID string `json:"context_id,omitempty"`
}
