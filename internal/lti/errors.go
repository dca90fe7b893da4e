package lti

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownPlatform indicates no registration matches the issuer and client id.
	ErrUnknownPlatform = errors.New("platform not registered")
	// ErrUnknownState indicates the launch state expired, was reused, or never existed.
	ErrUnknownState = errors.New("unknown launch state")
	// ErrStateMismatch indicates the state cookie does not match the posted state.
	ErrStateMismatch = errors.New("launch state does not match browser cookie")
	// ErrNonceReplayed indicates the id_token nonce was already consumed.
	ErrNonceReplayed = errors.New("nonce already used")
	// ErrInvalidIDToken indicates the id_token failed validation.
	ErrInvalidIDToken = errors.New("invalid id_token")
	// ErrInvalidLtik indicates a session token failed signature or expiry checks.
	ErrInvalidLtik = errors.New("invalid ltik")
	// ErrSessionNotFound indicates the launch session expired.
	ErrSessionNotFound = errors.New("launch session not found")
	// ErrMissingEndpoint indicates the launch lacks a service endpoint needed for the call.
	ErrMissingEndpoint = errors.New("launch does not expose the required service endpoint")
	// ErrRosterTruncated indicates the membership listing kept paging past the page limit.
	ErrRosterTruncated = errors.New("membership listing exceeds page limit")
)

// ServiceError is a non-2xx answer from a platform service.
type ServiceError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: platform responded %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s: platform responded %d: %s", e.Operation, e.StatusCode, e.Body)
}

func invalidIDToken(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidIDToken, reason)
}
