// Package handoff signs the short-lived tokens handed to the front end on redirect.
package handoff

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates the token failed signature or expiry checks.
var ErrInvalidToken = errors.New("invalid handoff token")

// Signer issues HS256 tokens whose claims are the payload fields plus iat/exp.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner constructs a signer using the shared front-end secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), now: time.Now}
}

// Sign serialises payload into a token valid for ttl.
func (s *Signer) Sign(payload any, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("handoff secret not configured")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("handoff ttl must be positive, got %s", ttl)
	}

	claims := jwt.MapClaims{}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("encode handoff payload: %w", err)
		}
		if err := json.Unmarshal(raw, &claims); err != nil {
			return "", fmt.Errorf("handoff payload must be an object: %w", err)
		}
	}

	issuedAt := s.now()
	claims["iat"] = issuedAt.Unix()
	claims["exp"] = issuedAt.Add(ttl).Unix()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign handoff token: %w", err)
	}

	return signed, nil
}

// Parse verifies a token produced by Sign and returns its claims.
func (s *Signer) Parse(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return claims, nil
}
