package lti

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stateKeyPrefix   = "lti:state:"
	nonceKeyPrefix   = "lti:nonce:"
	sessionKeyPrefix = "lti:launch:"
	tokenKeyPrefix   = "lti:token:"
)

// loginState is what the login step remembers for the matching launch.
type loginState struct {
	Nonce    string `json:"nonce"`
	Issuer   string `json:"iss"`
	ClientID string `json:"client_id"`
}

// Store keeps short-lived LTI protocol state in Redis.
type Store struct {
	client *redis.Client
}

// NewStore wraps a Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) saveState(ctx context.Context, state string, value loginState, ttl time.Duration) error {
	return s.setJSON(ctx, stateKeyPrefix+state, value, ttl)
}

// takeState returns and deletes the login state so each state is usable once.
func (s *Store) takeState(ctx context.Context, state string) (loginState, error) {
	raw, err := s.client.GetDel(ctx, stateKeyPrefix+state).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return loginState{}, ErrUnknownState
		}
		return loginState{}, fmt.Errorf("read login state: %w", err)
	}

	var value loginState
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return loginState{}, fmt.Errorf("decode login state: %w", err)
	}

	return value, nil
}

// claimNonce records the nonce and fails if it was already used.
func (s *Store) claimNonce(ctx context.Context, nonce string, ttl time.Duration) error {
	ok, err := s.client.SetNX(ctx, nonceKeyPrefix+nonce, 1, ttl).Result()
	if err != nil {
		return fmt.Errorf("record nonce: %w", err)
	}
	if !ok {
		return ErrNonceReplayed
	}
	return nil
}

func (s *Store) saveSession(ctx context.Context, id string, token LaunchToken, ttl time.Duration) error {
	return s.setJSON(ctx, sessionKeyPrefix+id, token, ttl)
}

func (s *Store) loadSession(ctx context.Context, id string) (LaunchToken, error) {
	var token LaunchToken
	found, err := s.getJSON(ctx, sessionKeyPrefix+id, &token)
	if err != nil {
		return LaunchToken{}, fmt.Errorf("read launch session: %w", err)
	}
	if !found {
		return LaunchToken{}, ErrSessionNotFound
	}
	return token, nil
}

func (s *Store) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, payload, ttl).Err()
}

func (s *Store) getJSON(ctx context.Context, key string, target any) (bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return false, err
	}
	return true, nil
}
