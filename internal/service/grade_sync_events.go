package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// GradeSyncEvent announces a finished reconciliation run.
type GradeSyncEvent struct {
	RunID        uint      `json:"run_id"`
	AssignmentID string    `json:"assignment_id"`
	Issuer       string    `json:"issuer"`
	LineItemID   string    `json:"line_item_id"`
	Total        int       `json:"total"`
	Submitted    int       `json:"submitted"`
	Failed       int       `json:"failed"`
	FinishedAt   time.Time `json:"finished_at"`
}

// GradeSyncPublisher fans reconciliation events out to other services.
type GradeSyncPublisher interface {
	Publish(ctx context.Context, event GradeSyncEvent) error
}

type gradeSyncPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
}

// NewGradeSyncPublisher publishes on a Redis channel and a NATS subject. Either
// transport may be nil.
func NewGradeSyncPublisher(redisClient *redis.Client, natsConn *nats.Conn, subject string, logger zerolog.Logger) GradeSyncPublisher {
	return &gradeSyncPublisher{
		redis:        redisClient,
		redisChannel: subject,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "grade_sync_publisher").Logger(),
	}
}

func (p *gradeSyncPublisher) Publish(ctx context.Context, event GradeSyncEvent) error {
	if p.natsSubject == "" {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode grade sync event: %w", err)
	}

	var errs []error
	if p.redis != nil {
		if err := p.redis.Publish(ctx, p.redisChannel, payload).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis publish: %w", err))
		}
	}
	if p.nats != nil {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			errs = append(errs, fmt.Errorf("nats publish: %w", err))
		}
	}

	if len(errs) == 0 {
		p.logger.Debug().Uint("run_id", event.RunID).Str("assignment_id", event.AssignmentID).Msg("grade sync event published")
	}

	return errors.Join(errs...)
}
