package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/interview-slots/internal/models"
	appErrors "github.com/noah-isme/interview-slots/pkg/errors"
)

const sessionKeyPrefix = "workflow:session:"

// SessionRepository keeps workflow sessions in Redis. Sessions expire on
// their own; losing one only restarts the dialog. Without a client, or while
// Redis rejects writes, sessions are held in process memory instead.
type SessionRepository struct {
	client *redis.Client
	local  *MemorySessionStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewSessionRepository constructs a session repository. A nil client keeps every session in process memory.
func NewSessionRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) *SessionRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRepository{client: client, local: NewMemorySessionStore(ttl), ttl: ttl, logger: logger}
}

// Get loads the candidate's session. appErrors.ErrCacheMiss means there is none.
func (r *SessionRepository) Get(ctx context.Context, candidateID int64) (*models.WorkflowSession, error) {
	if r.client == nil {
		return r.local.Get(ctx, candidateID)
	}

	key := sessionKey(candidateID)
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("redis get failed, reading local workflow session", zap.String("key", key), zap.Error(err))
		}
		return r.local.Get(ctx, candidateID)
	}

	var session models.WorkflowSession
	if err := json.Unmarshal(raw, &session); err != nil {
		r.logger.Warn("discarding unreadable workflow session", zap.String("key", key), zap.Error(err))
		return nil, appErrors.ErrCacheMiss
	}
	return &session, nil
}

// Save stores the session and refreshes its TTL.
func (r *SessionRepository) Save(ctx context.Context, session *models.WorkflowSession) error {
	if session == nil {
		return nil
	}
	if r.client == nil {
		return r.local.Save(ctx, session)
	}

	key := sessionKey(session.CandidateID)
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal workflow session %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, payload, r.ttl).Err(); err != nil {
		r.logger.Warn("redis set failed, keeping workflow session locally", zap.String("key", key), zap.Error(err))
		return r.local.Save(ctx, session)
	}
	return r.local.Delete(ctx, session.CandidateID)
}

// Delete drops the candidate's session.
func (r *SessionRepository) Delete(ctx context.Context, candidateID int64) error {
	if err := r.local.Delete(ctx, candidateID); err != nil {
		return err
	}
	if r.client == nil {
		return nil
	}

	key := sessionKey(candidateID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

func sessionKey(candidateID int64) string {
	return fmt.Sprintf("%s%d", sessionKeyPrefix, candidateID)
}
