package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/interview-slots/internal/models"
)

// RevokedChannel is where revocations are published for the front-end to relay.
const RevokedChannel = "booking:revoked"

// RevocationNotifier tells a candidate their booking was removed by an operator.
type RevocationNotifier interface {
	NotifyRevoked(ctx context.Context, revoked models.RevokedBooking) error
}

type revocationPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisRevocationNotifier publishes revocations on a Redis channel.
type RedisRevocationNotifier struct {
	client  revocationPublisher
	channel string
}

// NewRedisRevocationNotifier publishes on RevokedChannel.
func NewRedisRevocationNotifier(client revocationPublisher) *RedisRevocationNotifier {
	return &RedisRevocationNotifier{client: client, channel: RevokedChannel}
}

// NotifyRevoked implements RevocationNotifier.
func (n *RedisRevocationNotifier) NotifyRevoked(ctx context.Context, revoked models.RevokedBooking) error {
	payload, err := json.Marshal(revoked)
	if err != nil {
		return fmt.Errorf("marshal revocation: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish revocation: %w", err)
	}
	return nil
}

// LogRevocationNotifier only records revocations, for setups without Redis.
type LogRevocationNotifier struct {
	logger *zap.Logger
}

// NewLogRevocationNotifier builds a log-only notifier.
func NewLogRevocationNotifier(logger *zap.Logger) *LogRevocationNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogRevocationNotifier{logger: logger}
}

// NotifyRevoked implements RevocationNotifier.
func (n *LogRevocationNotifier) NotifyRevoked(_ context.Context, revoked models.RevokedBooking) error {
	n.logger.Info("booking revoked",
		zap.Int64("candidate_id", revoked.CandidateID),
		zap.Int64("department_id", revoked.Slot.DepartmentID),
		zap.String("date", revoked.Slot.Date),
		zap.String("start_time", revoked.Slot.StartTime))
	return nil
}
