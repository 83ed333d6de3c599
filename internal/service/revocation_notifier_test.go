package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/interview-slots/internal/models"
)

type publishedMessage struct {
	channel string
	message interface{}
}

type recordingPublisher struct {
	published []publishedMessage
	err       error
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	p.published = append(p.published, publishedMessage{channel: channel, message: message})
	cmd := redis.NewIntCmd(ctx, "publish", channel, message)
	if p.err != nil {
		cmd.SetErr(p.err)
		return cmd
	}
	cmd.SetVal(1)
	return cmd
}

func TestRedisRevocationNotifierPublishesRevokedBooking(t *testing.T) {
	publisher := &recordingPublisher{}
	notifier := NewRedisRevocationNotifier(publisher)
	occupant := int64(100)

	err := notifier.NotifyRevoked(context.Background(), models.RevokedBooking{
		CandidateID: 100,
		Slot:        models.TimeSlot{ID: 4, DepartmentID: 1, Date: "2025-10-10", StartTime: "09:20", OccupantID: &occupant},
	})
	require.NoError(t, err)
	require.Len(t, publisher.published, 1)
	assert.Equal(t, "booking:revoked", publisher.published[0].channel)

	payload, ok := publisher.published[0].message.([]byte)
	require.True(t, ok, "payload is published as JSON bytes")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, float64(100), decoded["candidate_id"])
	slot, ok := decoded["slot"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(4), slot["id"])
	assert.Equal(t, "2025-10-10", slot["date"])
	assert.Equal(t, "09:20", slot["start_time"])
}

func TestRedisRevocationNotifierReturnsPublishError(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("connection refused")}
	notifier := NewRedisRevocationNotifier(publisher)

	err := notifier.NotifyRevoked(context.Background(), models.RevokedBooking{CandidateID: 100})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish revocation")
	assert.Len(t, publisher.published, 1)
}
