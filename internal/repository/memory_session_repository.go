package repository

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/interview-slots/internal/models"
	appErrors "github.com/noah-isme/interview-slots/pkg/errors"
)

type memorySession struct {
	session   models.WorkflowSession
	expiresAt time.Time
}

// MemorySessionStore holds workflow sessions in process memory with the same
// expiry rules as the Redis store. Sessions do not survive a restart and are
// not shared between instances.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[int64]memorySession
	ttl      time.Duration
	now      func() time.Time
}

// NewMemorySessionStore constructs an in-process session store. A zero ttl keeps sessions until deleted.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[int64]memorySession),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns a copy of the candidate's session. appErrors.ErrCacheMiss means there is none.
func (s *MemorySessionStore) Get(_ context.Context, candidateID int64) (*models.WorkflowSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[candidateID]
	if !ok {
		return nil, appErrors.ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		delete(s.sessions, candidateID)
		return nil, appErrors.ErrCacheMiss
	}
	session := entry.session
	return &session, nil
}

// Save stores a copy of the session and refreshes its expiry.
func (s *MemorySessionStore) Save(_ context.Context, session *models.WorkflowSession) error {
	if session == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memorySession{session: *session}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}
	s.sessions[session.CandidateID] = entry
	return nil
}

// Delete drops the candidate's session.
func (s *MemorySessionStore) Delete(_ context.Context, candidateID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, candidateID)
	return nil
}
