package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"assessment-engine/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions own timers and subscriber channels, so the live objects stay in a
//     local map on the instance that hosts the websocket.
//   - Redis records session liveness (assessment:session:{id} -> survey slug) so
//     other instances and operators can see which sessions are open.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

var _ app.SessionToucher = (*SessionStore)(nil)

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(session.ID()), session.SurveySlug(), s.ttl).Err()
}

func (s *SessionStore) Get(id string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	_ = s.client.Del(context.Background(), s.key(id)).Err()
}

// Touch extends the liveness marker of a session. The service calls it on every candidate action.
func (s *SessionStore) Touch(ctx context.Context, id string) error {
	if s.ttl <= 0 {
		return nil
	}
	return s.client.Expire(ctx, s.key(id), s.ttl).Err()
}

func (s *SessionStore) key(id string) string {
	return "assessment:session:" + id
}
