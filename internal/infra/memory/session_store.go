package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.GameSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domain.GameSession),
	}
}

func (s *SessionStore) Create(_ context.Context, session domain.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.Code]; ok {
		return domain.ErrCodeTaken
	}
	s.sessions[session.Code] = session
	return nil
}

func (s *SessionStore) Get(_ context.Context, code string) (domain.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[code]
	if !ok {
		return domain.GameSession{}, domain.ErrGameNotFound
	}
	return session, nil
}

func (s *SessionStore) CompareAndSwap(_ context.Context, expectedVersion int64, next domain.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sessions[next.Code]
	if !ok {
		return domain.ErrGameNotFound
	}
	if cur.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	s.sessions[next.Code] = next
	return nil
}

// read runs fn while holding the read lock, so no CompareAndSwap can land
// until fn returns.
func (s *SessionStore) read(code string, fn func(session domain.GameSession, found bool) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, found := s.sessions[code]
	return fn(session, found)
}

func (s *SessionStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[code]; !ok {
		return domain.ErrGameNotFound
	}
	delete(s.sessions, code)
	return nil
}

func (s *SessionStore) ListExpired(_ context.Context, endedBefore, idleBefore time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var codes []string
	for code, session := range s.sessions {
		if expired(session, endedBefore, idleBefore) {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

func expired(s domain.GameSession, endedBefore, idleBefore time.Time) bool {
	if s.EndedAt != nil && s.EndedAt.Before(endedBefore) {
		return true
	}
	return s.UpdatedAt.Before(idleBefore)
}
