package storage

import (
	"sort"
	"sync"

	"github.com/lehigh-university-libraries/shelfsense/internal/scan"
)

// SessionStore keeps the live scan sessions in memory
type SessionStore struct {
	sessions map[string]*scan.Session
	mu       sync.RWMutex
}

func New() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*scan.Session),
	}
}

func (s *SessionStore) Get(sessionID string) (*scan.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	return session, exists
}

func (s *SessionStore) Set(sessionID string, session *scan.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = session
}

// List returns the sessions, oldest first
func (s *SessionStore) List() []*scan.Session {
	s.mu.RLock()
	result := make([]*scan.Session, 0, len(s.sessions))
	for _, v := range s.sessions {
		result = append(result, v)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].Snapshot(), result[j].Snapshot()
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return result
}

// Delete removes the session and returns it so the caller can stop it
func (s *SessionStore) Delete(sessionID string) (*scan.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, exists := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	return session, exists
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
