package storage

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zeto-space/exoclassify/internal/acquisition"
	"github.com/zeto-space/exoclassify/internal/schema"
)

var (
	// ErrNotComplete is returned by Claim while answers are still being collected.
	ErrNotComplete = errors.New("session is still collecting parameters")
	// ErrClaimed is returned by Claim while another request is classifying the session.
	ErrClaimed = errors.New("session is already being classified")
)

// Session is one operator's acquisition session hosted by the server.
// Submissions to the same session are applied one at a time.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	acq       *acquisition.Session
	updatedAt time.Time
	claimed   bool
}

// Submit applies one answer under the session lock.
func (s *Session) Submit(raw string) ([]acquisition.Output, acquisition.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	outputs, err := s.acq.Submit(raw)
	s.updatedAt = time.Now()
	return outputs, s.acq.State(), err
}

// State returns a snapshot of the acquisition state.
func (s *Session) State() acquisition.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acq.State()
}

// Claim hands the completed record to exactly one caller. Later callers get
// ErrClaimed until Release is called.
func (s *Session) Claim() (schema.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed {
		return schema.Record{}, ErrClaimed
	}
	rec, ok := s.acq.State().Record()
	if !ok {
		return schema.Record{}, ErrNotComplete
	}
	s.claimed = true
	return rec, nil
}

// Release returns a claimed session so its record can be claimed again.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claimed = false
	s.updatedAt = time.Now()
}

// UpdatedAt is the time of the last submission, or creation.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

type SessionStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

func New() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session and stores it.
func (s *SessionStore) Create() *Session {
	now := time.Now()
	session := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		acq:       acquisition.NewSession(),
		updatedAt: now,
	}
	s.Set(session.ID, session)
	return session
}

func (s *SessionStore) Get(sessionID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	return session, exists
}

func (s *SessionStore) Set(sessionID string, session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = session
}

// GetAll returns every session, oldest first.
func (s *SessionStore) GetAll() []*Session {
	s.mu.RLock()
	result := make([]*Session, 0, len(s.sessions))
	for _, v := range s.sessions {
		result = append(result, v)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Prune drops sessions idle since before cutoff and returns how many went.
func (s *SessionStore) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, session := range s.sessions {
		if session.UpdatedAt().Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Len is the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
