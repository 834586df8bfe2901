package agent

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// sessionState is the live state of one session: its metadata plus the
// conversation history fed back to the model on every turn.
type sessionState struct {
	meta     Session
	messages []chatMessage
}

// sessionStore keeps sessions in memory. Sessions do not survive a restart;
// the frontend creates a fresh one when its session is gone.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionState
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*sessionState)}
}

func (s *sessionStore) create(name string) Session {
	meta := Session{
		SessionID:   uuid.NewString(),
		SessionName: name,
		StartedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[meta.SessionID] = &sessionState{meta: meta}
	s.mu.Unlock()

	return meta
}

func (s *sessionStore) list() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Session, 0, len(s.sessions))
	for _, state := range s.sessions {
		result = append(result, state.meta)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result
}

func (s *sessionStore) delete(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sessionID]; !exists {
		return false
	}
	delete(s.sessions, sessionID)
	return true
}

// history returns a copy of the session's conversation so the turn loop can
// extend it without holding the lock.
func (s *sessionStore) history(sessionID string) ([]chatMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.sessions[sessionID]
	if !exists {
		return nil, false
	}
	history := make([]chatMessage, len(state.messages))
	copy(history, state.messages)
	return history, true
}

// commit replaces the session's conversation after a completed turn. A
// session deleted mid-turn stays deleted.
func (s *sessionStore) commit(sessionID string, messages []chatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, exists := s.sessions[sessionID]
	if !exists {
		return
	}
	state.messages = messages
	state.meta.TurnCount++
}
