package adapters

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/satriahrh/jurubahasa/domain/entities"
	"github.com/satriahrh/jurubahasa/domain/repositories"
)

// MemorySessionRepository is an in-memory SessionRepository, used when no
// MongoDB URI is configured. Records are copied on the way in and out so
// callers never share state with the store.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*entities.InterpreterSession // id -> session
}

var _ repositories.SessionRepository = (*MemorySessionRepository)(nil)

// NewMemorySessionRepository creates a new in-memory session repository
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[string]*entities.InterpreterSession),
	}
}

func cloneSession(session *entities.InterpreterSession) *entities.InterpreterSession {
	clone := *session
	if session.EndedAt != nil {
		endedAt := *session.EndedAt
		clone.EndedAt = &endedAt
	}
	return &clone
}

// Create implements repositories.SessionRepository
func (m *MemorySessionRepository) Create(ctx context.Context, session *entities.InterpreterSession) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if err := session.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[session.ID]; exists {
		return errors.New("session already exists")
	}
	m.sessions[session.ID] = cloneSession(session)
	return nil
}

// GetByID implements repositories.SessionRepository
func (m *MemorySessionRepository) GetByID(ctx context.Context, id string) (*entities.InterpreterSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[id]
	if !exists {
		return nil, repositories.ErrSessionNotFound
	}
	return cloneSession(session), nil
}

// Update implements repositories.SessionRepository
func (m *MemorySessionRepository) Update(ctx context.Context, session *entities.InterpreterSession) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if err := session.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[session.ID]; !exists {
		return repositories.ErrSessionNotFound
	}
	m.sessions[session.ID] = cloneSession(session)
	return nil
}

// ExpireSessions implements repositories.SessionRepository
func (m *MemorySessionRepository) ExpireSessions(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	count := 0
	for _, session := range m.sessions {
		if session.Status == entities.SessionStatusActive && now.After(session.ExpiresAt) {
			session.Expire()
			count++
		}
	}
	return count, nil
}

// Count returns the number of stored sessions
func (m *MemorySessionRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
