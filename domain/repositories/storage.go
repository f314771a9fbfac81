package repositories

import (
	"context"
	"errors"

	"github.com/satriahrh/jurubahasa/domain/entities"
)

// ErrSessionNotFound is returned when no session has the requested ID.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository stores interpreter session records
type SessionRepository interface {
	Create(ctx context.Context, session *entities.InterpreterSession) error
	GetByID(ctx context.Context, id string) (*entities.InterpreterSession, error)
	Update(ctx context.Context, session *entities.InterpreterSession) error
	// ExpireSessions marks active sessions past their expiry as expired and
	// returns how many were changed.
	ExpireSessions(ctx context.Context) (int, error)
}
