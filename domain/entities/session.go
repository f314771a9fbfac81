package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/jurubahasa/domain/langcode"
)

// DefaultSessionTTL is how long an idle session stays active.
const DefaultSessionTTL = 2 * time.Hour

// SessionStatus represents the status of a session
type SessionStatus string

const (
	SessionStatusActive     SessionStatus = "active"
	SessionStatusExpired    SessionStatus = "expired"
	SessionStatusTerminated SessionStatus = "terminated"
)

// SessionStats are the per-session counters. No utterance text is kept.
type SessionStats struct {
	Utterances        int `json:"utterances" bson:"utterances"`
	Translated        int `json:"translated" bson:"translated"`
	Suppressed        int `json:"suppressed" bson:"suppressed"`
	SynthesisFailures int `json:"synthesis_failures" bson:"synthesis_failures"`
}

// InterpreterSession is one interpreted conversation in a room.
type InterpreterSession struct {
	ID           string        `json:"id" bson:"_id"`
	Room         string        `json:"room_name" bson:"room_name"`
	Languages    langcode.Pair `json:"languages" bson:"languages"`
	Status       SessionStatus `json:"status" bson:"status"`
	CreatedAt    time.Time     `json:"created_at" bson:"created_at"`
	LastActiveAt time.Time     `json:"last_active_at" bson:"last_active_at"`
	ExpiresAt    time.Time     `json:"expires_at" bson:"expires_at"`
	EndedAt      *time.Time    `json:"ended_at,omitempty" bson:"ended_at,omitempty"`
	Stats        SessionStats  `json:"stats" bson:"stats"`
	IdleTTL      time.Duration `json:"-" bson:"idle_ttl"`
}

// NewInterpreterSession creates an active session for room. A non-positive
// ttl falls back to DefaultSessionTTL.
func NewInterpreterSession(room string, languages langcode.Pair, ttl time.Duration) *InterpreterSession {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := time.Now()
	return &InterpreterSession{
		ID:           uuid.NewString(),
		Room:         room,
		Languages:    languages,
		Status:       SessionStatusActive,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(ttl),
		IdleTTL:      ttl,
	}
}

// Touch updates the last active timestamp and extends expiration
func (s *InterpreterSession) Touch() {
	ttl := s.IdleTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s.LastActiveAt = time.Now()
	s.ExpiresAt = s.LastActiveAt.Add(ttl)
}

// RecordStats replaces the counters with the latest snapshot.
func (s *InterpreterSession) RecordStats(stats SessionStats) {
	s.Stats = stats
	s.Touch()
}

// IsExpired checks if the session has expired
func (s *InterpreterSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt) || s.Status != SessionStatusActive
}

// Terminate marks the session as terminated
func (s *InterpreterSession) Terminate() {
	if s.Status != SessionStatusActive {
		return
	}
	now := time.Now()
	s.Status = SessionStatusTerminated
	s.EndedAt = &now
	s.LastActiveAt = now
}

// Expire marks the session as expired
func (s *InterpreterSession) Expire() {
	if s.Status != SessionStatusActive {
		return
	}
	now := time.Now()
	s.Status = SessionStatusExpired
	s.EndedAt = &now
}

// Validate validates the session data
func (s *InterpreterSession) Validate() error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.Room == "" {
		return errors.New("room_name is required")
	}
	if s.Languages.ProviderA == "" || s.Languages.ProviderB == "" {
		return errors.New("languages are required")
	}

	switch s.Status {
	case SessionStatusActive, SessionStatusExpired, SessionStatusTerminated:
	default:
		return errors.New("invalid session status")
	}

	return nil
}
