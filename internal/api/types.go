package api

import (
	"time"

	"github.com/satriahrh/jurubahasa/domain/entities"
	"github.com/satriahrh/jurubahasa/domain/langcode"
)

// CreateSessionRequest represents the request payload for starting an
// interpreter session. Languages is the "lang1,lang2" form and is used when
// Lang1 and Lang2 are both empty.
type CreateSessionRequest struct {
	RoomName  string `json:"room_name"`
	Lang1     string `json:"lang1"`
	Lang2     string `json:"lang2"`
	Languages string `json:"languages"`
}

// CreateSessionResponse represents the response payload for a started session
type CreateSessionResponse struct {
	SessionID    string        `json:"session_id"`
	RoomName     string        `json:"room_name"`
	Languages    langcode.Pair `json:"languages"`
	Token        string        `json:"token"`
	ExpiresAt    time.Time     `json:"expires_at"`
	WebSocketURL string        `json:"websocket_url"`
}

// SessionResponse describes a stored session and whether it is connected.
type SessionResponse struct {
	*entities.InterpreterSession
	Connected bool `json:"connected"`
}

// LanguagesResponse lists the language codes with a known provider mapping.
type LanguagesResponse struct {
	Languages []langcode.Entry `json:"languages"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
