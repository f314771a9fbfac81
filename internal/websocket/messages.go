package websocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/satriahrh/jurubahasa/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Inbound message types
const (
	MessageTypeUtterance      MessageType = "utterance"
	MessageTypeListeningStart MessageType = "listening_start"
	MessageTypeListeningEnd   MessageType = "listening_end"
	MessageTypePing           MessageType = "ping"
)

// Outbound message types
const (
	MessageTypeSessionReady  MessageType = "session_ready"
	MessageTypeTranscription MessageType = "transcription"
	MessageTypeSuppressed    MessageType = "suppressed"
	MessageTypeSpeakingStart MessageType = "speaking_start"
	MessageTypeSpeakingEnd   MessageType = "speaking_end"
	MessageTypeError         MessageType = "error"
	MessageTypePong          MessageType = "pong"
)

// Error codes carried by ErrorMessage
const (
	ErrorCodeInvalidMessage    = "invalid_message"
	ErrorCodeQueueFull         = "queue_full"
	ErrorCodeSynthesisFailed   = "synthesis_failed"
	ErrorCodeRecognition       = "recognition_failed"
	ErrorCodeNoSpeech          = "no_speech"
	ErrorCodeRecognizerMissing = "recognizer_unavailable"
	ErrorCodeSessionEnded      = "session_ended"
)

const (
	maxUtteranceLength = 5000
	minSampleRate      = 8000
	maxSampleRate      = 48000
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: time.Now().Format(time.RFC3339)}
}

// UtteranceMessage carries text recognized on the client.
type UtteranceMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// ListeningStartMessage opens a server-side recognition turn. Binary frames
// that follow carry the audio.
type ListeningStartMessage struct {
	BaseMessage
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
}

// ListeningEndMessage closes the current recognition turn.
type ListeningEndMessage struct {
	BaseMessage
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// LanguageInfo names one side of the session's pair.
type LanguageInfo struct {
	Code         string `json:"code"`
	ProviderCode string `json:"provider_code"`
	Name         string `json:"name"`
}

// SessionReadyMessage is sent once the mediator is running.
type SessionReadyMessage struct {
	BaseMessage
	SessionID string         `json:"session_id"`
	Room      string         `json:"room_name"`
	Languages []LanguageInfo `json:"languages"`
	Listening bool           `json:"server_recognition"`
}

// TranscriptionMessage reports the text recognized from streamed audio.
type TranscriptionMessage struct {
	BaseMessage
	SessionID    string `json:"session_id"`
	UtteranceSeq uint64 `json:"utterance_seq"`
	Text         string `json:"text"`
}

// SuppressedMessage tells the client an utterance produced no speech.
type SuppressedMessage struct {
	BaseMessage
	SessionID    string `json:"session_id"`
	UtteranceSeq uint64 `json:"utterance_seq"`
	Reason       string `json:"reason"`
}

// SpeakingStartMessage precedes the binary audio of one translation.
type SpeakingStartMessage struct {
	BaseMessage
	SessionID    string                `json:"session_id"`
	UtteranceSeq uint64                `json:"utterance_seq"`
	Translation  string                `json:"translation"`
	Audio        entities.AudioSession `json:"audio"`
}

// SpeakingEndMessage follows the last audio chunk of one translation.
type SpeakingEndMessage struct {
	BaseMessage
	SessionID      string `json:"session_id"`
	UtteranceSeq   uint64 `json:"utterance_seq"`
	AudioSessionID string `json:"audio_session_id"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code         string `json:"error_code"`
	Message      string `json:"message"`
	UtteranceSeq uint64 `json:"utterance_seq,omitempty"`
	Details      string `json:"details,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses an inbound text frame into its typed message.
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeUtterance:
		var msg UtteranceMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid utterance message: %w", err)
		}
		if err := v.validateUtterance(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeListeningStart:
		var msg ListeningStartMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid listening start message: %w", err)
		}
		if err := v.validateListeningStart(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeListeningEnd:
		var msg ListeningEndMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid listening end message: %w", err)
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

func (v *MessageValidator) validateUtterance(msg *UtteranceMessage) error {
	if strings.TrimSpace(msg.Text) == "" {
		return fmt.Errorf("text is required")
	}
	if len(msg.Text) > maxUtteranceLength {
		return fmt.Errorf("text must be at most %d bytes", maxUtteranceLength)
	}
	return nil
}

// validateListeningStart fills defaults and checks the audio format.
func (v *MessageValidator) validateListeningStart(msg *ListeningStartMessage) error {
	if msg.SampleRate == 0 {
		msg.SampleRate = 16000
	}
	if msg.SampleRate < minSampleRate || msg.SampleRate > maxSampleRate {
		return fmt.Errorf("sample_rate must be between %d and %d", minSampleRate, maxSampleRate)
	}

	if msg.Encoding == "" {
		msg.Encoding = "LINEAR16"
	}
	msg.Encoding = strings.ToUpper(msg.Encoding)

	validEncodings := map[string]bool{
		"LINEAR16": true, "FLAC": true, "MULAW": true, "OGG_OPUS": true, "WEBM_OPUS": true,
	}
	if !validEncodings[msg.Encoding] {
		return fmt.Errorf("encoding must be one of: LINEAR16, FLAC, MULAW, OGG_OPUS, WEBM_OPUS")
	}

	return nil
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: newBase(MessageTypePong),
		Data:        data,
	}
}
