package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/jurubahasa/domain/entities"
	"github.com/satriahrh/jurubahasa/domain/langcode"
	"github.com/satriahrh/jurubahasa/domain/repositories"
)

var (
	// ErrMissingFields is returned when a session request lacks a room or a language.
	ErrMissingFields = errors.New("room name and both languages are required")
	// ErrSessionInactive is returned when a terminated or expired session is joined.
	ErrSessionInactive = errors.New("session is no longer active")
)

// TranslatorFactory builds a translator for the pair lang1<->lang2.
type TranslatorFactory func(lang1, lang2 string) (repositories.Translator, error)

// SynthesizerFactory builds a synthesizer owned by a single session.
type SynthesizerFactory func() (repositories.TextToSpeech, error)

// InterpreterService manages interpreter session records and builds the
// per-session mediators.
type InterpreterService struct {
	sessions       repositories.SessionRepository
	newTranslator  TranslatorFactory
	newSynthesizer SynthesizerFactory
	recognizer     repositories.SpeechToText
	sessionTTL     time.Duration
	mediatorConfig MediatorConfig
	logger         *zap.Logger
}

// InterpreterServiceConfig holds the collaborators of an InterpreterService.
type InterpreterServiceConfig struct {
	Sessions       repositories.SessionRepository
	NewTranslator  TranslatorFactory
	NewSynthesizer SynthesizerFactory
	// Recognizer is optional; without it only text utterances are accepted.
	Recognizer     repositories.SpeechToText
	SessionTTL     time.Duration
	MediatorConfig MediatorConfig
}

// NewInterpreterService creates a new interpreter service
func NewInterpreterService(cfg InterpreterServiceConfig, logger *zap.Logger) *InterpreterService {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = entities.DefaultSessionTTL
	}
	return &InterpreterService{
		sessions:       cfg.Sessions,
		newTranslator:  cfg.NewTranslator,
		newSynthesizer: cfg.NewSynthesizer,
		recognizer:     cfg.Recognizer,
		sessionTTL:     ttl,
		mediatorConfig: cfg.MediatorConfig,
		logger:         logger,
	}
}

// SessionTTL is the idle lifetime given to new sessions.
func (s *InterpreterService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// StartSession validates the pair and stores a new active session for room.
func (s *InterpreterService) StartSession(ctx context.Context, room, lang1, lang2 string) (*entities.InterpreterSession, error) {
	room = strings.TrimSpace(room)
	if room == "" || strings.TrimSpace(lang1) == "" || strings.TrimSpace(lang2) == "" {
		return nil, ErrMissingFields
	}

	pair, err := langcode.NewPair(lang1, lang2)
	if err != nil {
		return nil, err
	}

	session := entities.NewInterpreterSession(room, pair, s.sessionTTL)
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	s.logger.Info("Interpreter session started",
		zap.String("sessionID", session.ID),
		zap.String("room", room),
		zap.String("languages", pair.String()),
		zap.String("lang1Name", langcode.DisplayName(pair.A)),
		zap.String("lang2Name", langcode.DisplayName(pair.B)))

	return session, nil
}

// GetSession returns the stored session with id.
func (s *InterpreterService) GetSession(ctx context.Context, id string) (*entities.InterpreterSession, error) {
	return s.sessions.GetByID(ctx, id)
}

// EndSession terminates the session and stores the final counters. Ending an
// already ended session is not an error.
func (s *InterpreterService) EndSession(ctx context.Context, id string, stats *entities.SessionStats) (*entities.InterpreterSession, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if stats != nil {
		session.Stats = *stats
	}
	session.Terminate()

	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to end session: %w", err)
	}

	s.logger.Info("Interpreter session ended",
		zap.String("sessionID", session.ID),
		zap.String("status", string(session.Status)),
		zap.Int("utterances", session.Stats.Utterances))

	return session, nil
}

// RecordActivity stores the latest counters and extends the session's expiry.
func (s *InterpreterService) RecordActivity(ctx context.Context, id string, stats entities.SessionStats) error {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if session.Status != entities.SessionStatusActive {
		return ErrSessionInactive
	}

	session.RecordStats(stats)
	return s.sessions.Update(ctx, session)
}

// OpenMediator builds a fresh translator and synthesizer for session and
// starts a mediator writing to output.
func (s *InterpreterService) OpenMediator(ctx context.Context, session *entities.InterpreterSession, output Output) (*Mediator, error) {
	if session.IsExpired() {
		return nil, ErrSessionInactive
	}

	translator, err := s.newTranslator(session.Languages.A, session.Languages.B)
	if err != nil {
		return nil, fmt.Errorf("failed to create translator: %w", err)
	}

	synthesizer, err := s.newSynthesizer()
	if err != nil {
		translator.Close()
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}

	return NewMediator(ctx, session.ID, translator, synthesizer, output, s.mediatorConfig, s.logger), nil
}

// Recognizer returns the configured speech recognizer, or nil.
func (s *InterpreterService) Recognizer() repositories.SpeechToText {
	return s.recognizer
}

// RecognitionConfig listens for both sides of the session's pair, with the
// first language as primary.
func RecognitionConfig(session *entities.InterpreterSession, sampleRate int, encoding string) repositories.AudioConfig {
	return repositories.AudioConfig{
		SampleRate:           sampleRate,
		Encoding:             encoding,
		Language:             session.Languages.A,
		AlternativeLanguages: []string{session.Languages.B},
	}
}
