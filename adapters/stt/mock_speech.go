package stt

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/jurubahasa/domain/repositories"
)

// mockPhrases are canned transcriptions per primary language subtag, short
// first.
var mockPhrases = map[string][2]string{
	"en": {"Hello!", "Hello, how are you doing today?"},
	"fr": {"Bonjour !", "Bonjour, comment allez-vous aujourd'hui ?"},
	"es": {"¡Hola!", "Hola, ¿cómo estás hoy?"},
	"de": {"Hallo!", "Hallo, wie geht es Ihnen heute?"},
	"id": {"Halo!", "Halo, apa kabar hari ini?"},
	"ja": {"こんにちは！", "こんにちは、今日はお元気ですか？"},
}

// MockSpeechToText is a placeholder recognizer that answers with a canned
// phrase in the configured primary language.
type MockSpeechToText struct {
	logger *zap.Logger
}

// MockSpeechToTextStream is a mock implementation of streaming speech recognition
type MockSpeechToTextStream struct {
	logger   *zap.Logger
	language string

	mu    sync.Mutex
	total int
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{
		logger: logger,
	}
}

var _ repositories.SpeechToText = (*MockSpeechToText)(nil)

// InitTranscribeStreaming creates a new mock streaming session
func (s *MockSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	s.logger.Info("Initializing mock streaming transcription",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding),
		zap.String("language", config.Language),
		zap.Strings("alternatives", config.AlternativeLanguages))

	return &MockSpeechToTextStream{
		logger:   s.logger,
		language: config.Language,
	}, nil
}

// Stream accumulates the size of the received audio
func (m *MockSpeechToTextStream) Stream(data []byte) error {
	m.mu.Lock()
	m.total += len(data)
	m.mu.Unlock()
	return nil
}

// End returns the mock transcription result
func (m *MockSpeechToTextStream) End() (string, error) {
	m.mu.Lock()
	total := m.total
	m.mu.Unlock()

	if total == 0 {
		return "", ErrNoAudio
	}

	transcription := mockTranscription(m.language, total)
	m.logger.Debug("Ending mock transcription stream",
		zap.Int("audioSize", total),
		zap.String("result", transcription))
	return transcription, nil
}

// TranscribeAudio implements repositories.SpeechToText
func (s *MockSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	s.logger.Info("Processing speech-to-text",
		zap.Int("audioSize", len(audioData)),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding))

	if len(audioData) == 0 {
		return "", ErrNoAudio
	}
	return mockTranscription(config.Language, len(audioData)), nil
}

// mockTranscription picks the long phrase once more than 5000 bytes arrived.
func mockTranscription(language string, size int) string {
	primary := strings.ToLower(strings.TrimSpace(language))
	if i := strings.IndexAny(primary, "-_"); i > 0 {
		primary = primary[:i]
	}

	phrases, ok := mockPhrases[primary]
	if !ok {
		phrases = mockPhrases["en"]
	}
	if size > 5000 {
		return phrases[1]
	}
	return phrases[0]
}
