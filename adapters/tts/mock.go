package tts

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/jurubahasa/domain/entities"
	"github.com/satriahrh/jurubahasa/domain/repositories"
)

const (
	mockSampleRate   = 16000
	mockBytesPerChar = 100
)

// MockTextToSpeech synthesizes a deterministic byte pattern instead of
// speech, for running the server without a synthesis account.
type MockTextToSpeech struct {
	chunkSize int
	logger    *zap.Logger
}

var _ repositories.TextToSpeech = (*MockTextToSpeech)(nil)

// NewMockTextToSpeech creates a new mock text-to-speech service
func NewMockTextToSpeech(logger *zap.Logger) *MockTextToSpeech {
	return &MockTextToSpeech{
		chunkSize: defaultChunkSize,
		logger:    logger,
	}
}

// Synthesize implements repositories.TextToSpeech. The audio is PCM sized
// after the text, delivered in chunks.
func (t *MockTextToSpeech) Synthesize(ctx context.Context, text string, opts ...repositories.SynthesizeOption) (repositories.AudioStream, error) {
	session := entities.AudioSession{
		ID:          uuid.NewString(),
		SampleRate:  mockSampleRate,
		NumChannels: 1,
		MimeType:    "audio/pcm",
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return newEmptyStream(session), nil
	}

	t.logger.Debug("Processing mock text-to-speech",
		zap.String("audioSessionID", session.ID),
		zap.Int("textLength", len(text)))

	audio := make([]byte, len(text)*mockBytesPerChar)
	for i := range audio {
		audio[i] = byte(i % 256)
	}

	chunks := make(chan []byte, len(audio)/t.chunkSize+1)
	for start := 0; start < len(audio); start += t.chunkSize {
		chunks <- audio[start:min(start+t.chunkSize, len(audio))]
	}
	close(chunks)

	return &bufferedStream{session: session, chunks: chunks}, nil
}

// Close implements repositories.TextToSpeech.
func (t *MockTextToSpeech) Close() error {
	return nil
}

// bufferedStream serves chunks that were produced up front.
type bufferedStream struct {
	session entities.AudioSession
	chunks  chan []byte
}

func (s *bufferedStream) Session() entities.AudioSession { return s.session }
func (s *bufferedStream) Chunks() <-chan []byte          { return s.chunks }
func (s *bufferedStream) Err() error                     { return nil }
func (s *bufferedStream) Close() error                   { return nil }
