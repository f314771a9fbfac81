package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/jurubahasa/domain/entities"
	"github.com/satriahrh/jurubahasa/domain/repositories"
	"github.com/satriahrh/jurubahasa/internal/config"
)

const (
	defaultAPIBaseURL      = "https://api.elevenlabs.io"
	defaultModelID         = "eleven_multilingual_v2" // Default model ID
	defaultMimeType        = "audio/mpeg"
	defaultSampleRate      = 44100
	defaultNumChannels     = 1
	defaultChunkSize       = 4096 // Read buffer for the streamed body
	defaultStability       = 0.5  // Default voice stability
	defaultSimilarityBoost = 0.75 // Default voice clarity/similarity_boost
	defaultTimeout         = 60 * time.Second
	streamBuffer           = 16
)

// ElevenLabsConfig holds configuration for the ElevenLabsTTS adapter
// Required fields:
// - APIKey: Your Eleven Labs API key
// - VoiceID: The voice to synthesize with
// Optional fields with defaults:
// - APIBaseURL: API host without the /v1 suffix (default: "https://api.elevenlabs.io")
// - ModelID: The model ID to use (default: "eleven_multilingual_v2")
// - OutputFormat: ElevenLabs output_format query value (default: unset)
// - MimeType: Accept header and fallback MIME (default: "audio/mpeg", "audio/pcm" for pcm formats)
// - SampleRate, NumChannels: Reported on every audio session (default: 44100, 1)
// - Stability, SimilarityBoost: Between 0 and 1 (default: 0.5, 0.75)
// - Style: Between 0 and 1 (default: 0)
// - DisableSpeakerBoost: Turns use_speaker_boost off
// - Timeout: Default per-call timeout, body included (default: 60s)
type ElevenLabsConfig struct {
	APIKey              string
	VoiceID             string
	APIBaseURL          string
	ModelID             string
	OutputFormat        string
	MimeType            string
	SampleRate          int
	NumChannels         int
	ChunkSize           int
	Stability           float64
	SimilarityBoost     float64
	Style               float64
	DisableSpeakerBoost bool
	Timeout             time.Duration
}

// ElevenLabsVoiceSettings represents voice settings for Eleven Labs API
type ElevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// ElevenLabsRequest represents the request payload for Eleven Labs TTS API
type ElevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	VoiceSettings ElevenLabsVoiceSettings `json:"voice_settings"`
}

// ElevenLabsTTS implements TextToSpeech using the Eleven Labs streaming API.
// One instance owns one pooled HTTP client.
type ElevenLabsTTS struct {
	apiKey        string
	apiBaseURL    string
	voiceID       string
	modelID       string
	outputFormat  string
	mimeType      string
	sampleRate    int
	numChannels   int
	chunkSize     int
	voiceSettings ElevenLabsVoiceSettings
	timeout       time.Duration
	client        *http.Client
	logger        *zap.Logger
}

// Ensure ElevenLabsTTS implements the TextToSpeech interface
var _ repositories.TextToSpeech = (*ElevenLabsTTS)(nil)

// ValidateElevenLabsConfig validates the ElevenLabsConfig
func ValidateElevenLabsConfig(cfg ElevenLabsConfig) error {
	if cfg.APIKey == "" {
		return errors.New("eleven labs API key is required")
	}

	if cfg.VoiceID == "" {
		return errors.New("eleven labs voice ID is required")
	}

	for name, value := range map[string]float64{
		"stability":        cfg.Stability,
		"similarity boost": cfg.SimilarityBoost,
		"style":            cfg.Style,
	} {
		if value < 0 || value > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, value)
		}
	}

	if cfg.ChunkSize < 0 {
		return fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	}

	if cfg.SampleRate < 0 || cfg.NumChannels < 0 {
		return fmt.Errorf("sample rate and channel count must be positive, got %d and %d", cfg.SampleRate, cfg.NumChannels)
	}

	return nil
}

// NewElevenLabsConfigFromEnv creates a new ElevenLabsConfig from ELEVENLABS_*
// environment variables. Invalid numbers are logged and replaced by defaults.
func NewElevenLabsConfigFromEnv(logger *zap.Logger) ElevenLabsConfig {
	return ElevenLabsConfig{
		APIKey:              os.Getenv("ELEVENLABS_API_KEY"),
		VoiceID:             os.Getenv("ELEVENLABS_VOICE_ID"),
		APIBaseURL:          config.String("ELEVENLABS_BASE_URL", defaultAPIBaseURL),
		ModelID:             config.String("ELEVENLABS_MODEL_ID", defaultModelID),
		OutputFormat:        os.Getenv("ELEVENLABS_OUTPUT_FORMAT"),
		SampleRate:          config.Int(logger, "ELEVENLABS_SAMPLE_RATE", defaultSampleRate),
		Stability:           config.Float(logger, "ELEVENLABS_STABILITY", defaultStability),
		SimilarityBoost:     config.Float(logger, "ELEVENLABS_SIMILARITY", defaultSimilarityBoost),
		Style:               config.Float(logger, "ELEVENLABS_STYLE", 0),
		DisableSpeakerBoost: !config.Bool("ELEVENLABS_SPEAKER_BOOST", true),
		Timeout:             config.Duration(logger, "ELEVENLABS_TIMEOUT", defaultTimeout),
	}
}

// NewElevenLabsTTS creates a new Eleven Labs TTS instance
func NewElevenLabsTTS(cfg ElevenLabsConfig, logger *zap.Logger) (*ElevenLabsTTS, error) {
	if err := ValidateElevenLabsConfig(cfg); err != nil {
		return nil, err
	}

	apiBaseURL := strings.TrimRight(cfg.APIBaseURL, "/")
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
	}

	modelID := cfg.ModelID
	if modelID == "" {
		modelID = defaultModelID
	}

	mimeType := cfg.MimeType
	if mimeType == "" {
		mimeType = defaultMimeType
		if strings.HasPrefix(cfg.OutputFormat, "pcm") {
			mimeType = "audio/pcm"
		}
	}

	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = defaultSampleRate
	}

	numChannels := cfg.NumChannels
	if numChannels == 0 {
		numChannels = defaultNumChannels
	}

	chunkSize := cfg.ChunkSize
	if chunkSize == 0 {
		chunkSize = defaultChunkSize
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	tts := &ElevenLabsTTS{
		apiKey:       cfg.APIKey,
		apiBaseURL:   apiBaseURL,
		voiceID:      cfg.VoiceID,
		modelID:      modelID,
		outputFormat: cfg.OutputFormat,
		mimeType:     mimeType,
		sampleRate:   sampleRate,
		numChannels:  numChannels,
		chunkSize:    chunkSize,
		voiceSettings: ElevenLabsVoiceSettings{
			Stability:       cfg.Stability,
			SimilarityBoost: cfg.SimilarityBoost,
			Style:           cfg.Style,
			UseSpeakerBoost: !cfg.DisableSpeakerBoost,
		},
		timeout: timeout,
		// Per-call deadlines come from the request context; the client only pools.
		client: &http.Client{},
		logger: logger,
	}

	logger.Info("ElevenLabs TTS initialized",
		zap.String("voiceID", tts.voiceID),
		zap.String("modelID", tts.modelID),
		zap.String("mimeType", tts.mimeType),
		zap.Int("sampleRate", tts.sampleRate),
		zap.Duration("timeout", tts.timeout))

	return tts, nil
}

func (e *ElevenLabsTTS) streamURL() string {
	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s/stream", e.apiBaseURL, url.PathEscape(e.voiceID))
	if e.outputFormat != "" {
		endpoint += "?output_format=" + url.QueryEscape(e.outputFormat)
	}
	return endpoint
}

func (e *ElevenLabsTTS) audioSession(id string) entities.AudioSession {
	return entities.AudioSession{
		ID:          id,
		SampleRate:  e.sampleRate,
		NumChannels: e.numChannels,
		MimeType:    e.mimeType,
	}
}

// Synthesize implements repositories.TextToSpeech. It returns once response
// headers arrive; the body is forwarded on the stream's Chunks channel.
func (e *ElevenLabsTTS) Synthesize(ctx context.Context, text string, opts ...repositories.SynthesizeOption) (repositories.AudioStream, error) {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return newEmptyStream(e.audioSession(uuid.NewString())), nil
	}

	options := repositories.ApplySynthesizeOptions(repositories.SynthesizeOptions{Timeout: e.timeout}, opts...)

	requestBody, err := json.Marshal(ElevenLabsRequest{
		Text:          cleaned,
		ModelID:       e.modelID,
		VoiceSettings: e.voiceSettings,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var (
		callCtx context.Context
		cancel  context.CancelFunc
	)
	if options.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, options.Timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, e.streamURL(), bytes.NewReader(requestBody))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", e.apiKey)
	httpReq.Header.Set("Accept", e.mimeType)
	httpReq.Header.Set("Content-Type", "application/json")

	e.logger.Debug("Sending request to Eleven Labs API",
		zap.String("voiceID", e.voiceID),
		zap.Int("textLength", len(cleaned)))

	resp, err := e.client.Do(httpReq)
	if err != nil {
		cancel()
		e.logger.Error("Failed to reach Eleven Labs API", zap.Error(err))
		return nil, &SynthesisConnectionError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errorBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
		e.logger.Error("Eleven Labs API returned error",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(errorBody)))
		return nil, &SynthesisStatusError{StatusCode: resp.StatusCode, Body: string(errorBody)}
	}

	session := e.audioSession(requestID(resp.Header))
	if mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && mediaType != "" {
		session.MimeType = mediaType
	}

	e.logger.Info("Streaming audio from Eleven Labs API",
		zap.String("audioSessionID", session.ID),
		zap.String("mimeType", session.MimeType))

	stream := &httpAudioStream{
		session: session,
		chunks:  make(chan []byte, streamBuffer),
		body:    resp.Body,
		cancel:  cancel,
		done:    make(chan struct{}),
		logger:  e.logger,
	}
	go stream.forward(callCtx, e.chunkSize)

	return stream, nil
}

// requestID picks the backend's request id, falling back to a fresh uuid.
func requestID(header http.Header) string {
	if id := header.Get("x-request-id"); id != "" {
		return id
	}
	if id := header.Get("request-id"); id != "" {
		return id
	}
	return uuid.NewString()
}

// Close implements repositories.TextToSpeech
func (e *ElevenLabsTTS) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// httpAudioStream forwards a streaming response body chunk by chunk.
type httpAudioStream struct {
	session entities.AudioSession
	chunks  chan []byte
	body    io.ReadCloser
	cancel  context.CancelFunc
	done    chan struct{}
	logger  *zap.Logger

	mu     sync.Mutex
	err    error
	closed bool
}

func (s *httpAudioStream) forward(ctx context.Context, chunkSize int) {
	defer close(s.done)
	defer close(s.chunks)
	defer s.body.Close()
	defer s.cancel()

	buffer := make([]byte, chunkSize)
	totalBytes := 0
	chunkCount := 0

	for {
		n, err := s.body.Read(buffer)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buffer[:n])

			select {
			case s.chunks <- chunk:
				totalBytes += n
				chunkCount++
			case <-ctx.Done():
				s.fail(ctx.Err())
				return
			}
		}

		if err == io.EOF {
			s.logger.Debug("Finished streaming audio data",
				zap.String("audioSessionID", s.session.ID),
				zap.Int("totalChunks", chunkCount),
				zap.Int("totalBytes", totalBytes))
			return
		}

		if err != nil {
			s.fail(err)
			return
		}
	}
}

// fail records a mid-stream transport failure unless the consumer closed the
// stream itself.
func (s *httpAudioStream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.err = &SynthesisConnectionError{Err: err}
	s.logger.Error("Error reading audio stream",
		zap.String("audioSessionID", s.session.ID),
		zap.Error(err))
}

func (s *httpAudioStream) Session() entities.AudioSession {
	return s.session
}

func (s *httpAudioStream) Chunks() <-chan []byte {
	return s.chunks
}

func (s *httpAudioStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *httpAudioStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	<-s.done
	return nil
}

// emptyStream is the result of synthesizing blank text.
type emptyStream struct {
	session entities.AudioSession
	chunks  chan []byte
}

func newEmptyStream(session entities.AudioSession) *emptyStream {
	chunks := make(chan []byte)
	close(chunks)
	return &emptyStream{session: session, chunks: chunks}
}

func (s *emptyStream) Session() entities.AudioSession { return s.session }
func (s *emptyStream) Chunks() <-chan []byte          { return s.chunks }
func (s *emptyStream) Err() error                     { return nil }
func (s *emptyStream) Close() error                   { return nil }
