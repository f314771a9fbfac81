package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/jurubahasa/domain/repositories"
)

func newTestTTS(t *testing.T, handler http.Handler, mutate ...func(*ElevenLabsConfig)) *ElevenLabsTTS {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := ElevenLabsConfig{
		APIKey:          "test-api-key",
		VoiceID:         "voice-1",
		APIBaseURL:      server.URL,
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Timeout:         5 * time.Second,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	tts, err := NewElevenLabsTTS(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}
	t.Cleanup(func() { tts.Close() })
	return tts
}

func drain(t *testing.T, stream repositories.AudioStream) []byte {
	t.Helper()
	var buf bytes.Buffer
	for chunk := range stream.Chunks() {
		if len(chunk) == 0 {
			t.Error("Received empty chunk")
		}
		buf.Write(chunk)
	}
	return buf.Bytes()
}

func TestNewElevenLabsTTS(t *testing.T) {
	logger := zaptest.NewLogger(t)

	if _, err := NewElevenLabsTTS(ElevenLabsConfig{VoiceID: "v"}, logger); err == nil {
		t.Error("Expected error when API key is not set")
	}

	if _, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "k"}, logger); err == nil {
		t.Error("Expected error when voice ID is not set")
	}

	if _, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "k", VoiceID: "v", Stability: 1.5}, logger); err == nil {
		t.Error("Expected error when stability is out of range")
	}

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "k", VoiceID: "v"}, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}
	if tts.apiBaseURL != defaultAPIBaseURL {
		t.Errorf("Expected default base URL, got %s", tts.apiBaseURL)
	}
	if tts.modelID != defaultModelID {
		t.Errorf("Expected default model ID, got %s", tts.modelID)
	}
	if tts.mimeType != defaultMimeType || tts.sampleRate != defaultSampleRate || tts.numChannels != defaultNumChannels {
		t.Errorf("Unexpected audio defaults: %s %d %d", tts.mimeType, tts.sampleRate, tts.numChannels)
	}
	if !tts.voiceSettings.UseSpeakerBoost {
		t.Error("Expected speaker boost to be on by default")
	}

	pcm, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "k", VoiceID: "v", OutputFormat: "pcm_24000"}, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}
	if pcm.mimeType != "audio/pcm" {
		t.Errorf("Expected audio/pcm for pcm output, got %s", pcm.mimeType)
	}
	if got := pcm.streamURL(); got != defaultAPIBaseURL+"/v1/text-to-speech/v/stream?output_format=pcm_24000" {
		t.Errorf("Unexpected stream URL %s", got)
	}
}

func TestNewElevenLabsConfigFromEnv(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "env-key")
	t.Setenv("ELEVENLABS_VOICE_ID", "env-voice")
	t.Setenv("ELEVENLABS_MODEL_ID", "")
	t.Setenv("ELEVENLABS_BASE_URL", "")
	t.Setenv("ELEVENLABS_STABILITY", "not-a-number")
	t.Setenv("ELEVENLABS_SIMILARITY", "0.9")
	t.Setenv("ELEVENLABS_STYLE", "0.2")
	t.Setenv("ELEVENLABS_SPEAKER_BOOST", "False")
	t.Setenv("ELEVENLABS_SAMPLE_RATE", "22050")
	t.Setenv("ELEVENLABS_TIMEOUT", "")

	cfg := NewElevenLabsConfigFromEnv(zaptest.NewLogger(t))

	if cfg.APIKey != "env-key" || cfg.VoiceID != "env-voice" {
		t.Errorf("Unexpected credentials %s %s", cfg.APIKey, cfg.VoiceID)
	}
	if cfg.ModelID != defaultModelID || cfg.APIBaseURL != defaultAPIBaseURL {
		t.Errorf("Expected default model and base URL, got %s %s", cfg.ModelID, cfg.APIBaseURL)
	}
	if cfg.Stability != defaultStability {
		t.Errorf("Expected invalid stability to fall back to %v, got %v", defaultStability, cfg.Stability)
	}
	if cfg.SimilarityBoost != 0.9 || cfg.Style != 0.2 {
		t.Errorf("Unexpected voice settings %v %v", cfg.SimilarityBoost, cfg.Style)
	}
	if !cfg.DisableSpeakerBoost {
		t.Error("Expected speaker boost to be disabled")
	}
	if cfg.SampleRate != 22050 {
		t.Errorf("Expected sample rate 22050, got %d", cfg.SampleRate)
	}
	if cfg.Timeout != defaultTimeout {
		t.Errorf("Expected default timeout, got %s", cfg.Timeout)
	}
}

func TestElevenLabsTTS_Synthesize(t *testing.T) {
	audio := bytes.Repeat([]byte{0xff, 0xfb, 0x90, 0x00}, 3000)

	var gotReq ElevenLabsRequest
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/text-to-speech/voice-1/stream" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "test-api-key" {
			t.Errorf("Unexpected xi-api-key %q", r.Header.Get("xi-api-key"))
		}
		if r.Header.Get("Accept") != "audio/mpeg" {
			t.Errorf("Unexpected Accept %q", r.Header.Get("Accept"))
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("Failed to decode payload: %v", err)
		}

		w.Header().Set("x-request-id", "req-123")
		w.Header().Set("Content-Type", "audio/mpeg")
		flusher := w.(http.Flusher)
		for i := 0; i < len(audio); i += 1000 {
			w.Write(audio[i : i+1000])
			flusher.Flush()
		}
	})
	tts := newTestTTS(t, handler)

	stream, err := tts.Synthesize(context.Background(), "  Bonjour tout le monde  ")
	if err != nil {
		t.Fatalf("Synthesize unexpected error: %v", err)
	}
	defer stream.Close()

	session := stream.Session()
	if session.ID != "req-123" {
		t.Errorf("Expected session id req-123, got %s", session.ID)
	}
	if session.SampleRate != 44100 || session.NumChannels != 1 || session.MimeType != "audio/mpeg" {
		t.Errorf("Unexpected session %+v", session)
	}

	if got := drain(t, stream); !bytes.Equal(got, audio) {
		t.Errorf("Expected %d audio bytes, got %d", len(audio), len(got))
	}
	if err := stream.Err(); err != nil {
		t.Errorf("Unexpected stream error: %v", err)
	}

	want := ElevenLabsRequest{
		Text:    "Bonjour tout le monde",
		ModelID: defaultModelID,
		VoiceSettings: ElevenLabsVoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Style:           0,
			UseSpeakerBoost: true,
		},
	}
	if gotReq != want {
		t.Errorf("Expected payload %+v, got %+v", want, gotReq)
	}
}

func TestElevenLabsTTS_Synthesize_EmptyText(t *testing.T) {
	var calls int32
	tts := newTestTTS(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))

	stream, err := tts.Synthesize(context.Background(), " \n ")
	if err != nil {
		t.Fatalf("Synthesize unexpected error: %v", err)
	}

	if _, err := uuid.Parse(stream.Session().ID); err != nil {
		t.Errorf("Expected a uuid session id, got %q", stream.Session().ID)
	}
	if stream.Session().MimeType != "audio/mpeg" {
		t.Errorf("Expected configured MIME, got %s", stream.Session().MimeType)
	}
	if got := drain(t, stream); len(got) != 0 {
		t.Errorf("Expected no audio, got %d bytes", len(got))
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("Expected no network call for empty text")
	}

	other, _ := tts.Synthesize(context.Background(), "")
	if other.Session().ID == stream.Session().ID {
		t.Error("Expected a fresh session id per call")
	}
}

func TestElevenLabsTTS_SessionHeaders(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		wantID   string
		wantMime string
	}{
		{
			name:     "request-id fallback",
			headers:  map[string]string{"request-id": "alt-7", "Content-Type": "audio/mpeg"},
			wantID:   "alt-7",
			wantMime: "audio/mpeg",
		},
		{
			name:     "x-request-id wins",
			headers:  map[string]string{"x-request-id": "first", "request-id": "second"},
			wantID:   "first",
			wantMime: "",
		},
		{
			name:     "content type overrides configured mime",
			headers:  map[string]string{"Content-Type": "audio/ogg; codecs=opus"},
			wantMime: "audio/ogg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tts := newTestTTS(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.Write([]byte("audio"))
			}))

			stream, err := tts.Synthesize(context.Background(), "hello")
			if err != nil {
				t.Fatalf("Synthesize unexpected error: %v", err)
			}
			drain(t, stream)

			session := stream.Session()
			if tt.wantID != "" && session.ID != tt.wantID {
				t.Errorf("Expected id %s, got %s", tt.wantID, session.ID)
			}
			if tt.wantID == "" {
				if _, err := uuid.Parse(session.ID); err != nil {
					t.Errorf("Expected uuid fallback id, got %q", session.ID)
				}
			}
			if tt.wantMime != "" && session.MimeType != tt.wantMime {
				t.Errorf("Expected mime %s, got %s", tt.wantMime, session.MimeType)
			}
			if session.MimeType == "" {
				t.Error("Session MIME must never be empty")
			}
		})
	}
}

func TestElevenLabsTTS_ChunksArriveIncrementally(t *testing.T) {
	release := make(chan struct{})
	tts := newTestTTS(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("first"))
		w.(http.Flusher).Flush()
		<-release
		w.Write([]byte("second"))
	}))

	stream, err := tts.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize unexpected error: %v", err)
	}
	defer stream.Close()

	select {
	case chunk := <-stream.Chunks():
		if string(chunk) != "first" {
			t.Errorf("Expected first chunk, got %q", chunk)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first chunk was not forwarded before the body completed")
	}

	close(release)
	if rest := drain(t, stream); string(rest) != "second" {
		t.Errorf("Expected remaining chunk, got %q", rest)
	}
}

func TestElevenLabsTTS_StatusError(t *testing.T) {
	tts := newTestTTS(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"invalid api key"}`))
	}))

	stream, err := tts.Synthesize(context.Background(), "hello")
	if stream != nil {
		t.Error("Expected no stream on status error")
	}

	var statusErr *SynthesisStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected SynthesisStatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", statusErr.StatusCode)
	}
	if statusErr.Body != `{"detail":"invalid api key"}` {
		t.Errorf("Unexpected body %q", statusErr.Body)
	}
}

func TestElevenLabsTTS_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	tts, err := NewElevenLabsTTS(ElevenLabsConfig{APIKey: "k", VoiceID: "v", APIBaseURL: baseURL}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}

	_, err = tts.Synthesize(context.Background(), "hello")
	var connErr *SynthesisConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("Expected SynthesisConnectionError, got %v", err)
	}
}

func TestElevenLabsTTS_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	tts := newTestTTS(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))

	_, err := tts.Synthesize(context.Background(), "hello", repositories.WithTimeout(50*time.Millisecond))
	var connErr *SynthesisConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("Expected SynthesisConnectionError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded cause, got %v", err)
	}
}

func TestElevenLabsTTS_DroppedConnection(t *testing.T) {
	tts := newTestTTS(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, buf, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("Hijack failed: %v", err)
			return
		}
		fmt.Fprint(buf, "HTTP/1.1 200 OK\r\nContent-Type: audio/mpeg\r\nContent-Length: 1000\r\n\r\npartial")
		buf.Flush()
		conn.Close()
	}))

	stream, err := tts.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize unexpected error: %v", err)
	}

	if got := drain(t, stream); string(got) != "partial" {
		t.Errorf("Expected partial audio, got %q", got)
	}

	var connErr *SynthesisConnectionError
	if !errors.As(stream.Err(), &connErr) {
		t.Errorf("Expected SynthesisConnectionError from stream, got %v", stream.Err())
	}
}

func TestElevenLabsTTS_CloseAbortsStream(t *testing.T) {
	tts := newTestTTS(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for {
			if _, err := w.Write([]byte("audio")); err != nil {
				return
			}
			w.(http.Flusher).Flush()
			select {
			case <-r.Context().Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}))

	stream, err := tts.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize unexpected error: %v", err)
	}
	<-stream.Chunks()

	done := make(chan struct{})
	go func() {
		stream.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not abort the stream")
	}

	if err := stream.Err(); err != nil {
		t.Errorf("Expected no error after consumer close, got %v", err)
	}
}

// Integration test - only runs if ELEVENLABS_API_KEY is set with real API key
func TestElevenLabsTTS_Integration(t *testing.T) {
	if os.Getenv("ELEVENLABS_API_KEY") == "" || os.Getenv("ELEVENLABS_VOICE_ID") == "" {
		t.Skip("Skipping integration test - set ELEVENLABS_API_KEY and ELEVENLABS_VOICE_ID")
	}

	logger := zaptest.NewLogger(t)
	tts, err := NewElevenLabsTTS(NewElevenLabsConfigFromEnv(logger), logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsTTS: %v", err)
	}
	defer tts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stream, err := tts.Synthesize(ctx, "Halo, apa kabar?")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	defer stream.Close()

	if audio := drain(t, stream); len(audio) == 0 {
		t.Error("Expected audio from the real API")
	}
	if err := stream.Err(); err != nil {
		t.Errorf("Stream failed: %v", err)
	}
}
