package config

import (
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/jurubahasa/domain/entities"
)

func TestFloat(t *testing.T) {
	logger := zaptest.NewLogger(t)

	tests := []struct {
		name  string
		value string
		want  float64
	}{
		{name: "unset", value: "", want: 0.5},
		{name: "valid", value: "0.25", want: 0.25},
		{name: "padded", value: " 0.9 ", want: 0.9},
		{name: "invalid falls back", value: "loud", want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_FLOAT", tt.value)
			if got := Float(logger, "TEST_FLOAT", 0.5); got != tt.want {
				t.Errorf("Float() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIntAndDuration(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Setenv("TEST_INT", "22050")
	if got := Int(logger, "TEST_INT", 44100); got != 22050 {
		t.Errorf("Int() = %d, want 22050", got)
	}
	t.Setenv("TEST_INT", "many")
	if got := Int(logger, "TEST_INT", 44100); got != 44100 {
		t.Errorf("Int() = %d, want default", got)
	}

	t.Setenv("TEST_DURATION", "90s")
	if got := Duration(logger, "TEST_DURATION", time.Minute); got != 90*time.Second {
		t.Errorf("Duration() = %s, want 90s", got)
	}
	for _, bad := range []string{"later", "-5s", "0s"} {
		t.Setenv("TEST_DURATION", bad)
		if got := Duration(logger, "TEST_DURATION", time.Minute); got != time.Minute {
			t.Errorf("Duration(%q) = %s, want default", bad, got)
		}
	}
}

func TestBool(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"", false, false},
		{"false", true, false},
		{"FALSE", true, false},
		{"true", false, true},
		{"no", false, true},
	}

	for _, tt := range tests {
		t.Setenv("TEST_BOOL", tt.value)
		if got := Bool("TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("Bool(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestLoadServer(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Setenv("JWT_SECRET", "")
	if _, err := LoadServer(logger); err == nil {
		t.Error("Expected error without JWT_SECRET")
	}

	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("MONGODB_DATABASE", "")
	t.Setenv("STT_PROVIDER", "Whisper")
	t.Setenv("TTS_PROVIDER", "Mock")
	t.Setenv("SESSION_CLEANUP_INTERVAL", "")
	t.Setenv("MEDIATOR_QUEUE_SIZE", "8")
	t.Setenv("SYNTHESIS_TIMEOUT", "soon")

	cfg, err := LoadServer(logger)
	if err != nil {
		t.Fatalf("LoadServer unexpected error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected default port, got %s", cfg.Port)
	}
	if cfg.SessionTTL != entities.DefaultSessionTTL {
		t.Errorf("Expected default session TTL, got %s", cfg.SessionTTL)
	}
	if cfg.MongoDatabase != "jurubahasa" {
		t.Errorf("Expected default database, got %s", cfg.MongoDatabase)
	}
	if cfg.STTProvider != "mock" {
		t.Errorf("Expected unknown provider to fall back to mock, got %s", cfg.STTProvider)
	}
	if cfg.TTSProvider != "mock" {
		t.Errorf("Expected mock synthesis provider, got %s", cfg.TTSProvider)
	}
	if cfg.CleanupInterval != 30*time.Minute || cfg.QueueSize != 8 || cfg.SynthesisTimeout != 0 {
		t.Errorf("Unexpected tuning %s / %d / %s", cfg.CleanupInterval, cfg.QueueSize, cfg.SynthesisTimeout)
	}
}

func TestLoadServer_UnknownTTSProvider(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TTS_PROVIDER", "polly")

	cfg, err := LoadServer(zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("LoadServer unexpected error: %v", err)
	}
	if cfg.TTSProvider != "elevenlabs" {
		t.Errorf("Expected fallback to elevenlabs, got %s", cfg.TTSProvider)
	}
}

func TestSynthesisProvider(t *testing.T) {
	logger := zaptest.NewLogger(t)
	tests := map[string]string{
		"":           "elevenlabs",
		"ElevenLabs": "elevenlabs",
		" mock ":     "mock",
		"polly":      "elevenlabs",
	}
	for value, want := range tests {
		t.Setenv("TTS_PROVIDER", value)
		if got := SynthesisProvider(logger); got != want {
			t.Errorf("SynthesisProvider(%q) = %s, want %s", value, got, want)
		}
	}
}
