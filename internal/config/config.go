package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/satriahrh/jurubahasa/domain/entities"
)

// Load reads a .env file from the working directory when one exists.
func Load(logger *zap.Logger) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", zap.Error(err))
	}
}

// String returns the value of key, or def when it is unset or blank.
func String(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}

// Float parses key as a float. Invalid values are logged and replaced by def.
func Float(logger *zap.Logger, key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		logger.Warn("Invalid float environment value, using default",
			zap.String("key", key),
			zap.String("value", raw),
			zap.Float64("default", def))
		return def
	}
	return value
}

// Int parses key as an integer. Invalid values are logged and replaced by def.
func Int(logger *zap.Logger, key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		logger.Warn("Invalid integer environment value, using default",
			zap.String("key", key),
			zap.String("value", raw),
			zap.Int("default", def))
		return def
	}
	return value
}

// Duration parses key with time.ParseDuration. Invalid or non-positive
// values are logged and replaced by def.
func Duration(logger *zap.Logger, key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		logger.Warn("Invalid duration environment value, using default",
			zap.String("key", key),
			zap.String("value", raw),
			zap.Duration("default", def))
		return def
	}
	return value
}

// Bool is true unless key is set to "false" (any case), or def when unset.
func Bool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	return !strings.EqualFold(raw, "false")
}

// SynthesisProvider reads TTS_PROVIDER: "elevenlabs" (default) or "mock".
func SynthesisProvider(logger *zap.Logger) string {
	provider := strings.ToLower(String("TTS_PROVIDER", "elevenlabs"))
	switch provider {
	case "mock", "elevenlabs":
		return provider
	default:
		logger.Warn("Unknown TTS_PROVIDER, using elevenlabs", zap.String("provider", provider))
		return "elevenlabs"
	}
}

// Server is the process-level configuration of the interpreter server.
type Server struct {
	Port          string
	JWTSecret     string
	SessionTTL    time.Duration
	MongoURI      string
	MongoDatabase string
	STTProvider   string
	TTSProvider   string

	CleanupInterval  time.Duration
	QueueSize        int
	SynthesisTimeout time.Duration
}

// LoadServer reads the server configuration from the environment.
func LoadServer(logger *zap.Logger) (Server, error) {
	cfg := Server{
		Port:          String("PORT", "8080"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		SessionTTL:    Duration(logger, "SESSION_TTL", entities.DefaultSessionTTL),
		MongoURI:      os.Getenv("MONGODB_URI"),
		MongoDatabase: String("MONGODB_DATABASE", "jurubahasa"),
		STTProvider:   strings.ToLower(String("STT_PROVIDER", "mock")),
		TTSProvider:   SynthesisProvider(logger),

		CleanupInterval:  Duration(logger, "SESSION_CLEANUP_INTERVAL", 30*time.Minute),
		QueueSize:        Int(logger, "MEDIATOR_QUEUE_SIZE", 32),
		SynthesisTimeout: Duration(logger, "SYNTHESIS_TIMEOUT", 0),
	}

	if cfg.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET environment variable is required")
	}

	switch cfg.STTProvider {
	case "mock", "google":
	default:
		logger.Warn("Unknown STT_PROVIDER, using mock", zap.String("provider", cfg.STTProvider))
		cfg.STTProvider = "mock"
	}

	return cfg, nil
}
