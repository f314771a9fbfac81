package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/jurubahasa/adapters"
	"github.com/satriahrh/jurubahasa/adapters/mongo"
	"github.com/satriahrh/jurubahasa/adapters/stt"
	"github.com/satriahrh/jurubahasa/adapters/translation"
	"github.com/satriahrh/jurubahasa/adapters/tts"
	"github.com/satriahrh/jurubahasa/domain/repositories"
	"github.com/satriahrh/jurubahasa/internal/api"
	"github.com/satriahrh/jurubahasa/internal/auth"
	"github.com/satriahrh/jurubahasa/internal/config"
	"github.com/satriahrh/jurubahasa/internal/websocket"
	"github.com/satriahrh/jurubahasa/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	config.Load(logger)
	cfg, err := config.LoadServer(logger)
	if err != nil {
		logger.Fatal("Invalid server configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Session storage
	var sessions repositories.SessionRepository
	if cfg.MongoURI != "" {
		mongoClient, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer closeCancel()
			mongoClient.Close(closeCtx)
		}()

		repo, err := mongoClient.Sessions(ctx)
		if err != nil {
			logger.Fatal("Failed to prepare session storage", zap.Error(err))
		}
		sessions = repo
	} else {
		logger.Warn("MONGODB_URI not set, sessions are kept in memory")
		sessions = adapters.NewMemorySessionRepository()
	}

	// Provider configuration is checked once so a bad key fails at startup
	// instead of on the first session.
	deeplConfig := translation.NewDeepLConfigFromEnv(logger)
	if deeplConfig.APIKey == "" {
		logger.Fatal("DEEPL_API_KEY environment variable is required")
	}

	// Speech synthesis
	var newSynthesizer func() (repositories.TextToSpeech, error)
	switch cfg.TTSProvider {
	case "mock":
		logger.Warn("TTS_PROVIDER=mock, utterances are voiced with placeholder audio")
		newSynthesizer = func() (repositories.TextToSpeech, error) {
			return tts.NewMockTextToSpeech(logger), nil
		}
	default:
		elevenLabsConfig := tts.NewElevenLabsConfigFromEnv(logger)
		if err := tts.ValidateElevenLabsConfig(elevenLabsConfig); err != nil {
			logger.Fatal("Invalid ElevenLabs configuration", zap.Error(err))
		}
		newSynthesizer = func() (repositories.TextToSpeech, error) {
			return tts.NewElevenLabsTTS(elevenLabsConfig, logger)
		}
	}

	// Speech recognition
	var recognizer repositories.SpeechToText
	switch cfg.STTProvider {
	case "google":
		google, err := stt.NewGoogleSpeechToText(ctx, logger)
		if err != nil {
			logger.Fatal("Failed to create Google speech client", zap.Error(err))
		}
		defer google.Close()
		recognizer = google
	default:
		recognizer = stt.NewMockSpeechToText(logger)
	}

	// Initialize usecase services
	service := usecase.NewInterpreterService(usecase.InterpreterServiceConfig{
		Sessions: sessions,
		NewTranslator: func(lang1, lang2 string) (repositories.Translator, error) {
			return translation.NewDeepLTranslator(deeplConfig, lang1, lang2, logger)
		},
		NewSynthesizer: newSynthesizer,
		Recognizer:     recognizer,
		SessionTTL:     cfg.SessionTTL,
		MediatorConfig: usecase.MediatorConfig{
			QueueSize:        cfg.QueueSize,
			SynthesisTimeout: cfg.SynthesisTimeout,
		},
	}, logger)

	issuer, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		logger.Fatal("Failed to create token issuer", zap.Error(err))
	}

	// Initialize WebSocket hub
	hub := websocket.NewHub(service, logger)
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	cleanup := websocket.NewSessionCleanupService(sessions, cfg.CleanupInterval, logger)
	cleanup.Start()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize API routes
	api.InitRoutes(e, hub, service, issuer, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Interpreter server started",
		zap.String("port", cfg.Port),
		zap.String("sttProvider", cfg.STTProvider),
		zap.Bool("mongo", cfg.MongoURI != ""))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Live sessions are hijacked connections, so Shutdown does not wait for
	// them. The hub closes them and returns once their records are written,
	// before the deferred store Close runs.
	cancel()
	<-hubDone
	cleanup.Stop()

	logger.Info("Server exited")
}
