package translation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/satriahrh/jurubahasa/domain/entities"
	"github.com/satriahrh/jurubahasa/domain/langcode"
	"github.com/satriahrh/jurubahasa/domain/repositories"
	"github.com/satriahrh/jurubahasa/internal/config"
)

const (
	defaultAPIURL  = "https://api-free.deepl.com/v2/translate"
	defaultTimeout = 15 * time.Second
)

// DeepLConfig holds configuration for the DeepL translator.
type DeepLConfig struct {
	APIKey  string        // Required: DeepL authentication key
	APIURL  string        // Optional: full translate endpoint URL
	Timeout time.Duration // Optional: per-request timeout
}

// NewDeepLConfigFromEnv reads DEEPL_API_KEY, DEEPL_API_URL and DEEPL_TIMEOUT.
func NewDeepLConfigFromEnv(logger *zap.Logger) DeepLConfig {
	return DeepLConfig{
		APIKey:  os.Getenv("DEEPL_API_KEY"),
		APIURL:  config.String("DEEPL_API_URL", defaultAPIURL),
		Timeout: config.Duration(logger, "DEEPL_TIMEOUT", defaultTimeout),
	}
}

// DeepLTranslator is a bidirectional translator over a fixed language pair.
// At most one translation round-trip is in flight at a time, so outcomes are
// produced in the order Translate was called.
type DeepLTranslator struct {
	apiKey string
	apiURL string
	pair   langcode.Pair
	client *http.Client
	guard  *semaphore.Weighted
	logger *zap.Logger
}

var _ repositories.Translator = (*DeepLTranslator)(nil)

type deeplResponse struct {
	Translations []struct {
		Text                   string `json:"text"`
		DetectedSourceLanguage string `json:"detected_source_language"`
	} `json:"translations"`
}

type deeplResult struct {
	text     string
	detected string
}

// NewDeepLTranslator creates a translator for the pair lang1<->lang2.
func NewDeepLTranslator(cfg DeepLConfig, lang1, lang2 string, logger *zap.Logger) (*DeepLTranslator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("deepl API key is required")
	}

	pair, err := langcode.NewPair(lang1, lang2)
	if err != nil {
		return nil, fmt.Errorf("deepl translator: %w", err)
	}

	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	logger.Info("DeepL translator initialized",
		zap.String("languages", pair.String()),
		zap.String("providerLang1", pair.ProviderA),
		zap.String("providerLang2", pair.ProviderB),
		zap.Duration("timeout", timeout))

	return &DeepLTranslator{
		apiKey: cfg.APIKey,
		apiURL: apiURL,
		pair:   pair,
		client: &http.Client{Timeout: timeout},
		guard:  semaphore.NewWeighted(1),
		logger: logger,
	}, nil
}

// Pair implements repositories.Translator
func (d *DeepLTranslator) Pair() langcode.Pair {
	return d.pair
}

// Translate implements repositories.Translator. The first request targets
// lang2; text detected as lang2 is sent once more targeting lang1. Anything
// else is suppressed.
func (d *DeepLTranslator) Translate(ctx context.Context, text string) entities.TranslationOutcome {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return entities.Suppressed(entities.SuppressEmptyInput)
	}

	if err := d.guard.Acquire(ctx, 1); err != nil {
		d.logger.Warn("Translation abandoned while waiting for previous one", zap.Error(err))
		return entities.Suppressed(entities.SuppressCanceled)
	}
	defer d.guard.Release(1)

	first, err := d.request(ctx, cleaned, d.pair.ProviderB)
	if err != nil {
		d.logger.Error("DeepL translation failed", zap.Error(err))
		return entities.Suppressed(entities.SuppressTransport)
	}

	if langcode.Matches(first.detected, d.pair.ProviderA) {
		return entities.Translated(first.text)
	}

	if langcode.Matches(first.detected, d.pair.ProviderB) {
		second, err := d.request(ctx, cleaned, d.pair.ProviderA)
		if err != nil {
			d.logger.Error("DeepL reverse translation failed", zap.Error(err))
			return entities.Suppressed(entities.SuppressTransport)
		}
		if langcode.Matches(second.detected, d.pair.ProviderB) {
			return entities.Translated(second.text)
		}

		d.logger.Info("DeepL detection inconsistent between requests; suppressing response",
			zap.String("firstDetected", first.detected),
			zap.String("secondDetected", second.detected))
		return entities.Suppressed(entities.SuppressInconsistentDetection)
	}

	d.logger.Info("DeepL detected unsupported language; suppressing response",
		zap.String("detected", first.detected),
		zap.String("languages", d.pair.String()))
	return entities.Suppressed(entities.SuppressUnrecognizedLanguage)
}

// request performs one translate call targeting targetLang.
func (d *DeepLTranslator) request(ctx context.Context, text, targetLang string) (*deeplResult, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("target_lang", targetLang)
	form.Set("preserve_formatting", "1")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Authorization", "DeepL-Auth-Key "+d.apiKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errorBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned error %d: %s", resp.StatusCode, string(errorBody))
	}

	var payload deeplResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(payload.Translations) == 0 {
		return nil, errors.New("empty translations in response")
	}

	first := payload.Translations[0]
	d.logger.Debug("DeepL response received",
		zap.String("targetLang", targetLang),
		zap.String("detected", first.DetectedSourceLanguage))

	return &deeplResult{
		text:     strings.TrimSpace(first.Text),
		detected: first.DetectedSourceLanguage,
	}, nil
}

// Close implements repositories.Translator
func (d *DeepLTranslator) Close() error {
	d.client.CloseIdleConnections()
	return nil
}
