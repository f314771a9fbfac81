package stt

import (
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/satriahrh/jurubahasa/domain/repositories"
)

func TestRecognitionConfig(t *testing.T) {
	cfg, err := recognitionConfig(repositories.AudioConfig{
		SampleRate:           16000,
		Encoding:             "linear16",
		Language:             "en",
		AlternativeLanguages: []string{"fr", " "},
	})
	if err != nil {
		t.Fatalf("recognitionConfig unexpected error: %v", err)
	}

	if cfg.Encoding != speechpb.RecognitionConfig_LINEAR16 {
		t.Errorf("Expected LINEAR16, got %v", cfg.Encoding)
	}
	if cfg.SampleRateHertz != 16000 {
		t.Errorf("Expected 16000 Hz, got %d", cfg.SampleRateHertz)
	}
	if cfg.LanguageCode != "en-US" {
		t.Errorf("Expected en-US, got %s", cfg.LanguageCode)
	}
	if len(cfg.AlternativeLanguageCodes) != 1 || cfg.AlternativeLanguageCodes[0] != "fr-FR" {
		t.Errorf("Expected [fr-FR] alternatives, got %v", cfg.AlternativeLanguageCodes)
	}
	if !cfg.EnableAutomaticPunctuation {
		t.Error("Expected automatic punctuation")
	}
}

func TestRecognitionConfig_UnsupportedEncoding(t *testing.T) {
	if _, err := recognitionConfig(repositories.AudioConfig{Encoding: "MP3", Language: "en"}); err == nil {
		t.Error("Expected error for unsupported encoding")
	}
}
