package repositories

import (
	"context"

	"github.com/satriahrh/jurubahasa/domain/entities"
	"github.com/satriahrh/jurubahasa/domain/langcode"
)

// Translator translates utterances between the two languages of a pair.
type Translator interface {
	// Translate detects which side of the pair text is written in and
	// translates it into the other. Failures come back as a suppressed
	// outcome, never as an error.
	Translate(ctx context.Context, text string) entities.TranslationOutcome
	// Pair returns the languages the translator was built for.
	Pair() langcode.Pair
	// Close releases the pooled connections held by the translator.
	Close() error
}
