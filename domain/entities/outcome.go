package entities

// SuppressReason explains why an utterance produced no translated output.
type SuppressReason string

const (
	SuppressEmptyInput            SuppressReason = "empty_input"
	SuppressTransport             SuppressReason = "transport"
	SuppressUnrecognizedLanguage  SuppressReason = "unrecognized_language"
	SuppressInconsistentDetection SuppressReason = "inconsistent_detection"
	SuppressCanceled              SuppressReason = "canceled"
)

// TranslationOutcome is either a translated text or a suppression. It is
// never an error: failures to translate are reported as Suppressed.
type TranslationOutcome struct {
	text       string
	translated bool
	reason     SuppressReason
}

// Translated returns an outcome carrying text to be voiced.
func Translated(text string) TranslationOutcome {
	return TranslationOutcome{text: text, translated: true}
}

// Suppressed returns an outcome meaning "say nothing for this utterance".
func Suppressed(reason SuppressReason) TranslationOutcome {
	return TranslationOutcome{reason: reason}
}

// IsSuppressed reports whether nothing should be emitted.
func (o TranslationOutcome) IsSuppressed() bool {
	return !o.translated
}

// Text returns the translated text and true, or "" and false when suppressed.
func (o TranslationOutcome) Text() (string, bool) {
	return o.text, o.translated
}

// Reason is the suppression reason; empty for a translated outcome.
func (o TranslationOutcome) Reason() SuppressReason {
	return o.reason
}
