package langcode

import (
	"fmt"
	"strings"
)

// Pair is the fixed language pair of one conversation. A and B keep the codes
// as entered; ProviderA and ProviderB hold their normalized provider codes.
type Pair struct {
	A         string `json:"lang1" bson:"lang1"`
	B         string `json:"lang2" bson:"lang2"`
	ProviderA string `json:"provider_lang1" bson:"provider_lang1"`
	ProviderB string `json:"provider_lang2" bson:"provider_lang2"`
}

// NewPair normalizes both codes. It fails with ErrUnsupportedLanguageMapping
// if either one cannot be mapped.
func NewPair(a, b string) (Pair, error) {
	providerA, errA := Normalize(a)
	providerB, errB := Normalize(b)
	if errA != nil || errB != nil {
		return Pair{}, fmt.Errorf("%w (lang1=%q, lang2=%q)", ErrUnsupportedLanguageMapping, a, b)
	}

	return Pair{
		A:         strings.ToLower(strings.TrimSpace(a)),
		B:         strings.ToLower(strings.TrimSpace(b)),
		ProviderA: providerA,
		ProviderB: providerB,
	}, nil
}

// ParsePair parses the "lang1,lang2" metadata form.
func ParsePair(metadata string) (Pair, error) {
	if strings.TrimSpace(metadata) == "" {
		return Pair{}, fmt.Errorf("language metadata is required (e.g. 'ar,fr')")
	}

	languages := strings.Split(metadata, ",")
	if len(languages) != 2 {
		return Pair{}, fmt.Errorf("expected 2 languages in metadata, got %d: %q", len(languages), metadata)
	}

	return NewPair(languages[0], languages[1])
}

// Supported reports whether both provider codes are accepted targets.
func (p Pair) Supported() bool {
	return Supported(p.ProviderA) && Supported(p.ProviderB)
}

// String renders the pair as "a<->b".
func (p Pair) String() string {
	return p.A + "<->" + p.B
}
