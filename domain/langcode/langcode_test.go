package langcode

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalize_Overrides(t *testing.T) {
	for code, want := range providerOverrides {
		got, err := Normalize(code)
		if err != nil {
			t.Fatalf("Normalize(%q) unexpected error: %v", code, err)
		}
		if got != want {
			t.Errorf("Normalize(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{name: "plain portuguese defaults to european", code: "pt", want: "PT-PT"},
		{name: "brazilian portuguese", code: "PT-BR", want: "PT-BR"},
		{name: "chinese variants collapse", code: "zh-TW", want: "ZH"},
		{name: "unknown two letters", code: "pl", want: "PL"},
		{name: "whitespace is trimmed", code: "  uk ", want: "UK"},
		{name: "hyphenated unknown", code: "es-mx", want: "ES-MX"},
		{name: "extra segments dropped", code: "sr-latn-rs", want: "SR-LATN"},
		{name: "passthrough", code: "fil", want: "FIL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.code)
			if err != nil {
				t.Fatalf("Normalize(%q) unexpected error: %v", tt.code, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestNormalize_TwoCharactersUpperCased(t *testing.T) {
	for _, code := range []string{"ab", "xy", "Qz", "pl", "cs"} {
		got, err := Normalize(code)
		if err != nil {
			t.Fatalf("Normalize(%q) unexpected error: %v", code, err)
		}
		if got != strings.ToUpper(code) {
			t.Errorf("Normalize(%q) = %q, want %q", code, got, strings.ToUpper(code))
		}
	}
}

func TestNormalize_Empty(t *testing.T) {
	for _, code := range []string{"", "   "} {
		_, err := Normalize(code)
		if !errors.Is(err, ErrUnsupportedLanguageMapping) {
			t.Errorf("Normalize(%q) error = %v, want ErrUnsupportedLanguageMapping", code, err)
		}
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"EN-US", "en-gb", true},
		{"EN", "FR", false},
		{"", "EN", false},
		{"EN", "", false},
		{"pt-br", "PT-PT", true},
		{"ZH", "zh", true},
		{"EN", "EN-GB", true},
	}

	for _, tt := range tests {
		if got := Matches(tt.a, tt.b); got != tt.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSupported(t *testing.T) {
	if !Supported("pt-br") {
		t.Error("PT-BR should be supported")
	}
	if Supported("XX") {
		t.Error("XX should not be supported")
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("fr"); got != "French" {
		t.Errorf("DisplayName(fr) = %q, want French", got)
	}
	if got := DisplayName("not a tag!"); got != "not a tag!" {
		t.Errorf("DisplayName should fall back to the input, got %q", got)
	}
}

func TestKnown_Sorted(t *testing.T) {
	entries := Known()
	if len(entries) != len(providerOverrides) {
		t.Fatalf("Known() returned %d entries, want %d", len(entries), len(providerOverrides))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Code >= entries[i].Code {
			t.Fatalf("Known() not sorted at %d: %q >= %q", i, entries[i-1].Code, entries[i].Code)
		}
	}
}

func TestNewPair(t *testing.T) {
	pair, err := NewPair("EN", " pt ")
	if err != nil {
		t.Fatalf("NewPair unexpected error: %v", err)
	}
	if pair.A != "en" || pair.B != "pt" {
		t.Errorf("unexpected raw codes: %+v", pair)
	}
	if pair.ProviderA != "EN" || pair.ProviderB != "PT-PT" {
		t.Errorf("unexpected provider codes: %+v", pair)
	}

	if _, err := NewPair("en", ""); !errors.Is(err, ErrUnsupportedLanguageMapping) {
		t.Errorf("NewPair with empty member error = %v, want ErrUnsupportedLanguageMapping", err)
	}
}

func TestParsePair(t *testing.T) {
	pair, err := ParsePair("ar, fr")
	if err != nil {
		t.Fatalf("ParsePair unexpected error: %v", err)
	}
	if pair.ProviderA != "AR" || pair.ProviderB != "FR" {
		t.Errorf("unexpected pair: %+v", pair)
	}

	for _, metadata := range []string{"", "en", "en,fr,de"} {
		if _, err := ParsePair(metadata); err == nil {
			t.Errorf("ParsePair(%q) should fail", metadata)
		}
	}
}

func TestRecognitionCode(t *testing.T) {
	tests := map[string]string{
		"fr":    "fr-FR",
		"EN":    "en-US",
		"en-gb": "en-GB",
		"pt-BR": "pt-BR",
		" ja ":  "ja-JP",
		"!!":    "!!",
	}

	for code, want := range tests {
		if got := RecognitionCode(code); got != want {
			t.Errorf("RecognitionCode(%q) = %q, want %q", code, got, want)
		}
	}
}
