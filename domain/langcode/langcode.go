// Package langcode maps user-facing locale codes to the codes the
// translation provider expects, and compares codes loosely across regional
// variants.
package langcode

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ErrUnsupportedLanguageMapping is returned when a code cannot be mapped to a
// provider code at all.
var ErrUnsupportedLanguageMapping = errors.New("unsupported language mapping")

// providerOverrides covers the codes whose provider form is not simply the
// upper-cased input. Plain "pt" resolves to European Portuguese and every
// Chinese variant collapses to ZH.
var providerOverrides = map[string]string{
	"en":    "EN",
	"en-us": "EN-US",
	"en-gb": "EN-GB",
	"fr":    "FR",
	"es":    "ES",
	"de":    "DE",
	"it":    "IT",
	"pt":    "PT-PT",
	"pt-pt": "PT-PT",
	"pt-br": "PT-BR",
	"ru":    "RU",
	"ja":    "JA",
	"zh":    "ZH",
	"zh-cn": "ZH",
	"zh-tw": "ZH",
	"ko":    "KO",
	"ar":    "AR",
	"hi":    "HI",
	"tr":    "TR",
	"nl":    "NL",
	"sv":    "SV",
}

// supportedTargets is the provider's documented target language list.
var supportedTargets = map[string]bool{
	"AR": true, "BG": true, "CS": true, "DA": true, "DE": true, "EL": true,
	"EN": true, "EN-GB": true, "EN-US": true, "ES": true, "ET": true,
	"FI": true, "FR": true, "HI": true, "HU": true, "ID": true, "IT": true,
	"JA": true, "KO": true, "LT": true, "LV": true, "NB": true, "NL": true,
	"PL": true, "PT": true, "PT-BR": true, "PT-PT": true, "RO": true,
	"RU": true, "SK": true, "SL": true, "SV": true, "TR": true, "UK": true,
	"ZH": true, "ZH-HANS": true, "ZH-HANT": true,
}

// Normalize maps code to the provider's language code. It only fails for an
// empty code; anything it does not recognize is passed through upper-cased.
// Use Supported for strict validation.
func Normalize(code string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(code))
	if normalized == "" {
		return "", fmt.Errorf("%w: empty language code", ErrUnsupportedLanguageMapping)
	}

	if override, ok := providerOverrides[normalized]; ok {
		return override, nil
	}

	if len(normalized) == 2 {
		return strings.ToUpper(normalized), nil
	}

	if strings.Contains(normalized, "-") {
		parts := strings.Split(normalized, "-")
		return strings.ToUpper(parts[0]) + "-" + strings.ToUpper(parts[1]), nil
	}

	return strings.ToUpper(normalized), nil
}

// Matches reports whether a and b name the same language, ignoring case and
// region subtags. An empty code never matches.
func Matches(a, b string) bool {
	if a == "" || b == "" {
		return false
	}

	aNorm := strings.ToUpper(a)
	bNorm := strings.ToUpper(b)
	if aNorm == bNorm {
		return true
	}

	return primarySubtag(aNorm) == primarySubtag(bNorm)
}

func primarySubtag(code string) string {
	if i := strings.Index(code, "-"); i >= 0 {
		return code[:i]
	}
	return code
}

// Supported reports whether providerCode is a target the provider accepts.
func Supported(providerCode string) bool {
	return supportedTargets[strings.ToUpper(providerCode)]
}

// DisplayName returns the English name of code, or code itself when it is
// not a parseable BCP 47 tag.
func DisplayName(code string) string {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return code
	}
	name := display.English.Tags().Name(tag)
	if name == "" {
		return code
	}
	return name
}

// Entry describes one well-known user-facing code.
type Entry struct {
	Code         string `json:"code"`
	ProviderCode string `json:"provider_code"`
	Name         string `json:"name"`
}

// Known lists the codes with an explicit provider mapping, sorted by code.
func Known() []Entry {
	entries := make([]Entry, 0, len(providerOverrides))
	for code, provider := range providerOverrides {
		entries = append(entries, Entry{
			Code:         code,
			ProviderCode: provider,
			Name:         DisplayName(code),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Code < entries[j].Code
	})
	return entries
}

// RecognitionCode expands code into a regional BCP 47 tag for speech
// recognizers, filling in the most likely region ("fr" becomes "fr-FR").
// Unparseable codes are returned trimmed.
func RecognitionCode(code string) string {
	code = strings.TrimSpace(code)
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	base, _ := tag.Base()
	region, _ := tag.Region()
	if region.String() == "ZZ" {
		return base.String()
	}
	return base.String() + "-" + region.String()
}
