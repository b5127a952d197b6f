package services

import (
	"regexp"
	"strings"
	"unicode"
)

// supportedLanguages is advisory: it drives UI pickers and name detection.
// Any syntactically valid code is still translated.
var supportedLanguages = map[string]string{
	"ar":    "Arabic",
	"bg":    "Bulgarian",
	"cs":    "Czech",
	"da":    "Danish",
	"de":    "German",
	"el":    "Greek",
	"en":    "English",
	"es":    "Spanish",
	"fa":    "Persian",
	"fi":    "Finnish",
	"fr":    "French",
	"he":    "Hebrew",
	"hi":    "Hindi",
	"hu":    "Hungarian",
	"id":    "Indonesian",
	"it":    "Italian",
	"ja":    "Japanese",
	"ko":    "Korean",
	"nl":    "Dutch",
	"no":    "Norwegian",
	"pl":    "Polish",
	"pt":    "Portuguese",
	"pt-BR": "Portuguese (Brazil)",
	"ro":    "Romanian",
	"ru":    "Russian",
	"sv":    "Swedish",
	"th":    "Thai",
	"tr":    "Turkish",
	"uk":    "Ukrainian",
	"vi":    "Vietnamese",
	"zh":    "Chinese",
	"zh-TW": "Chinese (Traditional)",
}

var languageCodePattern = regexp.MustCompile(`^[A-Za-z]{2}(-[A-Za-z]{2})?$`)

// SupportedLanguages returns a copy of the advisory code to display name map.
func SupportedLanguages() map[string]string {
	out := make(map[string]string, len(supportedLanguages))
	for code, name := range supportedLanguages {
		out[code] = name
	}
	return out
}

// IsValidLanguageCode accepts "xx" and "xx-YY" in any case.
func IsValidLanguageCode(code string) bool {
	return languageCodePattern.MatchString(strings.TrimSpace(code))
}

// NormalizeLanguageCode lowercases the language and uppercases the region:
// "PT-br" becomes "pt-BR". Other input is only trimmed.
func NormalizeLanguageCode(code string) string {
	code = strings.TrimSpace(code)
	if !IsValidLanguageCode(code) {
		return code
	}
	lang, region, found := strings.Cut(code, "-")
	if !found {
		return strings.ToLower(lang)
	}
	return strings.ToLower(lang) + "-" + strings.ToUpper(region)
}

// DetectLanguageCode resolves free-form input such as "fr", "French" or
// "Klingon" to a usable code. Known codes win over display names, display
// names over other valid codes, and as a last resort the code is derived
// from the input's own letters. It never fails.
func DetectLanguageCode(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return "en"
	}

	normalized := NormalizeLanguageCode(input)
	if _, ok := supportedLanguages[normalized]; ok {
		return normalized
	}

	for code, name := range supportedLanguages {
		if strings.EqualFold(name, input) {
			return code
		}
	}

	if IsValidLanguageCode(input) {
		return normalized
	}

	letters := make([]rune, 0, 2)
	for _, r := range strings.ToLower(input) {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			letters = append(letters, r)
			if len(letters) == 2 {
				return string(letters)
			}
		}
	}
	return "en"
}
