package i18n

import "strings"

// DefaultLanguage is used when the Accept-Language header is absent or unknown.
const DefaultLanguage = "English"

var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"ru": "Russian",
	"zh": "Chinese",
	"ja": "Japanese",
	"ar": "Arabic",
	"hi": "Hindi",
	"nl": "Dutch",
	"tr": "Turkish",
	"pl": "Polish",
	"sv": "Swedish",
	"fi": "Finnish",
	"da": "Danish",
	"no": "Norwegian",
	"ko": "Korean",
	"he": "Hebrew",
	"el": "Greek",
	"cs": "Czech",
	"hu": "Hungarian",
}

// FromAcceptLanguage maps an Accept-Language header to a language name
// the evaluation prompts understand. "es-AR,es;q=0.9" -> "Spanish".
func FromAcceptLanguage(header string) string {
	if header == "" {
		return DefaultLanguage
	}

	first := header
	if idx := strings.Index(first, ","); idx != -1 {
		first = first[:idx]
	}
	if idx := strings.Index(first, ";"); idx != -1 {
		first = first[:idx]
	}
	if idx := strings.Index(first, "-"); idx != -1 {
		first = first[:idx]
	}

	if name, ok := languageNames[strings.ToLower(strings.TrimSpace(first))]; ok {
		return name
	}
	return DefaultLanguage
}
