package translate

// Short language codes used on the wire mapped to the provider's full
// locale tags. Codes not listed here are passed through unchanged.
var localeMap = map[string]string{
	"en": "en",
	"hi": "hi-IN",
	"bn": "bn-IN",
	"es": "es-ES",
	"fr": "fr-FR",
	"de": "de-DE",
	"ja": "ja-JP",
}

// ToLocale resolves a short language code to a provider locale tag.
// "auto" and the empty string resolve to fallback (empty fallback means
// let the provider auto-detect).
func ToLocale(code, fallback string) string {
	if code == "" || code == "auto" {
		return fallback
	}
	if locale, ok := localeMap[code]; ok {
		return locale
	}
	return code
}
