package lyrics

// DetectLanguage guesses an ISO 639-1 code from the script of the text. The
// first character in a recognized non-Latin script decides.
func DetectLanguage(content string) string {
	for _, r := range content {
		switch {
		case r >= '\u3040' && r <= '\u309f', r >= '\u30a0' && r <= '\u30ff': // Hiragana, Katakana
			return "ja"
		case r >= '\u4e00' && r <= '\u9fff':
			return "zh"
		case r >= '\uac00' && r <= '\ud7af':
			return "ko"
		case r >= '\u0590' && r <= '\u05ff':
			return "he"
		case r >= '\u0600' && r <= '\u06ff':
			return "ar"
		case r >= '\u0400' && r <= '\u04ff':
			return "ru"
		case r >= '\u0e00' && r <= '\u0e7f':
			return "th"
		}
	}
	return "en"
}

var rtlLanguages = map[string]bool{
	"ar": true, // Arabic
	"fa": true, // Persian (Farsi)
	"he": true, // Hebrew
	"ur": true, // Urdu
	"ps": true, // Pashto
	"sd": true, // Sindhi
	"ug": true, // Uyghur
	"yi": true, // Yiddish
	"ku": true, // Kurdish (some dialects)
	"dv": true, // Divehi (Maldivian)
}

// IsRTLLanguage reports whether langCode is written right to left.
func IsRTLLanguage(langCode string) bool {
	return rtlLanguages[langCode]
}
