package conversation

import (
	"fmt"
	"strings"
)

// Language is the session language chosen by the patient.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageHindi   Language = "hi"
	LanguageTamil   Language = "ta"
)

var greetings = map[Language]string{
	LanguageEnglish: "Hello, I am HealthVoice. Before we begin, may I please know your name?",
	LanguageHindi:   "नमस्ते, मैं HealthVoice हूँ। शुरू करने से पहले, क्या मैं आपका नाम जान सकता हूँ?",
	LanguageTamil:   "வணக்கம், நான் HealthVoice. நாம் தொடங்குவதற்கு முன், உங்கள் பெயரை நான் தெரிந்து கொள்ளலாமா?",
}

var speechLocales = map[Language]string{
	LanguageEnglish: "en-US",
	LanguageHindi:   "hi-IN",
	LanguageTamil:   "ta-IN",
}

// ParseLanguage normalizes a language code. An empty value means English.
func ParseLanguage(raw string) (Language, error) {
	code := Language(strings.ToLower(strings.TrimSpace(raw)))
	if code == "" {
		return LanguageEnglish, nil
	}
	if _, ok := greetings[code]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, raw)
	}
	return code, nil
}

// Greeting returns the opening BOT line for a new session.
func (l Language) Greeting() string {
	if text, ok := greetings[l]; ok {
		return text
	}
	return greetings[LanguageEnglish]
}

// SpeechLocale returns the BCP-47 locale used for text-to-speech.
func (l Language) SpeechLocale() string {
	if locale, ok := speechLocales[l]; ok {
		return locale
	}
	return speechLocales[LanguageEnglish]
}
