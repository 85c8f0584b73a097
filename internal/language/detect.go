package language

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

// minDetectLetters keeps detection off very short snippets, where lingua
// guesses poorly.
const minDetectLetters = 6

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// DetectISO6391 returns the two-letter code of the language text is written
// in, or "" when text is too short or detection is unsure.
func DetectISO6391(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}

	letters := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letters++
			if letters >= minDetectLetters {
				break
			}
		}
	}
	if letters < minDetectLetters {
		return ""
	}

	detected, ok := getDetector().DetectLanguageOf(sample)
	if !ok {
		return ""
	}

	code := strings.ToLower(detected.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			WithPreloadedLanguageModels().
			Build()
	})
	return detector
}
