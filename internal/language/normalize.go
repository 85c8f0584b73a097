// Package language settles the language code stored with a feed item.
package language

import "strings"

// Undetermined is stored when neither the payload nor detection yields a code.
const Undetermined = "und"

// NormalizeTag normalizes a language tag to lowercase and "-" separators.
// It returns "" when the value is blank or has non-letter subtags.
func NormalizeTag(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}

	parts := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for _, part := range parts {
		if !isAlphaLower(part) {
			return ""
		}
	}
	return strings.Join(parts, "-")
}

// NormalizeCode returns the primary subtag, "en" for "en-US".
func NormalizeCode(raw string) string {
	tag := NormalizeTag(raw)
	if primary, _, found := strings.Cut(tag, "-"); found {
		return primary
	}
	return tag
}

// Resolve returns the item's language: the declared tag's primary subtag
// when usable, else the detected language of text, else Undetermined.
func Resolve(declared, text string) string {
	if code := NormalizeCode(declared); code != "" && code != Undetermined {
		return code
	}
	if code := DetectISO6391(text); code != "" {
		return code
	}
	return Undetermined
}

func isAlphaLower(value string) bool {
	for _, r := range value {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
