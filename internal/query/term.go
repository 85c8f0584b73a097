// Package query converts free-form search text into ordered search terms and back.
package query

import (
	"strings"
	"unicode"
)

// Term is one parsed unit of a search query.
//
// An empty Key means the term is a bare value. A keyed term may carry an empty
// Value when the user typed only "key:".
type Term struct {
	Key     string `json:"key,omitempty"`
	Value   string `json:"value"`
	Negated bool   `json:"negated,omitempty"`
}

// HasKey reports whether the term is a key:value term.
func (t Term) HasKey() bool {
	return t.Key != ""
}

// IsZero reports whether the term carries neither a key nor a value.
func (t Term) IsZero() bool {
	return t.Key == "" && t.Value == ""
}

// String renders the term the way Serialize does.
func (t Term) String() string {
	var b strings.Builder
	writeTerm(&b, t)
	return b.String()
}

// normalizeText lower-cases, collapses internal whitespace runs to a single
// space and trims the result.
func normalizeText(input string) string {
	if input == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(input))
	pendingSpace := false
	for _, r := range input {
		if unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func containsSpace(value string) bool {
	return strings.IndexFunc(value, unicode.IsSpace) >= 0
}
