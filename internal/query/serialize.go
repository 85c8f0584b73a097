package query

import "strings"

// Serialize renders terms back into query text, one space between terms.
// Zero terms are skipped.
//
// Values are quoted only where leaving them bare would make Tokenize read
// them differently, so Tokenize(Serialize(terms)) returns the same keys,
// values and negation. The original spelling, quoting and comma grouping of
// the input are not reconstructed.
func Serialize(terms []Term) string {
	var b strings.Builder
	for _, term := range terms {
		if term.IsZero() {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		writeTerm(&b, term)
	}
	return strings.TrimSpace(b.String())
}

func writeTerm(b *strings.Builder, term Term) {
	if term.IsZero() {
		return
	}
	if term.Negated {
		b.WriteByte('-')
	}
	if term.HasKey() {
		b.WriteString(term.Key)
		b.WriteByte(':')
		switch {
		case strings.HasPrefix(term.Value, `"`):
			// Only comma expansion yields a keyed value with a leading quote.
			// An empty leading piece routes it back through that path.
			b.WriteByte(',')
			b.WriteString(term.Value)
		case containsSpace(term.Value) || strings.ContainsRune(term.Value, ','):
			writeQuoted(b, term.Value)
		default:
			b.WriteString(term.Value)
		}
		return
	}
	// Quotes cannot be escaped. Bare values holding one come from a single
	// unquoted run and are written back as that run.
	if !strings.ContainsRune(term.Value, '"') && needsQuotesBare(term.Value) {
		writeQuoted(b, term.Value)
		return
	}
	b.WriteString(term.Value)
}

func needsQuotesBare(value string) bool {
	switch {
	case containsSpace(value):
		return true
	case strings.HasPrefix(value, "-"):
		return true
	case strings.ContainsRune(value, ':'):
		return true
	case strings.EqualFold(value, "not"):
		return true
	default:
		return false
	}
}

func writeQuoted(b *strings.Builder, value string) {
	b.WriteByte('"')
	b.WriteString(value)
	b.WriteByte('"')
}
