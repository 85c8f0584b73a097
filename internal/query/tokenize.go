package query

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenize parses a free-text query into terms, in source order.
//
// The grammar, tried at the start of every whitespace-delimited token:
//
//	-"quoted phrase"     bare phrase, quotes removed
//	-key:"quoted value"  keyed term, quotes removed
//	-key:value           keyed term; value runs to the next whitespace
//	-value               bare term
//
// A leading "-" or a leading case-insensitive "NOT " marks the term negated.
// Keys and values are lower-cased with whitespace collapsed. A bare keyed
// value holding commas expands into one term per non-empty piece, so
// "owner:a,b" yields owner:a and owner:b.
//
// Tokenize never fails: fragments that match no rule, such as an unterminated
// quote, degrade to bare terms. Fragments that normalize to nothing are
// dropped.
func Tokenize(input string) []Term {
	s := scanner{src: input}

	var terms []Term
	for {
		s.skipSpace()
		if s.pos >= len(s.src) {
			return terms
		}
		terms = s.next(terms)
	}
}

type scanner struct {
	src string
	pos int
}

func (s *scanner) next(terms []Term) []Term {
	negated := false
	switch {
	case s.src[s.pos] == '-':
		negated = true
		s.pos++
	default:
		if n := s.notPrefixLen(); n > 0 {
			negated = true
			s.pos += n
		}
	}

	if s.pos >= len(s.src) {
		return terms
	}
	if s.src[s.pos] == '"' {
		return s.quotedPhrase(terms, negated)
	}

	end := s.runEnd(s.pos)
	run := s.src[s.pos:end]

	colon := strings.IndexByte(run, ':')
	if colon <= 0 {
		// No key, or a key that normalizes to nothing: keep the whole run.
		s.pos = end
		return appendBare(terms, run, negated)
	}

	key := normalizeText(run[:colon])
	valueStart := s.pos + colon + 1
	if valueStart < len(s.src) && s.src[valueStart] == '"' {
		if closing := strings.IndexByte(s.src[valueStart+1:], '"'); closing >= 0 {
			inner := s.src[valueStart+1 : valueStart+1+closing]
			s.pos = valueStart + 1 + closing + 1
			return append(terms, Term{Key: key, Value: normalizeText(inner), Negated: negated})
		}

		s.pos = end
		value := strings.Trim(s.src[valueStart:end], `"`)
		return append(terms, Term{Key: key, Value: normalizeText(value), Negated: negated})
	}

	s.pos = end
	value := run[colon+1:]
	if strings.IndexByte(value, ',') < 0 {
		return append(terms, Term{Key: key, Value: normalizeText(value), Negated: negated})
	}

	for piece := range strings.SplitSeq(value, ",") {
		if normalized := normalizeText(piece); normalized != "" {
			terms = append(terms, Term{Key: key, Value: normalized, Negated: negated})
		}
	}
	return terms
}

func (s *scanner) quotedPhrase(terms []Term, negated bool) []Term {
	open := s.pos
	closing := strings.IndexByte(s.src[open+1:], '"')
	if closing < 0 {
		end := s.runEnd(open)
		s.pos = end
		return appendBare(terms, strings.Trim(s.src[open:end], `"`), negated)
	}

	s.pos = open + 1 + closing + 1
	return appendBare(terms, s.src[open+1:open+1+closing], negated)
}

func appendBare(terms []Term, raw string, negated bool) []Term {
	value := normalizeText(raw)
	if value == "" {
		return terms
	}
	return append(terms, Term{Value: value, Negated: negated})
}

// notPrefixLen returns the length of a leading "NOT" plus its trailing
// whitespace, or 0 when the token does not start with NOT followed by another
// token.
func (s *scanner) notPrefixLen() int {
	rest := s.src[s.pos:]
	if len(rest) < 4 || !strings.EqualFold(rest[:3], "not") {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(rest[3:])
	if !unicode.IsSpace(r) {
		return 0
	}
	next := s.spaceEnd(s.pos + 3)
	if next >= len(s.src) {
		return 0
	}
	return next - s.pos
}

func (s *scanner) skipSpace() {
	s.pos = s.spaceEnd(s.pos)
}

func (s *scanner) spaceEnd(from int) int {
	for i, r := range s.src[from:] {
		if !unicode.IsSpace(r) {
			return from + i
		}
	}
	return len(s.src)
}

func (s *scanner) runEnd(from int) int {
	for i, r := range s.src[from:] {
		if unicode.IsSpace(r) {
			return from + i
		}
	}
	return len(s.src)
}
