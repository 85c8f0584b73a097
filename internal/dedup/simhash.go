package dedup

import (
	"hash/fnv"
	"strings"
	"unicode"
)

// HashBits is the width of hashes produced by SemanticHash.
const HashBits = 64

// SemanticHash returns a 64-character string of '0' and '1', the simhash of
// text's word tokens, most significant bit first. Texts without any letters or
// digits hash to "".
func SemanticHash(text string) string {
	value, ok := simhash64(text)
	if !ok {
		return ""
	}

	buf := make([]byte, HashBits)
	for bit := 0; bit < HashBits; bit++ {
		if value&(uint64(1)<<(HashBits-1-bit)) != 0 {
			buf[bit] = '1'
		} else {
			buf[bit] = '0'
		}
	}
	return string(buf)
}

func simhash64(text string) (uint64, bool) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0, false
	}

	var weights [HashBits]int
	for _, token := range tokens {
		h := hashToken64(token)
		for bit := 0; bit < HashBits; bit++ {
			if h&(uint64(1)<<bit) != 0 {
				weights[bit]++
			} else {
				weights[bit]--
			}
		}
	}

	var result uint64
	for bit := 0; bit < HashBits; bit++ {
		if weights[bit] > 0 {
			result |= uint64(1) << bit
		}
	}
	return result, true
}

func tokenize(text string) []string {
	normalized := normalizeText(text)
	if normalized == "" {
		return nil
	}
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func normalizeText(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	lastSpace := false
	for _, r := range trimmed {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}

func hashToken64(token string) uint64 {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(token))
	return hasher.Sum64()
}
