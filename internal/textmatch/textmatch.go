// Package textmatch holds the phrase matching shared by the signal extractors.
// Matching is case-insensitive and word-boundary safe: "fire" matches
// "there's a fire!" but not "fireplace".
package textmatch

import (
	"strings"
	"unicode"
)

// Contains reports whether phrase occurs in text on word boundaries.
// Both arguments are compared case-insensitively.
func Contains(text, phrase string) bool {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return false
	}
	return containsLower(strings.ToLower(text), phrase)
}

// containsLower expects both inputs already lowercased.
func containsLower(text, phrase string) bool {
	from := 0
	for from <= len(text)-len(phrase) {
		i := strings.Index(text[from:], phrase)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(phrase)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		from = start + 1
	}
	return false
}

// Hits counts how many phrases occur in text and returns the ones that did,
// in the order given. Duplicate phrases count once.
func Hits(text string, phrases []string) (int, []string) {
	lower := strings.ToLower(text)
	seen := make(map[string]bool, len(phrases))
	var matched []string
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		if containsLower(lower, p) {
			matched = append(matched, p)
		}
	}
	return len(matched), matched
}

// Any reports whether at least one phrase occurs in text.
func Any(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && containsLower(lower, p) {
			return true
		}
	}
	return false
}

// Words splits text into lowercase word tokens, dropping punctuation.
// Apostrophes inside words are kept ("don't", "it's").
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r) && r != '\''
	})
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	return !isWordByte(s[i-1])
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	return !isWordByte(s[i])
}

// isWordByte treats any non-ASCII byte as part of a word so multi-byte runes
// never create false boundaries.
func isWordByte(b byte) bool {
	if b >= 0x80 {
		return true
	}
	return isWordRune(rune(b))
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
