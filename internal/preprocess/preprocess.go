// Package preprocess normalizes raw transcript text before any classification
// runs. Everything here is pure and safe to call from concurrent calls.
package preprocess

import (
	"regexp"
	"sort"
	"strings"
)

// canonical maps lowercase variants to their canonical spelling. Every
// canonical value must normalize to itself so Normalize stays idempotent.
var canonical = map[string]string{
	// trade vocabulary
	"a/c":         "AC",
	"a.c":         "AC",
	"ac":          "AC",
	"air con":     "AC",
	"aircon":      "AC",
	"hvac":        "HVAC",
	"h vac":       "HVAC",
	"h.v.a.c":     "HVAC",
	"asap":        "ASAP",
	"a.s.a.p":     "ASAP",
	"co2":         "CO2",
	"heatpump":    "heat pump",
	"heat-pump":   "heat pump",
	"waterheater": "water heater",
	"gfci":        "GFCI",
	"gfi":         "GFCI",
	"breaker box": "electrical panel",
	"fusebox":     "fuse box",
	"mini split":  "mini-split",
	"minisplit":   "mini-split",
	"thermo stat": "thermostat",

	// transcription typos
	"furnance":      "furnace",
	"furnice":       "furnace",
	"thermastat":    "thermostat",
	"thermostate":   "thermostat",
	"compresser":    "compressor",
	"condensor":     "condenser",
	"disposel":      "disposal",
	"dispoal":       "disposal",
	"dishwaser":     "dishwasher",
	"refridgerator": "refrigerator",
	"fridgerator":   "refrigerator",
	"plumer":        "plumber",
	"electrican":    "electrician",
	"leeking":       "leaking",
	"appointmnet":   "appointment",
	"apointment":    "appointment",
	"tommorow":      "tomorrow",
	"tomorow":       "tomorrow",
	"wensday":       "Wednesday",
	"wednesday":     "Wednesday",
	"cant":          "can't",
	"dont":          "don't",
	"wont":          "won't",
	"isnt":          "isn't",
	"doesnt":        "doesn't",
}

var (
	variantRe = buildVariantRegexp(canonical)

	whitespaceRe     = regexp.MustCompile(`\s+`)
	spaceBeforePunct = regexp.MustCompile(`\s+([,.!?;:])`)
	missingSpace     = regexp.MustCompile(`([,!?;:])([A-Za-z])`)
)

// buildVariantRegexp compiles the variants into one alternation ordered
// longest first. RE2 alternation is leftmost-first, so that order gives
// longest-match at every position.
func buildVariantRegexp(table map[string]string) *regexp.Regexp {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// Normalize trims, collapses whitespace, canonicalizes spelling variants and
// typos, and fixes punctuation spacing. It is idempotent. On any internal
// failure it returns the trimmed input.
func Normalize(text string) (out string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			out = trimmed
		}
	}()

	s := trimmed
	for i := 0; i < maxPasses; i++ {
		next := normalizeOnce(s)
		if next == s {
			break
		}
		s = next
	}
	if s == "" {
		return trimmed
	}
	return s
}

// maxPasses bounds the fixed-point loop in Normalize.
const maxPasses = 4

func normalizeOnce(s string) string {
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = spaceBeforePunct.ReplaceAllString(s, "$1")
	s = missingSpace.ReplaceAllString(s, "$1 $2")
	s = variantRe.ReplaceAllStringFunc(s, func(m string) string {
		key := whitespaceRe.ReplaceAllString(strings.ToLower(m), " ")
		if c, ok := canonical[key]; ok {
			return c
		}
		return m
	})
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// NormalizeTerms applies Normalize to configured keywords and lowercases them,
// dropping blanks, so "a/c" in a rule matches "AC" in a normalized utterance.
func NormalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if n := strings.ToLower(Normalize(t)); n != "" {
			out = append(out, n)
		}
	}
	return out
}
