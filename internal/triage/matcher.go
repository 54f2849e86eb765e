package triage

import (
	"github.com/MikeSquared-Agency/frontdesk/internal/preprocess"
	"github.com/MikeSquared-Agency/frontdesk/internal/textmatch"
)

// Match is one card that matched an utterance.
type Match struct {
	Card    RuleCard `json:"card"`
	Hits    int      `json:"hits"`
	Matched []string `json:"matched"`
}

// MatchCards runs the deterministic triage matcher: every active card is scored by
// keyword hits against text, cards whose exclude keywords hit are dropped, and
// the survivors are returned best first. Ties keep card order (see Ordered).
func MatchCards(text string, cards []RuleCard) []Match {
	var matches []Match
	for _, c := range Ordered(cards) {
		hits, matched, ok := scoreCard(text, c)
		if !ok || hits == 0 {
			continue
		}
		matches = append(matches, Match{Card: c, Hits: hits, Matched: matched})
	}
	// Insertion sort keeps it stable and the lists are short.
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].Hits > matches[j-1].Hits; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
	return matches
}

// scoreCard returns the keyword hits for a card. ok is false when an exclude
// keyword matched, which disqualifies the card regardless of hits.
func scoreCard(text string, c RuleCard) (int, []string, bool) {
	if textmatch.Any(text, preprocess.NormalizeTerms(c.ExcludeKeywords)) {
		return 0, nil, false
	}
	hits, matched := textmatch.Hits(text, preprocess.NormalizeTerms(c.Keywords))
	return hits, matched, true
}

// Excluded reports whether any of the card's exclude keywords occur in text.
func Excluded(text string, c RuleCard) bool {
	_, _, ok := scoreCard(text, c)
	return !ok
}
