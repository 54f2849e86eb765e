// Package emotion scores caller emotion from transcript text. It is purely
// pattern based and never calls a model.
package emotion

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/MikeSquared-Agency/frontdesk/internal/textmatch"
)

// CallerHistory carries what is known about the caller from earlier calls.
type CallerHistory struct {
	PriorCalls int `json:"prior_calls"`
}

// Result is the output of one analysis pass.
type Result struct {
	Primary   Emotion             `json:"primary"`
	Intensity float64             `json:"intensity"`
	Scores    map[Emotion]float64 `json:"scores,omitempty"`
	Signals   []string            `json:"signals,omitempty"`
}

// Analyzer scores text against the fixed category table.
type Analyzer struct {
	categories []category
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{categories: categories}
}

var (
	repeatedPunct = regexp.MustCompile(`[!?]{2,}`)
	hazardRe      = phraseRegexp(hazardPhrases)
	claimRe       = phraseRegexp(emergencyWords)
	negationRe    = phraseRegexp(emergencyNegations)
	benignRe      = phraseRegexp(benignHazardTerms)
)

// Analyze scores text and returns the primary emotion and its intensity.
// history may be nil.
func (a *Analyzer) Analyze(text string, history *CallerHistory) Result {
	text = strings.TrimSpace(text)
	scores := make(map[Emotion]float64, len(a.categories))
	var signals []string

	primary := Neutral
	best := 0.0
	for _, c := range a.categories {
		score, hits := scoreCategory(text, c)
		scores[c.emotion] = score
		for _, h := range hits {
			signals = append(signals, fmt.Sprintf("%s:%s", strings.ToLower(string(c.emotion)), h))
		}
		if score > best {
			best = score
			primary = c.emotion
		}
	}

	if best < minPrimary {
		return Result{Primary: Neutral, Intensity: 0, Scores: scores}
	}

	boost, boostSignals := intensityBoost(text, history)
	signals = append(signals, boostSignals...)

	return Result{
		Primary:   primary,
		Intensity: clamp(best + boost),
		Scores:    scores,
		Signals:   signals,
	}
}

// scoreCategory returns the clamped score for one category and the terms that
// hit. Any disqualifier vetoes the category outright.
func scoreCategory(text string, c category) (float64, []string) {
	if textmatch.Any(text, c.disqualifiers) {
		return 0, nil
	}
	kw, kwHits := textmatch.Hits(text, c.keywords)
	ph, phHits := textmatch.Hits(text, c.phrases)
	raw := (float64(kw)*keywordPoints + float64(ph)*phrasePoints) * c.multiplier
	return clamp(raw), append(kwHits, phHits...)
}

// intensityBoost adds signals that raise intensity without picking the
// category.
func intensityBoost(text string, history *CallerHistory) (float64, []string) {
	var boost float64
	var signals []string

	if runs := len(repeatedPunct.FindAllString(text, -1)); runs > 0 {
		boost += math.Min(float64(runs)*punctBoost, maxPunctBoost)
		signals = append(signals, "repeated_punctuation")
	}

	raw := strings.Fields(text)
	caps := 0
	for _, tok := range raw {
		if isShouted(tok) {
			caps++
		}
	}
	if caps > 0 {
		boost += math.Min(float64(caps)*capsBoost, maxCapsBoost)
		signals = append(signals, "all_caps")
	}

	words := textmatch.Words(text)
	for i := 1; i < len(words); i++ {
		if words[i] == words[i-1] && len(words[i]) > 1 {
			boost += repeatBoost
			signals = append(signals, "word_repetition")
			break
		}
	}

	swears := 0
	for _, w := range words {
		if profanity[w] {
			swears++
		}
	}
	if swears > 0 {
		boost += math.Min(float64(swears)*profanityBoost, maxProfanity)
		signals = append(signals, "profanity")
	}

	if history != nil {
		switch {
		case history.PriorCalls >= 2:
			boost += repeatCaller
			signals = append(signals, "repeat_caller")
		case history.PriorCalls == 1:
			boost += secondCall
			signals = append(signals, "second_call")
		}
	}

	return boost, signals
}

// isShouted reports whether a token is an all-caps word of at least three
// letters that is not a known acronym.
func isShouted(tok string) bool {
	tok = strings.Trim(tok, ",.!?;:'\"")
	if len(tok) < 3 || acronyms[tok] {
		return false
	}
	letters := 0
	for _, r := range tok {
		switch {
		case r >= 'A' && r <= 'Z':
			letters++
		case r >= 'a' && r <= 'z':
			return false
		}
	}
	return letters >= 3
}

// IsEmergency is a cheap safety check for emergency language. It does not run
// the scoring pass.
func IsEmergency(text string) bool {
	lower := benignRe.ReplaceAllString(strings.ToLower(text), " ")
	if hazardRe.MatchString(lower) {
		return true
	}
	return claimRe.MatchString(negationRe.ReplaceAllString(lower, " "))
}

func phraseRegexp(phrases []string) *regexp.Regexp {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(strings.ToLower(p))
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
