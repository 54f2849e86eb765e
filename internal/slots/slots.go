// Package slots pulls booking details out of a normalized utterance with
// deterministic patterns. It never guesses: a slot is only returned when the
// caller plainly said it.
package slots

import (
	"regexp"
	"strings"

	"github.com/MikeSquared-Agency/frontdesk/internal/callctx"
	"github.com/MikeSquared-Agency/frontdesk/internal/textmatch"
)

var (
	phoneRe = regexp.MustCompile(`(?:\+?1[\s.-]?)?\(?\b(\d{3})\)?[\s.-]?(\d{3})[\s.-]?(\d{4})\b`)
	emailRe = regexp.MustCompile(`(?i)\b[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}\b`)

	nameRe = regexp.MustCompile(`([Mm]y name is|[Mm]y name's|[Tt]his is|[Nn]ame is|[Cc]all me)\s+([A-Z][a-zA-Z'-]+(?:\s+[A-Z][a-zA-Z'-]+)?)`)

	// Groups: 1 address, 2 words between number and suffix, 3 suffix.
	addressRe = regexp.MustCompile(`(?i)\b(\d{1,6}\s+((?:[a-z0-9.'-]+\s+){1,4}?)(street|st|avenue|ave|road|rd|drive|dr|lane|ln|court|ct|boulevard|blvd|way|place|pl|circle|cir|terrace|ter|parkway|pkwy|highway|hwy|trail|trl)\b\.?(?:\s*,?\s*(?:apt|apartment|unit|suite|#)\s*[a-z0-9-]+)?)`)
	cityRe    = regexp.MustCompile(`^\s*,?\s*(?:in\s+)?([A-Z][a-zA-Z.'-]*(?:\s+[A-Z][a-zA-Z.'-]*){0,2})\b`)
	zipRe     = regexp.MustCompile(`\b(\d{5})(?:-\d{4})?\b`)
	zipCueRe  = regexp.MustCompile(`(?i)\bzip(?:\s*code)?(?:\s+is)?\s*:?\s*(\d{5})\b`)

	scheduleRe = regexp.MustCompile(`(?i)\b(ASAP|as soon as possible|any ?time|today|tonight|` +
		`tomorrow(?: morning| afternoon| evening)?|` +
		`this (?:morning|afternoon|evening|week|weekend)|next week|` +
		`(?:next |this )?(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)(?: morning| afternoon| evening)?)\b`)

	sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]*`)
)

// nameStopWords are capitalized words that follow a name lead-in without
// being a name ("this is Monday", "this is AC").
var nameStopWords = map[string]bool{
	"A": true, "An": true, "The": true, "My": true, "Your": true, "It": true,
	"AC": true, "HVAC": true, "ASAP": true, "Monday": true, "Tuesday": true,
	"Wednesday": true, "Thursday": true, "Friday": true, "Saturday": true,
	"Sunday": true, "Not": true, "Urgent": true, "Really": true,
}

// nameAdjectives follow "this is" often enough that they need their own
// list ("this is Ridiculous").
var nameAdjectives = map[string]bool{
	"Ridiculous": true, "Crazy": true, "Insane": true, "Terrible": true,
	"Awful": true, "Horrible": true, "Unacceptable": true, "Important": true,
	"Serious": true, "Urgent": true, "Bad": true, "Great": true, "So": true,
	"Just": true, "Still": true, "About": true, "Regarding": true,
	"Absolutely": true, "Definitely": true, "Frustrating": true, "Annoying": true,
}

// ambiguousSuffixes are street suffixes that are also everyday words. They
// only count when capitalized ("Sunset Way", not "by the way").
var ambiguousSuffixes = map[string]bool{
	"way": true, "place": true, "pl": true, "drive": true, "dr": true,
	"court": true, "ct": true, "circle": true, "cir": true, "terrace": true,
	"ter": true, "trail": true, "trl": true,
}

// notStreetWords never appear between a house number and a street suffix.
var notStreetWords = map[string]bool{
	"times": true, "time": true, "days": true, "day": true, "hours": true,
	"hour": true, "minutes": true, "weeks": true, "months": true, "years": true,
	"by": true, "the": true, "no": true, "and": true, "or": true, "but": true,
	"to": true, "in": true, "on": true, "at": true, "for": true, "of": true,
	"is": true, "was": true, "it": true, "this": true, "that": true, "i": true,
	"you": true, "we": true, "my": true, "your": true, "degrees": true,
	"people": true, "calls": true, "dollars": true, "bucks": true,
}

// equipment is checked in order; the first term found wins.
var equipment = []string{
	"mini-split", "heat pump", "water heater", "air handler", "electrical panel",
	"fuse box", "garbage disposal", "furnace", "boiler", "thermostat",
	"condenser", "compressor", "HVAC", "AC", "dishwasher", "refrigerator",
	"washer", "dryer", "oven", "toilet", "sink", "faucet", "shower",
	"sump pump", "GFCI", "outlet", "breaker", "ceiling fan", "generator",
}

var problemCues = []string{
	"not working", "stopped working", "isn't working", "won't", "doesn't",
	"stopped", "broken", "broke", "leak", "leaking", "dripping", "clogged",
	"backed up", "no heat", "no hot water", "not cooling", "not heating",
	"warm air", "cold air", "noise", "noisy", "banging", "rattling",
	"smell", "smells", "tripping", "tripped", "flickering", "sparking",
	"frozen", "iced up", "overflowing", "keeps", "blowing",
}

var accessCues = []string{
	"gate code", "lockbox", "lock box", "key is under", "key under", "dog",
	"dogs", "side door", "back door", "side gate", "buzz", "buzzer",
	"park in", "parking", "door code", "call when",
}

const maxSummaryLen = 160

// Extract returns every slot it can find in text. Fields not mentioned are
// left empty; callers merge the result into the call context.
func Extract(text string) callctx.Extracted {
	var e callctx.Extracted
	text = strings.TrimSpace(text)
	if text == "" {
		return e
	}

	e.Contact.Email = emailRe.FindString(text)
	e.Contact.Phone = phone(text)
	e.Contact.Name = name(text)

	if loc := address(text); loc != nil {
		e.Location.Address = strings.TrimRight(strings.TrimSpace(text[loc[2]:loc[3]]), ",")
		rest := text[loc[1]:]
		if m := cityRe.FindStringSubmatch(rest); m != nil && properNoun(m[1]) {
			e.Location.City = m[1]
		}
		if m := zipRe.FindStringSubmatch(rest); m != nil {
			e.Location.Zip = m[1]
		}
	}
	if e.Location.Zip == "" {
		if m := zipCueRe.FindStringSubmatch(text); m != nil {
			e.Location.Zip = m[1]
		}
	}

	if m := scheduleRe.FindString(text); m != "" {
		e.Scheduling.Preference = m
	}

	for _, term := range equipment {
		if textmatch.Contains(text, term) {
			e.Problem.Equipment = term
			break
		}
	}

	for _, s := range sentences(text) {
		if e.Problem.Summary == "" && textmatch.Any(s, problemCues) {
			e.Problem.Summary = truncate(s, maxSummaryLen)
		}
		if e.Access.Notes == "" && textmatch.Any(s, accessCues) {
			e.Access.Notes = s
		}
	}
	return e
}

// phone formats the first North American number as 555-123-4567.
func phone(text string) string {
	m := phoneRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1] + "-" + m[2] + "-" + m[3]
}

// address returns the submatch indexes of the first plausible street
// address, or nil.
func address(text string) []int {
	for _, loc := range addressRe.FindAllStringSubmatchIndex(text, -1) {
		suffix := text[loc[6]:loc[7]]
		if ambiguousSuffixes[strings.ToLower(suffix)] && !startsUpper(suffix) {
			continue
		}
		ok := true
		for _, w := range strings.Fields(text[loc[4]:loc[5]]) {
			if notStreetWords[strings.ToLower(w)] {
				ok = false
				break
			}
		}
		if ok {
			return loc
		}
	}
	return nil
}

func startsUpper(s string) bool {
	return s != "" && s[0] >= 'A' && s[0] <= 'Z'
}

func name(text string) string {
	m := nameRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	parts := strings.Fields(m[2])
	if nameStopWords[parts[0]] {
		return ""
	}
	if strings.EqualFold(m[1], "this is") && (nameAdjectives[parts[0]] || adjectiveLike(parts[0])) {
		return ""
	}
	if len(parts) == 2 && nameStopWords[parts[1]] {
		parts = parts[:1]
	}
	return strings.Join(parts, " ")
}

// adjectiveLike catches words such as "Outrageous" or "Unbelievable" after
// "this is". Names with these endings are rare enough to give up.
func adjectiveLike(w string) bool {
	w = strings.ToLower(w)
	for _, suf := range []string{"ous", "ible", "able", "ful", "ive", "ing", "ly"} {
		if len(w) > len(suf)+2 && strings.HasSuffix(w, suf) {
			return true
		}
	}
	return false
}

// properNoun rejects capitalized phrases that contain a stop word.
func properNoun(s string) bool {
	for _, w := range strings.Fields(s) {
		if nameStopWords[w] {
			return false
		}
	}
	return s != ""
}

func sentences(text string) []string {
	var out []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
