package router

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/MikeSquared-Agency/frontdesk/internal/preprocess"
	"github.com/MikeSquared-Agency/frontdesk/internal/textmatch"
)

const (
	ruleConfidenceBase = 0.35
	ruleConfidenceStep = 0.10
	ruleConfidenceCap  = 0.60
)

// Built-in intent targets appended after company rules.
const (
	TargetBooking     = "booking"
	TargetTransfer    = "transfer"
	TargetWrongNumber = "wrong_number"
)

// BuiltinRules returns the intent rules every company gets after its own
// cards. "what are your hours" deliberately matches none of them.
func BuiltinRules() []Rule {
	return []Rule{
		{
			Name:             TargetBooking,
			Keywords:         []string{"schedule", "appointment", "book", "booking", "send someone", "come out", "set up a visit"},
			NegativeKeywords: []string{"cancel", "reschedule"},
		},
		{
			Name:     TargetTransfer,
			Keywords: []string{"speak to a person", "talk to a person", "speak to someone", "real person", "human", "representative", "manager", "operator"},
			Priority: PriorityHigh,
		},
		{
			Name:     TargetWrongNumber,
			Keywords: []string{"wrong number", "didn't mean to call", "dialed the wrong"},
		},
	}
}

// matchRules is the deterministic tier: rules in order, negative keywords
// disqualify, most keyword hits wins, ties keep the earlier rule.
func matchRules(_ context.Context, req Request) (Decision, error) {
	best := -1
	bestHits := 0
	var bestMatched []string
	for i, rule := range req.Rules {
		if textmatch.Any(req.UserInput, preprocess.NormalizeTerms(rule.NegativeKeywords)) {
			continue
		}
		hits, matched := textmatch.Hits(req.UserInput, preprocess.NormalizeTerms(rule.Keywords))
		if hits > bestHits {
			best, bestHits, bestMatched = i, hits, matched
		}
	}
	if best < 0 {
		return Decision{}, ErrNoRuleMatch
	}

	rule := req.Rules[best]
	priority := rule.Priority
	if rule.Emergency {
		priority = PriorityEmergency
	}
	return Decision{
		Target:     rule.Name,
		Thought:    fmt.Sprintf("keyword rule %s matched %s", rule.Name, strings.Join(bestMatched, ", ")),
		Confidence: RuleConfidence(bestHits),
		Priority:   priority,
		Success:    true,
		Tier:       TierRule,
	}, nil
}

// RuleConfidence is the confidence the rule tier assigns to a match with the
// given number of keyword hits.
func RuleConfidence(hits int) float64 {
	return math.Min(ruleConfidenceCap, ruleConfidenceBase+ruleConfidenceStep*float64(hits))
}
