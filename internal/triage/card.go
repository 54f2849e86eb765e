// Package triage holds company rule cards, the deterministic triage matcher
// and the dispatcher that maps routing decisions onto handler routes.
package triage

import (
	"sort"
	"strings"
)

// Action is the handling action a card or upstream decision asks for.
type Action string

const (
	ActionBook            Action = "book"
	ActionTransfer        Action = "transfer"
	ActionEnd             Action = "end"
	ActionMessage         Action = "message"
	ActionRouteToScenario Action = "route_to_scenario"
)

// RuleCard is a company-configured triage rule. Cards are read-only once
// loaded; callers must not mutate the slices they hold.
type RuleCard struct {
	ID              string   `json:"id" yaml:"id"`
	Label           string   `json:"label" yaml:"label"`
	Priority        int      `json:"priority" yaml:"priority"`
	Keywords        []string `json:"keywords" yaml:"keywords"`
	ExcludeKeywords []string `json:"exclude_keywords,omitempty" yaml:"exclude_keywords"`
	Action          Action   `json:"action" yaml:"action"`
	ScenarioKey     string   `json:"scenario_key,omitempty" yaml:"scenario_key"`
	Intent          string   `json:"intent,omitempty" yaml:"intent"`
	Emergency       bool     `json:"emergency,omitempty" yaml:"emergency"`
	TransferTarget  string   `json:"transfer_target,omitempty" yaml:"transfer_target"`
	Active          *bool    `json:"active,omitempty" yaml:"active"`
	Lines           Lines    `json:"lines" yaml:"lines"`

	// Position is the configured order (YAML index or the position column).
	// It breaks priority ties.
	Position int `json:"position" yaml:"-"`
}

// Lines are the handler-specific lines a card carries for the response
// constructor.
type Lines struct {
	Opening      []string `json:"opening,omitempty" yaml:"opening"`
	TransferPre  string   `json:"transfer_pre,omitempty" yaml:"transfer_pre"`
	Explanation  string   `json:"explanation,omitempty" yaml:"explanation"`
	MessageIntro string   `json:"message_intro,omitempty" yaml:"message_intro"`
	Closing      string   `json:"closing,omitempty" yaml:"closing"`
	Generic      string   `json:"generic,omitempty" yaml:"generic"`
	Goal         string   `json:"goal,omitempty" yaml:"goal"`
}

// IsActive reports whether the card takes part in lookups. Cards without an
// explicit flag are active.
func (c RuleCard) IsActive() bool {
	return c.Active == nil || *c.Active
}

// Ordered returns the active cards sorted by priority (highest first), then
// configured position, then ID. The input is not modified.
func Ordered(cards []RuleCard) []RuleCard {
	out := make([]RuleCard, 0, len(cards))
	for _, c := range cards {
		if c.IsActive() {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// labelKey folds a label or triage tag for exact comparison:
// "Cooling Problem", "cooling-problem" and "cooling_problem" are equal.
func labelKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}
