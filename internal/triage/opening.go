package triage

import (
	"strings"
	"unicode/utf8"
)

// maxGoalLen caps how long a goal statement may be before it is considered
// unsuitable as an opening line.
const maxGoalLen = 120

// OpeningLine selects the line a matched card contributes for route:
// explicit opening line, then the route's playbook line, then the generic
// explanation, then the goal statement when it is short enough.
func OpeningLine(c *RuleCard, route Route) string {
	if c == nil {
		return ""
	}
	for _, line := range c.Lines.Opening {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	if line := strings.TrimSpace(playbookLine(c.Lines, route)); line != "" {
		return line
	}
	if line := strings.TrimSpace(c.Lines.Generic); line != "" {
		return line
	}
	if goal := strings.TrimSpace(c.Lines.Goal); goal != "" && utf8.RuneCountInString(goal) <= maxGoalLen {
		return goal
	}
	return ""
}

func playbookLine(l Lines, route Route) string {
	switch route {
	case RouteTransfer:
		return l.TransferPre
	case RouteScenarioEngine, RouteBookingFlow:
		return l.Explanation
	case RouteMessageOnly:
		return l.MessageIntro
	case RouteEndCall:
		return l.Closing
	default:
		return ""
	}
}
