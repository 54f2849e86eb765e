package engine

import (
	"context"
	"strings"

	"github.com/MikeSquared-Agency/frontdesk/internal/callctx"
	"github.com/MikeSquared-Agency/frontdesk/internal/catalog"
	"github.com/MikeSquared-Agency/frontdesk/internal/emotion"
	"github.com/MikeSquared-Agency/frontdesk/internal/router"
	"github.com/MikeSquared-Agency/frontdesk/internal/triage"
)

// decision carries the dispatcher inputs alongside the public Decision.
type decision struct {
	Decision
	action    triage.Action
	knowledge bool
}

func (e *Engine) route(ctx context.Context, text string, company catalog.Company, sig signals, cards []triage.RuleCard) decision {
	rd := e.router.Route(ctx, router.Request{
		Trade:         company.Trade,
		UserInput:     text,
		Rules:         buildRules(sig.matches, cards),
		MinConfidence: company.Thresholds.MinClassifierConfidence,
	})

	d := decision{Decision: Decision{Routing: rd}}
	d.action, d.knowledge, d.Intent = mapTarget(rd.Target, cards)

	d.Emergency = rd.Priority == router.PriorityEmergency ||
		rd.Target == string(callctx.IntentEmergency) ||
		sig.emergency ||
		emergencyMatched(sig.matches)

	if !d.Emergency && escalate(sig.emotion, company.Thresholds.EscalationIntensity) {
		d.action = triage.ActionTransfer
		d.Escalated = true
	}
	return d
}

// buildRules turns the triage candidates into router rules, or every active
// card when nothing matched, followed by the built-in intent rules.
func buildRules(matches []triage.Match, cards []triage.RuleCard) []router.Rule {
	var source []triage.RuleCard
	if len(matches) > 0 {
		for _, m := range matches {
			source = append(source, m.Card)
		}
	} else {
		source = triage.Ordered(cards)
	}

	rules := make([]router.Rule, 0, len(source)+3)
	for _, c := range source {
		name := c.Label
		if name == "" {
			name = c.ID
		}
		rules = append(rules, router.Rule{
			Name:             name,
			Keywords:         c.Keywords,
			NegativeKeywords: c.ExcludeKeywords,
			Emergency:        c.Emergency,
		})
	}
	return append(rules, router.BuiltinRules()...)
}

// mapTarget converts a routing target into the dispatcher action and the
// caller intent.
func mapTarget(target string, cards []triage.RuleCard) (triage.Action, bool, callctx.Intent) {
	switch target {
	case router.TargetBooking:
		return triage.ActionBook, false, callctx.IntentBooking
	case router.TargetTransfer, "human":
		return triage.ActionTransfer, false, callctx.IntentOther
	case router.TargetWrongNumber:
		return triage.ActionEnd, false, callctx.IntentWrongNumber
	case "spam":
		return triage.ActionEnd, false, callctx.IntentSpam
	case "end_call":
		return triage.ActionEnd, false, callctx.IntentOther
	case "message":
		return triage.ActionMessage, false, callctx.IntentOther
	case "billing":
		return triage.ActionMessage, false, callctx.IntentBilling
	case "update_appointment":
		return triage.ActionMessage, false, callctx.IntentUpdateAppointment
	case router.DefaultTarget, "info":
		return triage.ActionRouteToScenario, true, callctx.IntentInfo
	case "emergency":
		return triage.ActionTransfer, false, callctx.IntentEmergency
	}

	for _, c := range cards {
		if strings.EqualFold(c.Label, target) || strings.EqualFold(c.ID, target) {
			intent := callctx.IntentTroubleshooting
			if c.Intent != "" {
				intent = callctx.ParseIntent(c.Intent)
			}
			return triage.ActionRouteToScenario, false, intent
		}
	}
	return triage.ActionRouteToScenario, true, callctx.IntentOther
}

func emergencyMatched(matches []triage.Match) bool {
	for _, m := range matches {
		if m.Card.Emergency {
			return true
		}
	}
	return false
}

// escalate reports whether the caller is upset enough to hand to a human.
func escalate(r emotion.Result, threshold float64) bool {
	if threshold <= 0 {
		return false
	}
	switch r.Primary {
	case emotion.Angry, emotion.Panicked:
		return r.Intensity >= threshold
	default:
		return false
	}
}
