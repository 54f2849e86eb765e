package triage

import (
	"fmt"
	"log/slog"
)

// Route is one of the fixed downstream handler routes.
type Route string

const (
	RouteScenarioEngine Route = "SCENARIO_ENGINE"
	RouteTransfer       Route = "TRANSFER"
	RouteBookingFlow    Route = "BOOKING_FLOW"
	RouteMessageOnly    Route = "MESSAGE_ONLY"
	RouteEndCall        Route = "END_CALL"
)

// Decision is the high-level upstream decision handed to the dispatcher.
type Decision struct {
	Action          Action
	TriageTag       string
	Emergency       bool
	KnowledgeSearch bool
	// Text is the normalized utterance, used for keyword scoring.
	Text string
	// TransferTarget overrides the dispatcher default for this company.
	TransferTarget string
}

// TransferConfig tells the telephony layer where a transfer goes.
type TransferConfig struct {
	Target    string `json:"target"`
	Reason    string `json:"reason"`
	Emergency bool   `json:"emergency"`
}

// Result is the dispatcher's output. OpeningLine is metadata for the response
// constructor; the dispatcher never speaks.
type Result struct {
	Route         Route           `json:"route"`
	MatchedCardID string          `json:"matched_card_id,omitempty"`
	ScenarioHint  string          `json:"scenario_hint,omitempty"`
	Transfer      *TransferConfig `json:"transfer,omitempty"`
	OpeningLine   string          `json:"opening_line,omitempty"`
	Reason        string          `json:"reason"`
}

// directRoutes maps explicit upstream actions straight to a route.
var directRoutes = map[Action]Route{
	ActionBook:     RouteBookingFlow,
	ActionTransfer: RouteTransfer,
	ActionEnd:      RouteEndCall,
	ActionMessage:  RouteMessageOnly,
}

// Dispatcher maps decisions plus rule cards onto a route.
type Dispatcher struct {
	transferTarget string
	logger         *slog.Logger
}

// NewDispatcher returns a dispatcher that sends transfers without a
// card-specific target to transferTarget.
func NewDispatcher(transferTarget string, logger *slog.Logger) *Dispatcher {
	if transferTarget == "" {
		transferTarget = "dispatch"
	}
	return &Dispatcher{transferTarget: transferTarget, logger: logger}
}

// Dispatch applies, in order: emergency override, direct action mapping,
// rule-card matching for route_to_scenario, knowledge-search default, and the
// message-only fallback. cards is the company's card set.
func (d *Dispatcher) Dispatch(dec Decision, cards []RuleCard) Result {
	if dec.Emergency {
		card := emergencyCard(dec, cards)
		res := Result{Route: RouteTransfer, Reason: "emergency override"}
		res.Transfer = d.transfer(dec, card, "emergency", true)
		if card != nil {
			res.MatchedCardID = card.ID
			res.ScenarioHint = card.ScenarioKey
			res.OpeningLine = OpeningLine(card, RouteTransfer)
		}
		return res
	}

	if route, ok := directRoutes[dec.Action]; ok {
		res := Result{Route: route, Reason: fmt.Sprintf("direct action %q", dec.Action)}
		if route == RouteTransfer {
			res.Transfer = d.transfer(dec, nil, "caller requested transfer", false)
		}
		return res
	}

	if dec.Action == ActionRouteToScenario {
		if card, reason := selectCard(dec, cards); card != nil {
			route := cardRoute(card)
			res := Result{
				Route:         route,
				MatchedCardID: card.ID,
				ScenarioHint:  card.ScenarioKey,
				OpeningLine:   OpeningLine(card, route),
				Reason:        reason,
			}
			if route == RouteTransfer {
				res.Transfer = d.transfer(dec, card, "rule card "+card.Label, card.Emergency)
			}
			return res
		}
	}

	if dec.KnowledgeSearch {
		return Result{Route: RouteScenarioEngine, Reason: "knowledge search, no card matched"}
	}

	if d.logger != nil {
		d.logger.Debug("dispatch fell through to message only", "action", dec.Action, "tag", dec.TriageTag)
	}
	return Result{Route: RouteMessageOnly, Reason: "no route matched"}
}

func (d *Dispatcher) transfer(dec Decision, card *RuleCard, reason string, emergency bool) *TransferConfig {
	target := d.transferTarget
	if dec.TransferTarget != "" {
		target = dec.TransferTarget
	}
	if card != nil && card.TransferTarget != "" {
		target = card.TransferTarget
	}
	return &TransferConfig{Target: target, Reason: reason, Emergency: emergency}
}

// selectCard finds the card for a route_to_scenario decision: an exact label
// match with the triage tag wins outright, otherwise the card with the most
// keyword hits. Excluded cards are never selected. Ties keep the first card in
// priority order.
func selectCard(dec Decision, cards []RuleCard) (*RuleCard, string) {
	ordered := Ordered(cards)

	if tag := labelKey(dec.TriageTag); tag != "" {
		for i := range ordered {
			c := &ordered[i]
			if labelKey(c.Label) == tag || labelKey(c.ID) == tag {
				if Excluded(dec.Text, *c) {
					continue
				}
				return c, fmt.Sprintf("label match %q", c.Label)
			}
		}
	}

	var best *RuleCard
	bestHits := 0
	for i := range ordered {
		hits, _, ok := scoreCard(dec.Text, ordered[i])
		if !ok {
			continue
		}
		if hits > bestHits {
			best = &ordered[i]
			bestHits = hits
		}
	}
	if best == nil {
		return nil, ""
	}
	return best, fmt.Sprintf("keyword match %q (%d hits)", best.Label, bestHits)
}

// emergencyCard picks the emergency card, if any, that applies to an
// emergency decision: one named by the triage tag, else the first emergency
// card whose keywords hit.
func emergencyCard(dec Decision, cards []RuleCard) *RuleCard {
	ordered := Ordered(cards)
	tag := labelKey(dec.TriageTag)
	for i := range ordered {
		c := &ordered[i]
		if !c.Emergency || Excluded(dec.Text, *c) {
			continue
		}
		if tag != "" && (labelKey(c.Label) == tag || labelKey(c.ID) == tag) {
			return c
		}
	}
	for i := range ordered {
		c := &ordered[i]
		if !c.Emergency {
			continue
		}
		if hits, _, ok := scoreCard(dec.Text, *c); ok && hits > 0 {
			return c
		}
	}
	return nil
}

// cardRoute picks the route a matched card asks for.
func cardRoute(c *RuleCard) Route {
	if c.Emergency {
		return RouteTransfer
	}
	if route, ok := directRoutes[c.Action]; ok {
		return route
	}
	return RouteScenarioEngine
}
