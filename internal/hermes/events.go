package hermes

import "time"

// Subjects published and consumed by frontdesk.
const (
	SubjectTurnDecided       = "frontdesk.turn.decided"
	SubjectRouteDegraded     = "frontdesk.route.degraded"
	SubjectCallEmergency     = "frontdesk.call.emergency"
	SubjectCallEnded         = "frontdesk.call.ended"
	SubjectCatalogInvalidate = "frontdesk.catalog.invalidate"

	// SubjectSlackReaction carries Slack reaction_added events relayed by the
	// swarm's Slack bridge.
	SubjectSlackReaction = "swarm.slack.reaction"

	// QueueAlerts is the queue group that pages on-call once per emergency
	// no matter how many replicas run.
	QueueAlerts = "frontdesk-alerts"
)

// TurnDecided is emitted once per processed turn.
type TurnDecided struct {
	EventID       string    `json:"event_id"`
	CallID        string    `json:"call_id"`
	CompanyID     string    `json:"company_id"`
	Turn          int       `json:"turn"`
	Tier          string    `json:"tier"`
	Target        string    `json:"target"`
	Confidence    float64   `json:"confidence"`
	Priority      string    `json:"priority"`
	Route         string    `json:"route"`
	MatchedCardID string    `json:"matched_card_id,omitempty"`
	FallbackUsed  bool      `json:"fallback_used"`
	Emotion       string    `json:"emotion"`
	Intensity     float64   `json:"intensity"`
	LatencyMS     int64     `json:"latency_ms"`
	At            time.Time `json:"at"`
}

// RouteDegraded is emitted when a turn was decided by a fallback tier.
type RouteDegraded struct {
	EventID   string    `json:"event_id"`
	CallID    string    `json:"call_id"`
	CompanyID string    `json:"company_id"`
	Turn      int       `json:"turn"`
	Tier      string    `json:"tier"`
	Reason    string    `json:"reason"`
	Attempts  int       `json:"attempts"`
	At        time.Time `json:"at"`
}

// CallEmergency is emitted when a turn is transferred as an emergency.
type CallEmergency struct {
	EventID        string    `json:"event_id"`
	CallID         string    `json:"call_id"`
	CompanyID      string    `json:"company_id"`
	CompanyName    string    `json:"company_name"`
	CallerPhone    string    `json:"caller_phone,omitempty"`
	Address        string    `json:"address,omitempty"`
	Utterance      string    `json:"utterance"`
	MatchedCardID  string    `json:"matched_card_id,omitempty"`
	TransferTarget string    `json:"transfer_target"`
	At             time.Time `json:"at"`
}

// CallEnded is emitted after a call is torn down and persisted.
type CallEnded struct {
	EventID     string    `json:"event_id"`
	CallID      string    `json:"call_id"`
	CompanyID   string    `json:"company_id"`
	Intent      string    `json:"intent"`
	Turns       int       `json:"turns"`
	ReadyToBook bool      `json:"ready_to_book"`
	DurationSec float64   `json:"duration_sec"`
	At          time.Time `json:"at"`
}

// CatalogInvalidate asks every instance to drop cached company
// configuration. An empty CompanyID means all companies.
type CatalogInvalidate struct {
	CompanyID string `json:"company_id,omitempty"`
}
