package callctx

import "time"

// Snapshot is a detached, serializable copy of a CallContext. It is what gets
// persisted at call end and returned by status endpoints.
type Snapshot struct {
	CallID        string            `json:"call_id"`
	CompanyID     string            `json:"company_id"`
	Trade         string            `json:"trade"`
	StartedAt     time.Time         `json:"started_at"`
	CallerPhone   string            `json:"caller_phone,omitempty"`
	PriorCalls    int               `json:"prior_calls"`
	Intent        Intent            `json:"intent"`
	Extracted     Extracted         `json:"extracted"`
	TriageMatches []string          `json:"triage_matches"`
	TierTrace     []TierRecord      `json:"tier_trace"`
	Transcript    []TranscriptEntry `json:"transcript"`
	ReadyToBook   bool              `json:"ready_to_book"`
	Turns         int               `json:"turns"`
}

// Snapshot copies the context. The result shares no memory with c.
func (c *CallContext) Snapshot() Snapshot {
	return Snapshot{
		CallID:        c.callID,
		CompanyID:     c.companyID,
		Trade:         c.trade,
		StartedAt:     c.startedAt,
		CallerPhone:   c.callerPhone,
		PriorCalls:    c.priorCalls,
		Intent:        c.intent,
		Extracted:     c.extracted,
		TriageMatches: c.TriageMatches(),
		TierTrace:     c.TierTrace(),
		Transcript:    c.Transcript(),
		ReadyToBook:   c.readyToBook,
		Turns:         c.turns,
	}
}
