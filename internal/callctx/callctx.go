// Package callctx holds the per-call state accumulated across turns.
//
// A CallContext is owned by exactly one call's processing sequence and is not
// safe for concurrent use; the session layer serializes access. All mutation
// goes through methods that keep the invariants: identity fields are fixed,
// slots are set once, the emergency intent is sticky, lists only grow and
// ReadyToBook never flips back to false.
package callctx

import (
	"strings"
	"time"
)

// Intent is the caller's high-level purpose for the call.
type Intent string

const (
	IntentBooking           Intent = "booking"
	IntentUpdateAppointment Intent = "update_appointment"
	IntentTroubleshooting   Intent = "troubleshooting"
	IntentInfo              Intent = "info"
	IntentBilling           Intent = "billing"
	IntentEmergency         Intent = "emergency"
	IntentWrongNumber       Intent = "wrong_number"
	IntentSpam              Intent = "spam"
	IntentOther             Intent = "other"
)

// ParseIntent maps free text onto a known intent, defaulting to other.
func ParseIntent(s string) Intent {
	switch i := Intent(strings.ToLower(strings.TrimSpace(s))); i {
	case IntentBooking, IntentUpdateAppointment, IntentTroubleshooting, IntentInfo,
		IntentBilling, IntentEmergency, IntentWrongNumber, IntentSpam, IntentOther:
		return i
	default:
		return IntentOther
	}
}

// Booking slot names, in the order the agent asks for them.
const (
	SlotName           = "name"
	SlotPhone          = "phone"
	SlotAddress        = "address"
	SlotProblemSummary = "problem_summary"
)

type Contact struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type Location struct {
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	Zip     string `json:"zip,omitempty"`
}

type Problem struct {
	Summary   string `json:"summary,omitempty"`
	Equipment string `json:"equipment,omitempty"`
}

type Scheduling struct {
	Preference string `json:"preference,omitempty"`
}

type Access struct {
	Notes string `json:"notes,omitempty"`
}

// Extracted is the set of slots gathered from the caller.
type Extracted struct {
	Contact    Contact    `json:"contact"`
	Location   Location   `json:"location"`
	Problem    Problem    `json:"problem"`
	Scheduling Scheduling `json:"scheduling"`
	Access     Access     `json:"access"`
}

// TierRecord is one entry of the routing trace: which tier decided a turn and
// how it was dispatched.
type TierRecord struct {
	Turn         int       `json:"turn"`
	Tier         string    `json:"tier"`
	Target       string    `json:"target"`
	Confidence   float64   `json:"confidence"`
	Route        string    `json:"route"`
	Reason       string    `json:"reason,omitempty"`
	FallbackUsed bool      `json:"fallback_used"`
	At           time.Time `json:"at"`
}

// Role identifies the speaker of a transcript entry.
type Role string

const (
	RoleCaller Role = "caller"
	RoleAgent  Role = "agent"
)

type TranscriptEntry struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

type CallContext struct {
	callID    string
	companyID string
	trade     string
	startedAt time.Time

	callerPhone string
	priorCalls  int

	intent        Intent
	extracted     Extracted
	triageMatches []string
	tierTrace     []TierRecord
	transcript    []TranscriptEntry
	readyToBook   bool
	turns         int
}

// New creates the context for a call that has just started.
func New(callID, companyID, trade string) *CallContext {
	return &CallContext{
		callID:    callID,
		companyID: companyID,
		trade:     trade,
		startedAt: time.Now().UTC(),
		intent:    IntentOther,
	}
}

func (c *CallContext) CallID() string       { return c.callID }
func (c *CallContext) CompanyID() string    { return c.companyID }
func (c *CallContext) Trade() string        { return c.trade }
func (c *CallContext) StartedAt() time.Time { return c.startedAt }
func (c *CallContext) Intent() Intent       { return c.intent }
func (c *CallContext) ReadyToBook() bool    { return c.readyToBook }
func (c *CallContext) Turns() int           { return c.turns }
func (c *CallContext) PriorCalls() int      { return c.priorCalls }
func (c *CallContext) CallerPhone() string  { return c.callerPhone }

// SetCaller records the caller ID and how many times this number called
// before. The caller ID also seeds the phone slot when it is still empty.
func (c *CallContext) SetCaller(phone string, priorCalls int) {
	c.callerPhone = strings.TrimSpace(phone)
	if priorCalls > c.priorCalls {
		c.priorCalls = priorCalls
	}
	if c.callerPhone != "" {
		c.Merge(Extracted{Contact: Contact{Phone: c.callerPhone}})
	}
}

// SetIntent updates the current intent. Once the call is an emergency it
// stays one.
func (c *CallContext) SetIntent(i Intent) {
	if c.intent == IntentEmergency || i == "" {
		return
	}
	c.intent = ParseIntent(string(i))
}

// Extracted returns a copy of the slots.
func (c *CallContext) Extracted() Extracted { return c.extracted }

// Merge fills empty slots from e. Populated slots are never overwritten and
// empty values in e never clear anything.
func (c *CallContext) Merge(e Extracted) {
	mergeInto(&c.extracted, e)
	if len(missingSlots(c.extracted)) == 0 {
		c.readyToBook = true
	}
}

// MissingSlots lists the booking slots still empty, in asking order.
func (c *CallContext) MissingSlots() []string {
	return missingSlots(c.extracted)
}

// MissingAfter reports the slots that would still be missing if e were
// merged. The context is not modified.
func (c *CallContext) MissingAfter(e Extracted) []string {
	x := c.extracted
	mergeInto(&x, e)
	return missingSlots(x)
}

func mergeInto(x *Extracted, e Extracted) {
	setOnce(&x.Contact.Name, e.Contact.Name)
	setOnce(&x.Contact.Phone, e.Contact.Phone)
	setOnce(&x.Contact.Email, e.Contact.Email)
	setOnce(&x.Location.Address, e.Location.Address)
	setOnce(&x.Location.City, e.Location.City)
	setOnce(&x.Location.Zip, e.Location.Zip)
	setOnce(&x.Problem.Summary, e.Problem.Summary)
	setOnce(&x.Problem.Equipment, e.Problem.Equipment)
	setOnce(&x.Scheduling.Preference, e.Scheduling.Preference)
	setOnce(&x.Access.Notes, e.Access.Notes)
}

func setOnce(dst *string, v string) {
	if *dst != "" {
		return
	}
	*dst = strings.TrimSpace(v)
}

func missingSlots(x Extracted) []string {
	var missing []string
	if x.Contact.Name == "" {
		missing = append(missing, SlotName)
	}
	if x.Contact.Phone == "" {
		missing = append(missing, SlotPhone)
	}
	if x.Location.Address == "" {
		missing = append(missing, SlotAddress)
	}
	if x.Problem.Summary == "" {
		missing = append(missing, SlotProblemSummary)
	}
	return missing
}

// AppendTriageMatches records matched rule-card IDs in order.
func (c *CallContext) AppendTriageMatches(ids ...string) {
	for _, id := range ids {
		if id != "" {
			c.triageMatches = append(c.triageMatches, id)
		}
	}
}

// TriageMatches returns a copy of the matched card IDs.
func (c *CallContext) TriageMatches() []string {
	return append([]string(nil), c.triageMatches...)
}

// AppendTier records a routing trace entry.
func (c *CallContext) AppendTier(r TierRecord) {
	c.tierTrace = append(c.tierTrace, r)
}

// TierTrace returns a copy of the routing trace.
func (c *CallContext) TierTrace() []TierRecord {
	return append([]TierRecord(nil), c.tierTrace...)
}

// AppendTranscript records one spoken line. Blank text is ignored.
func (c *CallContext) AppendTranscript(role Role, text string, at time.Time) {
	if text = strings.TrimSpace(text); text == "" {
		return
	}
	c.transcript = append(c.transcript, TranscriptEntry{Role: role, Text: text, At: at})
}

// Transcript returns a copy of the transcript.
func (c *CallContext) Transcript() []TranscriptEntry {
	return append([]TranscriptEntry(nil), c.transcript...)
}

// Commit is everything one processed turn writes back to the context.
type Commit struct {
	Intent        Intent
	Slots         Extracted
	TriageMatches []string
	Tier          TierRecord
	CallerText    string
	AgentText     string
	At            time.Time
}

// NextTurn is the number the next committed turn will get.
func (c *CallContext) NextTurn() int { return c.turns + 1 }

// Apply writes a processed turn in one step and returns its turn number.
func (c *CallContext) Apply(cm Commit) int {
	c.turns++
	at := cm.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	c.SetIntent(cm.Intent)
	c.Merge(cm.Slots)
	c.AppendTriageMatches(cm.TriageMatches...)
	tier := cm.Tier
	tier.Turn = c.turns
	if tier.At.IsZero() {
		tier.At = at
	}
	c.AppendTier(tier)
	c.AppendTranscript(RoleCaller, cm.CallerText, at)
	c.AppendTranscript(RoleAgent, cm.AgentText, at)
	return c.turns
}
