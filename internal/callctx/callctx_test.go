package callctx

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestMerge_SetOnce(t *testing.T) {
	c := New("call-1", "acme", "hvac")
	c.Merge(Extracted{Contact: Contact{Name: "Dana Reyes", Phone: "555-201-3344"}})
	c.Merge(Extracted{Contact: Contact{Name: "Someone Else", Email: "dana@example.com"}})
	c.Merge(Extracted{Contact: Contact{Phone: ""}})

	got := c.Extracted().Contact
	want := Contact{Name: "Dana Reyes", Phone: "555-201-3344", Email: "dana@example.com"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("contact mismatch (-want +got):\n%s", diff)
	}
}

func TestReadyToBook_Monotonic(t *testing.T) {
	c := New("call-1", "acme", "hvac")
	steps := []Extracted{
		{Contact: Contact{Name: "Dana"}},
		{Contact: Contact{Phone: "555-201-3344"}},
		{Location: Location{Address: "12 Oak Street"}},
		{Problem: Problem{Summary: "AC is blowing warm air"}},
		{},
		{Contact: Contact{Phone: ""}, Location: Location{Address: ""}},
	}
	wantReady := []bool{false, false, false, true, true, true}
	for i, step := range steps {
		c.Merge(step)
		if c.ReadyToBook() != wantReady[i] {
			t.Fatalf("step %d: ReadyToBook = %v, want %v", i, c.ReadyToBook(), wantReady[i])
		}
		if i >= 1 && c.Extracted().Contact.Phone != "555-201-3344" {
			t.Fatalf("step %d: phone was cleared", i)
		}
	}
	if len(c.MissingSlots()) != 0 {
		t.Errorf("expected no missing slots, got %v", c.MissingSlots())
	}
}

func TestMissingSlots_Order(t *testing.T) {
	c := New("call-1", "acme", "hvac")
	c.Merge(Extracted{Location: Location{Address: "12 Oak Street"}})
	want := []string{SlotName, SlotPhone, SlotProblemSummary}
	if diff := cmp.Diff(want, c.MissingSlots()); diff != "" {
		t.Errorf("missing slots mismatch (-want +got):\n%s", diff)
	}
}

func TestSetIntent_EmergencySticks(t *testing.T) {
	c := New("call-1", "acme", "hvac")
	if c.Intent() != IntentOther {
		t.Fatalf("expected initial intent other, got %s", c.Intent())
	}
	c.SetIntent(IntentBooking)
	c.SetIntent(IntentEmergency)
	c.SetIntent(IntentBooking)
	c.SetIntent(IntentInfo)
	if c.Intent() != IntentEmergency {
		t.Errorf("expected emergency to stick, got %s", c.Intent())
	}
}

func TestSetIntent_UnknownIsOther(t *testing.T) {
	c := New("call-1", "acme", "hvac")
	c.SetIntent("warranty_claim")
	if c.Intent() != IntentOther {
		t.Errorf("expected other, got %s", c.Intent())
	}
	c.SetIntent("")
	if c.Intent() != IntentOther {
		t.Errorf("empty intent must not change state, got %s", c.Intent())
	}
}

func TestSetCaller_SeedsPhone(t *testing.T) {
	c := New("call-1", "acme", "hvac")
	c.SetCaller("555-000-1111", 2)
	c.Merge(Extracted{Contact: Contact{Phone: "555-999-8888"}})
	if c.Extracted().Contact.Phone != "555-000-1111" {
		t.Errorf("expected caller ID phone, got %q", c.Extracted().Contact.Phone)
	}
	if c.PriorCalls() != 2 {
		t.Errorf("expected 2 prior calls, got %d", c.PriorCalls())
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	c := New("call-1", "acme", "hvac")
	c.AppendTriageMatches("card-a", "", "card-b")
	c.AppendTier(TierRecord{Tier: "rule", Target: "booking"})
	c.AppendTranscript(RoleCaller, "hello", time.Now())
	c.AppendTranscript(RoleAgent, "   ", time.Now())

	matches := c.TriageMatches()
	matches[0] = "mutated"
	trace := c.TierTrace()
	trace[0].Target = "mutated"
	transcript := c.Transcript()
	transcript[0].Text = "mutated"

	if diff := cmp.Diff([]string{"card-a", "card-b"}, c.TriageMatches()); diff != "" {
		t.Errorf("triage matches mismatch (-want +got):\n%s", diff)
	}
	if c.TierTrace()[0].Target != "booking" {
		t.Error("tier trace mutated through accessor")
	}
	if len(c.Transcript()) != 1 || c.Transcript()[0].Text != "hello" {
		t.Errorf("unexpected transcript %+v", c.Transcript())
	}
}

func TestApply(t *testing.T) {
	c := New("call-1", "acme", "hvac")
	at := time.Date(2026, 7, 1, 15, 0, 0, 0, time.UTC)

	turn := c.Apply(Commit{
		Intent:        IntentTroubleshooting,
		Slots:         Extracted{Problem: Problem{Summary: "AC not cooling", Equipment: "AC"}},
		TriageMatches: []string{"card-cooling"},
		Tier:          TierRecord{Tier: "rule", Target: "cooling_problem", Route: "SCENARIO_ENGINE"},
		CallerText:    "my AC stopped cooling",
		AgentText:     "Sorry to hear that.",
		At:            at,
	})
	if turn != 1 || c.Turns() != 1 || c.NextTurn() != 2 {
		t.Fatalf("unexpected turn counters: turn=%d turns=%d next=%d", turn, c.Turns(), c.NextTurn())
	}

	snap := c.Snapshot()
	if snap.Intent != IntentTroubleshooting {
		t.Errorf("expected troubleshooting, got %s", snap.Intent)
	}
	wantTrace := []TierRecord{{Turn: 1, Tier: "rule", Target: "cooling_problem", Route: "SCENARIO_ENGINE", At: at}}
	if diff := cmp.Diff(wantTrace, snap.TierTrace); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
	wantTranscript := []TranscriptEntry{
		{Role: RoleCaller, Text: "my AC stopped cooling", At: at},
		{Role: RoleAgent, Text: "Sorry to hear that.", At: at},
	}
	if diff := cmp.Diff(wantTranscript, snap.Transcript); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}

	// Snapshot is detached.
	snap.TriageMatches[0] = "mutated"
	if c.TriageMatches()[0] != "card-cooling" {
		t.Error("snapshot shares memory with context")
	}
}

func TestMissingAfter_DoesNotMutate(t *testing.T) {
	c := New("call-1", "acme", "hvac")
	c.Merge(Extracted{Contact: Contact{Name: "Dana"}})
	got := c.MissingAfter(Extracted{Contact: Contact{Phone: "555-201-3344"}})
	if diff := cmp.Diff([]string{SlotAddress, SlotProblemSummary}, got); diff != "" {
		t.Errorf("missing mismatch (-want +got):\n%s", diff)
	}
	if c.Extracted().Contact.Phone != "" {
		t.Error("MissingAfter modified the context")
	}
}
