package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/MikeSquared-Agency/frontdesk/internal/callctx"
	"github.com/MikeSquared-Agency/frontdesk/internal/catalog"
	"github.com/MikeSquared-Agency/frontdesk/internal/emotion"
	"github.com/MikeSquared-Agency/frontdesk/internal/hermes"
	"github.com/MikeSquared-Agency/frontdesk/internal/router"
	"github.com/MikeSquared-Agency/frontdesk/internal/triage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticCatalog struct {
	snap catalog.Snapshot
	// onGet runs before the snapshot is returned.
	onGet func()
}

func (s *staticCatalog) Get(_ context.Context, companyID string) catalog.Snapshot {
	if s.onGet != nil {
		s.onGet()
	}
	snap := s.snap
	snap.Company.ID = companyID
	return snap
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	events   []any
	err      error
}

func (p *recordingPublisher) Publish(subject string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.events = append(p.events, data)
	return p.err
}

func (p *recordingPublisher) count(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.subjects {
		if s == subject {
			n++
		}
	}
	return n
}

type hangingClassifier struct{}

func (hangingClassifier) Classify(ctx context.Context, _, _ string) (router.Classification, error) {
	<-ctx.Done()
	return router.Classification{}, ctx.Err()
}

func hvacSnapshot() catalog.Snapshot {
	return catalog.Snapshot{
		Company: catalog.Company{
			Name:           "Acme Heating & Air",
			Trade:          "HVAC",
			TransferTarget: "dispatch",
			Thresholds:     catalog.DefaultThresholds(),
		},
		Cards: []triage.RuleCard{
			{
				ID:             "card-gas",
				Label:          "gas_leak",
				Priority:       100,
				Keywords:       []string{"smell gas", "gas leak"},
				Emergency:      true,
				TransferTarget: "on_call_tech",
				Lines:          triage.Lines{TransferPre: "Please leave the house now. I'm connecting you to our on-call technician."},
				Position:       0,
			},
			{
				ID:          "card-cooling",
				Label:       "cooling_problem",
				Priority:    50,
				Keywords:    []string{"a/c", "cooling", "warm air", "degrees"},
				Action:      triage.ActionRouteToScenario,
				ScenarioKey: "hvac.cooling.no_cool",
				Intent:      "troubleshooting",
				Lines:       triage.Lines{Explanation: "Sounds like your cooling isn't keeping up."},
				Position:    1,
			},
		},
	}
}

func newEngine(t *testing.T, cat Catalog, cls router.Classifier, pub Publisher) *Engine {
	t.Helper()
	opts := router.Options{
		Attempts:   2,
		Timeout:    20 * time.Millisecond,
		Budget:     time.Second,
		Backoff:    time.Millisecond,
		MaxBackoff: 2 * time.Millisecond,
	}
	r := router.New(cls, opts, discardLogger())
	d := triage.NewDispatcher("dispatch", discardLogger())
	return New(cat, r, d, pub, discardLogger())
}

func TestProcessTurn_CoolingScenario(t *testing.T) {
	pub := &recordingPublisher{}
	e := newEngine(t, &staticCatalog{snap: hvacSnapshot()}, hangingClassifier{}, pub)
	cc := callctx.New("call-1", "acme-hvac", "HVAC")

	res, err := e.ProcessTurn(context.Background(), cc, Turn{Text: "my AC stopped cooling completely, it's 95 degrees in here!!"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dec := res.Decision
	if dec.Dispatch.Route != triage.RouteScenarioEngine {
		t.Errorf("expected SCENARIO_ENGINE, got %s (%s)", dec.Dispatch.Route, dec.Dispatch.Reason)
	}
	if dec.Dispatch.MatchedCardID != "card-cooling" {
		t.Errorf("expected card-cooling, got %q", dec.Dispatch.MatchedCardID)
	}
	if dec.Routing.Tier != router.TierRule || !dec.Routing.FallbackUsed {
		t.Errorf("expected rule tier fallback, got %+v", dec.Routing)
	}
	if dec.Emergency {
		t.Error("cooling loss is not an emergency")
	}
	if cc.Intent() != callctx.IntentTroubleshooting {
		t.Errorf("expected troubleshooting intent, got %s", cc.Intent())
	}

	trace := cc.TierTrace()
	if len(trace) != 1 {
		t.Fatalf("expected exactly one trace entry, got %d", len(trace))
	}
	if trace[0].Turn != 1 || trace[0].Route != string(triage.RouteScenarioEngine) {
		t.Errorf("unexpected trace entry %+v", trace[0])
	}
	if !strings.Contains(res.NextPrompt, "cooling isn't keeping up") {
		t.Errorf("expected card line in prompt, got %q", res.NextPrompt)
	}
	if pub.count(hermes.SubjectTurnDecided) != 1 || pub.count(hermes.SubjectRouteDegraded) != 1 {
		t.Errorf("unexpected events %v", pub.subjects)
	}
}

func TestProcessTurn_ClassifierUnreachable(t *testing.T) {
	snap := hvacSnapshot()
	e := newEngine(t, &staticCatalog{snap: snap}, hangingClassifier{}, nil)
	cc := callctx.New("call-2", "acme-hvac", "HVAC")

	res, err := e.ProcessTurn(context.Background(), cc, Turn{Text: "what are your hours"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := res.Decision.Routing
	if r.Target != router.DefaultTarget || !r.FallbackUsed || r.Tier != router.TierFallback {
		t.Errorf("expected safe default, got %+v", r)
	}
	if res.Decision.Dispatch.Route != triage.RouteScenarioEngine {
		t.Errorf("expected knowledge search route, got %s", res.Decision.Dispatch.Route)
	}
	if cc.Intent() != callctx.IntentInfo {
		t.Errorf("expected info intent, got %s", cc.Intent())
	}
}

func TestProcessTurn_CancelledBeforeStart(t *testing.T) {
	e := newEngine(t, &staticCatalog{snap: hvacSnapshot()}, nil, nil)
	cc := callctx.New("call-3", "acme-hvac", "HVAC")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.ProcessTurn(ctx, cc, Turn{Text: "hello"}); !errors.Is(err, ErrCallEnded) {
		t.Fatalf("expected ErrCallEnded, got %v", err)
	}
	if cc.Turns() != 0 || len(cc.Transcript()) != 0 {
		t.Error("cancelled turn modified the call context")
	}
}

func TestProcessTurn_HangupMidTurn(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cat := &staticCatalog{snap: hvacSnapshot(), onGet: cancel}
	pub := &recordingPublisher{}
	e := newEngine(t, cat, nil, pub)
	cc := callctx.New("call-4", "acme-hvac", "HVAC")

	if _, err := e.ProcessTurn(ctx, cc, Turn{Text: "my name is Dana Reyes"}); !errors.Is(err, ErrCallEnded) {
		t.Fatalf("expected ErrCallEnded, got %v", err)
	}
	if cc.Turns() != 0 || cc.Extracted().Contact.Name != "" || len(cc.TierTrace()) != 0 {
		t.Error("discarded turn was partially committed")
	}
	if len(pub.subjects) != 0 {
		t.Errorf("expected no events, got %v", pub.subjects)
	}
}

func TestProcessTurn_Emergency(t *testing.T) {
	pub := &recordingPublisher{}
	e := newEngine(t, &staticCatalog{snap: hvacSnapshot()}, nil, pub)
	cc := callctx.New("call-5", "acme-hvac", "HVAC")
	cc.SetCaller("555-201-3344", 0)

	res, err := e.ProcessTurn(context.Background(), cc, Turn{Text: "I smell gas in the kitchen"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := res.Decision
	if !d.Emergency || d.Dispatch.Route != triage.RouteTransfer {
		t.Fatalf("expected emergency transfer, got %+v", d)
	}
	if d.Dispatch.Transfer == nil || d.Dispatch.Transfer.Target != "on_call_tech" {
		t.Errorf("expected on_call_tech transfer, got %+v", d.Dispatch.Transfer)
	}
	if cc.Intent() != callctx.IntentEmergency {
		t.Errorf("expected emergency intent, got %s", cc.Intent())
	}
	if pub.count(hermes.SubjectCallEmergency) != 1 {
		t.Fatalf("expected one emergency event, got %v", pub.subjects)
	}
	for _, evt := range pub.events {
		if em, ok := evt.(hermes.CallEmergency); ok {
			if em.CallerPhone != "555-201-3344" || em.TransferTarget != "on_call_tech" || em.MatchedCardID != "card-gas" {
				t.Errorf("unexpected emergency event %+v", em)
			}
		}
	}

	// Later turns keep the emergency intent.
	if _, err := e.ProcessTurn(context.Background(), cc, Turn{Text: "can I book a tune up next week"}); err != nil {
		t.Fatal(err)
	}
	if cc.Intent() != callctx.IntentEmergency {
		t.Errorf("emergency intent was lost, got %s", cc.Intent())
	}
}

func TestProcessTurn_EscalatesAngryCaller(t *testing.T) {
	snap := hvacSnapshot()
	snap.Company.Thresholds.EscalationIntensity = 0.5
	e := newEngine(t, &staticCatalog{snap: snap}, nil, nil)
	cc := callctx.New("call-6", "acme-hvac", "HVAC")

	res, err := e.ProcessTurn(context.Background(), cc, Turn{Text: "This is ridiculous, I'm furious. Third time calling, it's unacceptable!!!"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Emotion.Primary != emotion.Angry {
		t.Fatalf("expected ANGRY, got %s", res.Emotion.Primary)
	}
	if !res.Decision.Escalated || res.Decision.Dispatch.Route != triage.RouteTransfer {
		t.Errorf("expected escalation to transfer, got %+v", res.Decision)
	}
	if !strings.HasPrefix(res.NextPrompt, "I'm sorry about the trouble.") {
		t.Errorf("expected acknowledgement first, got %q", res.NextPrompt)
	}
}

type panickingCatalog struct{}

func (panickingCatalog) Get(context.Context, string) catalog.Snapshot {
	panic("catalog exploded")
}

func TestProcessTurn_RecoversPanic(t *testing.T) {
	pub := &recordingPublisher{}
	e := newEngine(t, panickingCatalog{}, nil, pub)
	cc := callctx.New("call-7", "acme-hvac", "HVAC")

	res, err := e.ProcessTurn(context.Background(), cc, Turn{Text: "hello there"})
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if res.Decision.Routing.Target != router.DefaultTarget || !res.Decision.Routing.FallbackUsed {
		t.Errorf("expected safe default, got %+v", res.Decision.Routing)
	}
	trace := cc.TierTrace()
	if len(trace) != 1 || trace[0].Tier != tierEnginePanic {
		t.Fatalf("expected engine_panic trace, got %+v", trace)
	}
	if pub.count(hermes.SubjectRouteDegraded) != 1 {
		t.Errorf("expected degraded event, got %v", pub.subjects)
	}

	res, err = e.ProcessTurn(context.Background(), cc, Turn{Text: "there's smoke coming from the furnace"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Decision.Dispatch.Route != triage.RouteTransfer || cc.Intent() != callctx.IntentEmergency {
		t.Errorf("expected emergency transfer after panic, got %+v", res.Decision)
	}
}

func TestProcessTurn_SlotsAccumulate(t *testing.T) {
	e := newEngine(t, &staticCatalog{snap: hvacSnapshot()}, nil, nil)
	cc := callctx.New("call-8", "acme-hvac", "HVAC")
	ctx := context.Background()

	if _, err := e.ProcessTurn(ctx, cc, Turn{Text: "Hi, this is Dana Reyes. My AC stopped cooling last night."}); err != nil {
		t.Fatal(err)
	}
	if cc.Extracted().Contact.Name != "Dana Reyes" {
		t.Fatalf("expected name, got %+v", cc.Extracted().Contact)
	}
	if cc.ReadyToBook() {
		t.Fatal("not ready yet")
	}

	if _, err := e.ProcessTurn(ctx, cc, Turn{Text: "I'm at 42 Maple Street and my number is (555) 201-3344."}); err != nil {
		t.Fatal(err)
	}
	got := cc.Extracted()
	if got.Contact.Name != "Dana Reyes" || got.Contact.Phone != "555-201-3344" || got.Location.Address != "42 Maple Street" {
		t.Errorf("unexpected slots %+v", got)
	}
	if !cc.ReadyToBook() {
		t.Errorf("expected ready to book, missing %v", cc.MissingSlots())
	}
	if cc.Turns() != 2 || len(cc.TierTrace()) != 2 {
		t.Errorf("expected two turns, got %d turns and %d trace entries", cc.Turns(), len(cc.TierTrace()))
	}
}

func TestProcessTurn_PublishFailureIgnored(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("nats: connection closed")}
	e := newEngine(t, &staticCatalog{snap: hvacSnapshot()}, nil, pub)
	cc := callctx.New("call-9", "acme-hvac", "HVAC")

	if _, err := e.ProcessTurn(context.Background(), cc, Turn{Text: "I'd like to book an appointment"}); err != nil {
		t.Fatalf("publish failure leaked into turn: %v", err)
	}
	if cc.Turns() != 1 {
		t.Errorf("expected committed turn, got %d", cc.Turns())
	}
}

func TestNextPrompt(t *testing.T) {
	tests := []struct {
		name string
		in   promptInput
		want string
	}{
		{
			name: "booking asks first missing slot",
			in:   promptInput{route: triage.RouteBookingFlow, missing: []string{callctx.SlotPhone, callctx.SlotAddress}},
			want: "What's the best number to reach you?",
		},
		{
			name: "booking complete",
			in:   promptInput{route: triage.RouteBookingFlow},
			want: "I have everything I need. Let me find a time that works for you.",
		},
		{
			name: "end call names company",
			in:   promptInput{route: triage.RouteEndCall, company: "Acme"},
			want: "Thanks for calling Acme. Have a good day.",
		},
		{
			name: "transfer with card line",
			in:   promptInput{route: triage.RouteTransfer, opening: "Please leave the house now.", emotion: emotion.Result{Primary: emotion.Panicked}},
			want: "I understand. Let's get this handled right now. Please leave the house now.",
		},
		{
			name: "message asks for name",
			in:   promptInput{route: triage.RouteMessageOnly, missing: []string{callctx.SlotName}},
			want: "I can take a message and have someone get back to you. Can I get your name?",
		},
		{
			name: "unknown route",
			in:   promptInput{},
			want: genericPrompt,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextPrompt(tt.in); got != tt.want {
				t.Errorf("nextPrompt() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMapTarget(t *testing.T) {
	cards := hvacSnapshot().Cards
	tests := []struct {
		target    string
		action    triage.Action
		knowledge bool
		intent    callctx.Intent
	}{
		{router.TargetBooking, triage.ActionBook, false, callctx.IntentBooking},
		{router.TargetTransfer, triage.ActionTransfer, false, callctx.IntentOther},
		{router.TargetWrongNumber, triage.ActionEnd, false, callctx.IntentWrongNumber},
		{router.DefaultTarget, triage.ActionRouteToScenario, true, callctx.IntentInfo},
		{"Cooling_Problem", triage.ActionRouteToScenario, false, callctx.IntentTroubleshooting},
		{"something_new", triage.ActionRouteToScenario, true, callctx.IntentOther},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			action, knowledge, intent := mapTarget(tt.target, cards)
			if action != tt.action || knowledge != tt.knowledge || intent != tt.intent {
				t.Errorf("mapTarget(%q) = %s, %v, %s", tt.target, action, knowledge, intent)
			}
		})
	}
}
