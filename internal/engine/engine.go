// Package engine runs one caller turn end to end: normalize, extract signals,
// route, dispatch, merge slots, and commit to the call context.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/MikeSquared-Agency/frontdesk/internal/callctx"
	"github.com/MikeSquared-Agency/frontdesk/internal/catalog"
	"github.com/MikeSquared-Agency/frontdesk/internal/emotion"
	"github.com/MikeSquared-Agency/frontdesk/internal/preprocess"
	"github.com/MikeSquared-Agency/frontdesk/internal/router"
	"github.com/MikeSquared-Agency/frontdesk/internal/slots"
	"github.com/MikeSquared-Agency/frontdesk/internal/triage"
)

// ErrCallEnded is returned when the call's context ended before the turn was
// committed. Nothing from the turn is applied.
var ErrCallEnded = errors.New("call ended")

// Catalog hands out the company snapshot for a turn.
type Catalog interface {
	Get(ctx context.Context, companyID string) catalog.Snapshot
}

// Publisher emits events. hermes.Client satisfies it.
type Publisher interface {
	Publish(subject string, data any) error
}

// Turn is one caller utterance.
type Turn struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Decision is the combined routing and dispatch outcome of a turn.
type Decision struct {
	Routing   router.Decision `json:"routing"`
	Dispatch  triage.Result   `json:"dispatch"`
	Intent    callctx.Intent  `json:"intent"`
	Emergency bool            `json:"emergency"`
	Escalated bool            `json:"escalated,omitempty"`
}

// Result is what ProcessTurn returns to the telephony layer.
type Result struct {
	Turn       int            `json:"turn"`
	Decision   Decision       `json:"decision"`
	NextPrompt string         `json:"next_prompt"`
	Emotion    emotion.Result `json:"emotion"`
	Normalized string         `json:"normalized"`
}

type Engine struct {
	catalog    Catalog
	router     *router.Router
	dispatcher *triage.Dispatcher
	analyzer   *emotion.Analyzer
	publisher  Publisher
	logger     *slog.Logger
}

// New wires an engine. publisher may be nil.
func New(cat Catalog, r *router.Router, d *triage.Dispatcher, pub Publisher, logger *slog.Logger) *Engine {
	return &Engine{
		catalog:    cat,
		router:     r,
		dispatcher: d,
		analyzer:   emotion.NewAnalyzer(),
		publisher:  pub,
		logger:     logger,
	}
}

// ProcessTurn handles one utterance. Callers must serialize turns for a call.
// A cancelled ctx before commit yields ErrCallEnded and leaves cc untouched;
// any panic is recovered into the safe default decision.
func (e *Engine) ProcessTurn(ctx context.Context, cc *callctx.CallContext, turn Turn) (res Result, err error) {
	if ctx.Err() != nil {
		return Result{}, ErrCallEnded
	}
	if turn.At.IsZero() {
		turn.At = time.Now().UTC()
	}
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("turn processing panicked",
				"call_id", cc.CallID(),
				"panic", p,
				"stack", string(debug.Stack()),
			)
			res, err = e.recoverTurn(ctx, cc, turn, fmt.Sprint(p))
		}
	}()

	snap := e.catalog.Get(ctx, cc.CompanyID())
	company := snap.Company

	text := preprocess.StripFillers(preprocess.Normalize(turn.Text))
	sig := e.extractSignals(text, cc, snap.Cards)

	dec := e.route(ctx, text, company, sig, snap.Cards)
	dec.Dispatch = e.dispatcher.Dispatch(triage.Decision{
		Action:          dec.action,
		TriageTag:       dec.Routing.Target,
		Emergency:       dec.Emergency,
		KnowledgeSearch: dec.knowledge,
		Text:            text,
		TransferTarget:  company.TransferTarget,
	}, snap.Cards)
	if dec.Emergency {
		dec.Intent = callctx.IntentEmergency
	}

	extracted := slots.Extract(text)
	prompt := nextPrompt(promptInput{
		route:   dec.Dispatch.Route,
		opening: dec.Dispatch.OpeningLine,
		emotion: sig.emotion,
		missing: cc.MissingAfter(extracted),
		company: company.Name,
	})

	// Nothing is written before this point.
	if ctx.Err() != nil {
		e.logger.Info("call ended mid-turn, discarding", "call_id", cc.CallID())
		return Result{}, ErrCallEnded
	}

	n := cc.Apply(callctx.Commit{
		Intent:        dec.Intent,
		Slots:         extracted,
		TriageMatches: matchedIDs(sig.matches, dec.Dispatch.MatchedCardID),
		Tier: callctx.TierRecord{
			Tier:         string(dec.Routing.Tier),
			Target:       dec.Routing.Target,
			Confidence:   dec.Routing.Confidence,
			Route:        string(dec.Dispatch.Route),
			Reason:       tierReason(dec),
			FallbackUsed: dec.Routing.FallbackUsed,
		},
		CallerText: turn.Text,
		AgentText:  prompt,
		At:         turn.At,
	})

	res = Result{
		Turn:       n,
		Decision:   dec.Decision,
		NextPrompt: prompt,
		Emotion:    sig.emotion,
		Normalized: text,
	}

	e.logger.Info("turn decided",
		"call_id", cc.CallID(),
		"turn", n,
		"tier", dec.Routing.Tier,
		"target", dec.Routing.Target,
		"route", dec.Dispatch.Route,
		"card", dec.Dispatch.MatchedCardID,
		"fallback", dec.Routing.FallbackUsed,
		"emotion", sig.emotion.Primary,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	e.publishTurn(cc, snap, res, text, time.Since(start))
	return res, nil
}

// recoverTurn commits the safe default after a panic so the call continues.
func (e *Engine) recoverTurn(ctx context.Context, cc *callctx.CallContext, turn Turn, reason string) (Result, error) {
	if ctx.Err() != nil {
		return Result{}, ErrCallEnded
	}
	dec := Decision{
		Routing: router.Decision{
			Target:       router.DefaultTarget,
			Confidence:   0.2,
			Priority:     router.PriorityNormal,
			FallbackUsed: true,
			Tier:         router.TierFallback,
			Reason:       "engine panic: " + reason,
		},
		Dispatch: triage.Result{Route: triage.RouteMessageOnly, Reason: "engine panic"},
		Intent:   callctx.IntentOther,
	}
	if emotion.IsEmergency(turn.Text) {
		dec.Routing.Priority = router.PriorityEmergency
		dec.Emergency = true
		dec.Intent = callctx.IntentEmergency
		dec.Dispatch = e.dispatcher.Dispatch(triage.Decision{Emergency: true, Text: turn.Text}, nil)
	}
	prompt := genericPrompt
	n := cc.Apply(callctx.Commit{
		Intent: dec.Intent,
		Tier: callctx.TierRecord{
			Tier:         tierEnginePanic,
			Target:       dec.Routing.Target,
			Confidence:   dec.Routing.Confidence,
			Route:        string(dec.Dispatch.Route),
			Reason:       dec.Routing.Reason,
			FallbackUsed: true,
		},
		CallerText: turn.Text,
		AgentText:  prompt,
		At:         turn.At,
	})
	res := Result{Turn: n, Decision: dec, NextPrompt: prompt, Emotion: emotion.Result{Primary: emotion.Neutral}}
	e.publishTurn(cc, catalog.Snapshot{}, res, turn.Text, 0)
	return res, nil
}

const tierEnginePanic = "engine_panic"

func matchedIDs(matches []triage.Match, dispatched string) []string {
	ids := make([]string, 0, len(matches)+1)
	seen := make(map[string]bool, len(matches)+1)
	for _, m := range matches {
		if !seen[m.Card.ID] {
			seen[m.Card.ID] = true
			ids = append(ids, m.Card.ID)
		}
	}
	if dispatched != "" && !seen[dispatched] {
		ids = append(ids, dispatched)
	}
	return ids
}

func tierReason(dec decision) string {
	if dec.Routing.Reason != "" {
		return dec.Routing.Reason + "; " + dec.Dispatch.Reason
	}
	return dec.Dispatch.Reason
}
