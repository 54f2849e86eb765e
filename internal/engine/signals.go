package engine

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/frontdesk/internal/callctx"
	"github.com/MikeSquared-Agency/frontdesk/internal/emotion"
	"github.com/MikeSquared-Agency/frontdesk/internal/triage"
)

// signals are the outputs of the independent extractors for one turn.
type signals struct {
	emotion   emotion.Result
	matches   []triage.Match
	emergency bool
}

// extractSignals runs the extractors concurrently. Each one is isolated: a
// panic in one leaves its zero value and the others still report.
func (e *Engine) extractSignals(text string, cc *callctx.CallContext, cards []triage.RuleCard) signals {
	var s signals
	history := &emotion.CallerHistory{PriorCalls: cc.PriorCalls()}

	var g errgroup.Group
	g.Go(isolate("emotion", func() { s.emotion = e.analyzer.Analyze(text, history) }))
	g.Go(isolate("triage", func() { s.matches = triage.MatchCards(text, cards) }))
	g.Go(isolate("emergency", func() { s.emergency = emotion.IsEmergency(text) }))
	if err := g.Wait(); err != nil {
		e.logger.Warn("signal extractor failed", "call_id", cc.CallID(), "error", err)
	}

	if s.emotion.Primary == "" {
		s.emotion = emotion.Result{Primary: emotion.Neutral}
	}
	return s
}

func isolate(name string, fn func()) func() error {
	return func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("%s extractor panic: %v", name, p)
			}
		}()
		fn()
		return nil
	}
}
