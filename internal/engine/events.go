package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/frontdesk/internal/callctx"
	"github.com/MikeSquared-Agency/frontdesk/internal/catalog"
	"github.com/MikeSquared-Agency/frontdesk/internal/hermes"
	"github.com/MikeSquared-Agency/frontdesk/internal/triage"
)

// publishTurn emits the per-turn events. Publishing failures are logged and
// never affect the call.
func (e *Engine) publishTurn(cc *callctx.CallContext, snap catalog.Snapshot, res Result, text string, latency time.Duration) {
	if e.publisher == nil {
		return
	}
	now := time.Now().UTC()
	dec := res.Decision

	e.publish(hermes.SubjectTurnDecided, hermes.TurnDecided{
		EventID:       uuid.NewString(),
		CallID:        cc.CallID(),
		CompanyID:     cc.CompanyID(),
		Turn:          res.Turn,
		Tier:          string(dec.Routing.Tier),
		Target:        dec.Routing.Target,
		Confidence:    dec.Routing.Confidence,
		Priority:      string(dec.Routing.Priority),
		Route:         string(dec.Dispatch.Route),
		MatchedCardID: dec.Dispatch.MatchedCardID,
		FallbackUsed:  dec.Routing.FallbackUsed,
		Emotion:       string(res.Emotion.Primary),
		Intensity:     res.Emotion.Intensity,
		LatencyMS:     latency.Milliseconds(),
		At:            now,
	})

	if dec.Routing.FallbackUsed {
		e.publish(hermes.SubjectRouteDegraded, hermes.RouteDegraded{
			EventID:   uuid.NewString(),
			CallID:    cc.CallID(),
			CompanyID: cc.CompanyID(),
			Turn:      res.Turn,
			Tier:      string(dec.Routing.Tier),
			Reason:    dec.Routing.Reason,
			Attempts:  dec.Routing.Attempts,
			At:        now,
		})
	}

	if dec.Emergency && dec.Dispatch.Route == triage.RouteTransfer {
		target := ""
		if dec.Dispatch.Transfer != nil {
			target = dec.Dispatch.Transfer.Target
		}
		slots := cc.Extracted()
		e.publish(hermes.SubjectCallEmergency, hermes.CallEmergency{
			EventID:        uuid.NewString(),
			CallID:         cc.CallID(),
			CompanyID:      cc.CompanyID(),
			CompanyName:    snap.Company.Name,
			CallerPhone:    slots.Contact.Phone,
			Address:        slots.Location.Address,
			Utterance:      text,
			MatchedCardID:  dec.Dispatch.MatchedCardID,
			TransferTarget: target,
			At:             now,
		})
	}
}

func (e *Engine) publish(subject string, data any) {
	if err := e.publisher.Publish(subject, data); err != nil {
		e.logger.Warn("event publish failed", "subject", subject, "error", err)
	}
}
