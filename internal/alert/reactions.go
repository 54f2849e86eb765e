package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ReactionEvent is the structure received from slack-forwarder via NATS.
type ReactionEvent struct {
	Reaction  string `json:"reaction"`
	UserID    string `json:"user_id"`
	Channel   string `json:"channel"`
	MessageTS string `json:"message_ts"`
}

// IsAcknowledgement reports whether a reaction acknowledges an alert.
func IsAcknowledgement(reaction string) bool {
	switch reaction {
	case "white_check_mark", "heavy_check_mark", "+1", "thumbsup", "eyes":
		return true
	default:
		return false
	}
}

// ParseReactionEvent parses a slack-forwarder payload. The forwarder wraps
// the reaction fields in a metadata map.
func ParseReactionEvent(data []byte) (*ReactionEvent, error) {
	var wrapper struct {
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("parse reaction wrapper: %w", err)
	}

	evt := &ReactionEvent{
		Reaction:  wrapper.Metadata["text"],
		UserID:    wrapper.Metadata["user_id"],
		Channel:   wrapper.Metadata["channel_id"],
		MessageTS: wrapper.Metadata["message_ts"],
	}

	if len(evt.Reaction) > 2 && evt.Reaction[0] == ':' && evt.Reaction[len(evt.Reaction)-1] == ':' {
		evt.Reaction = evt.Reaction[1 : len(evt.Reaction)-1]
	}
	return evt, nil
}

// HandleReaction is the NATS handler for Slack reactions. An acknowledgement
// on one of our alerts gets a threaded confirmation and the alert is closed.
func (p *Poster) HandleReaction(subject string, data []byte) {
	evt, err := ParseReactionEvent(data)
	if err != nil {
		p.logger.Error("failed to parse reaction", "subject", subject, "error", err)
		return
	}
	if !IsAcknowledgement(evt.Reaction) {
		return
	}

	p.mu.Lock()
	alert, ok := p.alerts[evt.MessageTS]
	if ok {
		delete(p.alerts, evt.MessageTS)
	}
	p.mu.Unlock()
	if !ok {
		return
	}

	p.logger.Info("emergency alert acknowledged", "call_id", alert.CallID, "user_id", evt.UserID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	text := fmt.Sprintf("Acknowledged by <@%s>", evt.UserID)
	if err := p.PostThread(ctx, evt.MessageTS, text); err != nil {
		p.logger.Warn("failed to post acknowledgement", "call_id", alert.CallID, "error", err)
	}
}

// Pending returns the number of alerts not yet acknowledged.
func (p *Poster) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.alerts)
}
