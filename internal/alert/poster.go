// Package alert pages the on-call channel in Slack when a call is transferred
// as an emergency, and tracks acknowledgements through reactions.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/frontdesk/internal/hermes"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

type Poster struct {
	token   string
	channel string
	client  *http.Client
	logger  *slog.Logger
	apiURL  string

	mu     sync.Mutex
	alerts map[string]hermes.CallEmergency // message ts -> alert
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
		alerts:  make(map[string]hermes.CallEmergency),
	}
}

// PostEmergency pages the on-call channel and returns the message timestamp.
func (p *Poster) PostEmergency(ctx context.Context, evt hermes.CallEmergency) (string, error) {
	text := formatEmergency(evt)
	ts, err := p.post(ctx, map[string]any{
		"channel": p.channel,
		"text":    text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": text,
				},
			},
			{
				"type": "context",
				"elements": []map[string]any{
					{
						"type": "mrkdwn",
						"text": "React :white_check_mark: to acknowledge",
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.alerts[ts] = evt
	p.mu.Unlock()

	p.logger.Info("posted emergency alert to slack", "ts", ts, "call_id", evt.CallID)
	return ts, nil
}

// PostThread posts a threaded reply to an alert.
func (p *Poster) PostThread(ctx context.Context, threadTS, text string) error {
	_, err := p.post(ctx, map[string]any{
		"channel":   p.channel,
		"thread_ts": threadTS,
		"text":      text,
	})
	return err
}

func (p *Poster) post(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		TS    string `json:"ts"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return "", fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return "", fmt.Errorf("slack error: %s", slackResp.Error)
	}
	return slackResp.TS, nil
}

// HandleEmergency is the NATS handler for frontdesk.call.emergency.
func (p *Poster) HandleEmergency(subject string, data []byte) {
	var evt hermes.CallEmergency
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse emergency event", "subject", subject, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if _, err := p.PostEmergency(ctx, evt); err != nil {
		p.logger.Error("failed to post emergency alert", "call_id", evt.CallID, "error", err)
	}
}

func formatEmergency(evt hermes.CallEmergency) string {
	var sb strings.Builder

	company := evt.CompanyName
	if company == "" {
		company = evt.CompanyID
	}
	fmt.Fprintf(&sb, ":rotating_light: *Emergency call* for %s\n", company)
	fmt.Fprintf(&sb, "*Call:* %s\n", evt.CallID)
	if evt.CallerPhone != "" {
		fmt.Fprintf(&sb, "*Caller:* %s\n", evt.CallerPhone)
	}
	if evt.Address != "" {
		fmt.Fprintf(&sb, "*Address:* %s\n", evt.Address)
	}
	if evt.MatchedCardID != "" {
		fmt.Fprintf(&sb, "*Rule:* %s\n", evt.MatchedCardID)
	}
	fmt.Fprintf(&sb, "*Transferred to:* %s\n", evt.TransferTarget)
	fmt.Fprintf(&sb, "> %s", evt.Utterance)

	return sb.String()
}
