package alert

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/MikeSquared-Agency/frontdesk/internal/hermes"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func gasLeak() hermes.CallEmergency {
	return hermes.CallEmergency{
		CallID:         "call-42",
		CompanyID:      "acme-hvac",
		CompanyName:    "Acme Heating & Air",
		CallerPhone:    "555-201-3344",
		Address:        "42 Maple Street",
		Utterance:      "I smell gas in the kitchen",
		MatchedCardID:  "card-gas",
		TransferTarget: "on_call_tech",
	}
}

func TestFormatEmergency(t *testing.T) {
	msg := formatEmergency(gasLeak())
	checks := []string{
		"Emergency call* for Acme Heating & Air",
		"call-42",
		"555-201-3344",
		"42 Maple Street",
		"card-gas",
		"on_call_tech",
		"> I smell gas in the kitchen",
	}
	for _, check := range checks {
		if !strings.Contains(msg, check) {
			t.Errorf("expected message to contain %q", check)
		}
	}
}

func TestFormatEmergency_Sparse(t *testing.T) {
	msg := formatEmergency(hermes.CallEmergency{CallID: "c", CompanyID: "bolt", Utterance: "sparks everywhere"})
	if !strings.Contains(msg, "for bolt") {
		t.Errorf("expected company ID fallback, got %q", msg)
	}
	if strings.Contains(msg, "*Caller:*") || strings.Contains(msg, "*Address:*") {
		t.Errorf("expected empty fields omitted, got %q", msg)
	}
}

// slackServer records every payload and answers with ok and a fixed ts.
type slackServer struct {
	mu       sync.Mutex
	payloads []map[string]any
}

func (s *slackServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer xoxb-test" {
			t.Errorf("expected Bearer xoxb-test, got %q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		s.mu.Lock()
		s.payloads = append(s.payloads, payload)
		s.mu.Unlock()

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "ts": "1234567890.123456"})
	}
}

func TestPostEmergency_Success(t *testing.T) {
	rec := &slackServer{}
	server := httptest.NewServer(rec.handler(t))
	defer server.Close()

	p := NewPoster("xoxb-test", "C-ONCALL", discardLogger())
	p.apiURL = server.URL

	ts, err := p.PostEmergency(context.Background(), gasLeak())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts != "1234567890.123456" {
		t.Errorf("expected ts 1234567890.123456, got %q", ts)
	}
	if rec.payloads[0]["channel"] != "C-ONCALL" {
		t.Errorf("expected channel C-ONCALL, got %v", rec.payloads[0]["channel"])
	}
	if p.Pending() != 1 {
		t.Errorf("expected 1 pending alert, got %d", p.Pending())
	}
}

func TestPostEmergency_SlackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "channel_not_found"})
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C-ONCALL", discardLogger())
	p.apiURL = server.URL

	if _, err := p.PostEmergency(context.Background(), gasLeak()); err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Fatalf("expected channel_not_found error, got %v", err)
	}
	if p.Pending() != 0 {
		t.Error("failed post must not be tracked")
	}
}

func TestHandleEmergencyThenAcknowledge(t *testing.T) {
	rec := &slackServer{}
	server := httptest.NewServer(rec.handler(t))
	defer server.Close()

	p := NewPoster("xoxb-test", "C-ONCALL", discardLogger())
	p.apiURL = server.URL

	data, _ := json.Marshal(gasLeak())
	p.HandleEmergency(hermes.SubjectCallEmergency, data)
	if p.Pending() != 1 {
		t.Fatalf("expected alert pending, got %d", p.Pending())
	}

	// A reaction that is not an acknowledgement is ignored.
	p.HandleReaction(hermes.SubjectSlackReaction, reactionPayload(":heart:", "1234567890.123456"))
	if p.Pending() != 1 {
		t.Fatal("non-ack reaction closed the alert")
	}

	p.HandleReaction(hermes.SubjectSlackReaction, reactionPayload(":white_check_mark:", "1234567890.123456"))
	if p.Pending() != 0 {
		t.Fatal("expected alert acknowledged")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.payloads) != 2 {
		t.Fatalf("expected alert plus thread reply, got %d posts", len(rec.payloads))
	}
	reply := rec.payloads[1]
	if reply["thread_ts"] != "1234567890.123456" || reply["text"] != "Acknowledged by <@U123>" {
		t.Errorf("unexpected thread reply %v", reply)
	}
}

func TestHandleEmergency_BadPayload(t *testing.T) {
	p := NewPoster("xoxb-test", "C-ONCALL", discardLogger())
	p.apiURL = "http://127.0.0.1:1"
	p.HandleEmergency(hermes.SubjectCallEmergency, []byte("not json"))
	if p.Pending() != 0 {
		t.Error("bad payload must not create an alert")
	}
}

func reactionPayload(reaction, ts string) []byte {
	data, _ := json.Marshal(map[string]any{
		"metadata": map[string]string{
			"text":       reaction,
			"user_id":    "U123",
			"channel_id": "C-ONCALL",
			"message_ts": ts,
		},
	})
	return data
}

func TestIsAcknowledgement(t *testing.T) {
	tests := []struct {
		reaction string
		want     bool
	}{
		{"white_check_mark", true},
		{"+1", true},
		{"eyes", true},
		{"heart", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.reaction, func(t *testing.T) {
			if got := IsAcknowledgement(tt.reaction); got != tt.want {
				t.Errorf("IsAcknowledgement(%q) = %v, want %v", tt.reaction, got, tt.want)
			}
		})
	}
}

func TestParseReactionEvent(t *testing.T) {
	evt, err := ParseReactionEvent(reactionPayload(":+1:", "1.2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evt.Reaction != "+1" || evt.UserID != "U123" || evt.Channel != "C-ONCALL" || evt.MessageTS != "1.2" {
		t.Errorf("unexpected event %+v", evt)
	}
	if _, err := ParseReactionEvent([]byte("{")); err == nil {
		t.Error("expected error for malformed payload")
	}
}
