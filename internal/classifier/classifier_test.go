package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/frontdesk/internal/anthropic"
	"github.com/MikeSquared-Agency/frontdesk/internal/router"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func messagesServer(t *testing.T, text string, check func(body map[string]any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode request: %v", err)
			}
			check(body)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]any{{"type": "text", "text": text}},
			"stop_reason": "end_turn",
		})
	}))
}

func TestClassify_Success(t *testing.T) {
	server := messagesServer(t, `{"target":"cooling_problem","thought":"AC not cooling","confidence":0.87,"priority":"NORMAL"}`,
		func(body map[string]any) {
			system, _ := body["system"].(string)
			if !strings.Contains(system, "routing classifier") || !strings.Contains(system, "cooling_problem") {
				t.Errorf("system prompt missing preamble or rules: %q", system)
			}
			msgs, _ := body["messages"].([]any)
			if len(msgs) != 1 {
				t.Errorf("expected 1 message, got %d", len(msgs))
				return
			}
			content, _ := msgs[0].(map[string]any)["content"].(string)
			if !strings.Contains(content, "my AC stopped cooling") {
				t.Errorf("utterance missing from user message: %q", content)
			}
		})
	defer server.Close()

	llm := anthropic.NewClient("test-key", "test-model", time.Second)
	llm.SetBaseURL(server.URL)
	c := New(llm, discardLogger())

	prompt := router.BuildPrompt("HVAC", []router.Rule{{Name: "cooling_problem", Keywords: []string{"cooling"}}})
	got, err := c.Classify(context.Background(), prompt, "my AC stopped cooling")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := router.Classification{Target: "cooling_problem", Thought: "AC not cooling", Confidence: 0.87, Priority: router.PriorityNormal}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestClassify_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	llm := anthropic.NewClient("test-key", "test-model", time.Second)
	llm.SetBaseURL(server.URL)
	c := New(llm, discardLogger())

	_, err := c.Classify(context.Background(), "prompt", "hello")
	var apiErr *anthropic.APIError
	if !errors.As(err, &apiErr) || !apiErr.Temporary() {
		t.Fatalf("expected temporary API error, got %v", err)
	}
}

func TestClassify_Unparseable(t *testing.T) {
	server := messagesServer(t, "Sure! The caller wants a booking.", nil)
	defer server.Close()

	llm := anthropic.NewClient("test-key", "test-model", time.Second)
	llm.SetBaseURL(server.URL)
	c := New(llm, discardLogger())

	if _, err := c.Classify(context.Background(), "prompt", "hello"); !errors.Is(err, ErrNoJSON) {
		t.Fatalf("expected ErrNoJSON, got %v", err)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		target  string
		wantErr bool
	}{
		{"plain", `{"target":"booking","confidence":0.9}`, "booking", false},
		{"fenced", "```json\n{\"target\":\"transfer\",\"confidence\":0.7}\n```", "transfer", false},
		{"prose around", `Here you go: {"target":"wrong_number","confidence":0.6} hope that helps`, "wrong_number", false},
		{"no object", "booking", "", true},
		{"broken json", `{"target": booking}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parse(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Target != tt.target {
				t.Errorf("expected target %q, got %q", tt.target, got.Target)
			}
		})
	}
}

func TestClassify_WithRouterFallsBackOnGarbage(t *testing.T) {
	server := messagesServer(t, `{"target":"","confidence":7}`, nil)
	defer server.Close()

	llm := anthropic.NewClient("test-key", "test-model", time.Second)
	llm.SetBaseURL(server.URL)
	r := router.New(New(llm, discardLogger()), router.Options{Attempts: 2, Timeout: time.Second, Backoff: time.Millisecond}, discardLogger())

	dec := r.Route(context.Background(), router.Request{UserInput: "what are your hours", Rules: router.BuiltinRules()})
	if dec.Target != router.DefaultTarget || !dec.FallbackUsed {
		t.Errorf("expected safe default, got %+v", dec)
	}
	if dec.Attempts != 2 {
		t.Errorf("expected both attempts used, got %d", dec.Attempts)
	}
}
