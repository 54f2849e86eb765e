package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/frontdesk/internal/callctx"
	"github.com/MikeSquared-Agency/frontdesk/internal/catalog"
	"github.com/MikeSquared-Agency/frontdesk/internal/engine"
	"github.com/MikeSquared-Agency/frontdesk/internal/router"
	"github.com/MikeSquared-Agency/frontdesk/internal/session"
	"github.com/MikeSquared-Agency/frontdesk/internal/triage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type defaultCatalog struct{}

func (defaultCatalog) Get(_ context.Context, companyID string) catalog.Snapshot {
	return catalog.DefaultSnapshot(companyID)
}

func newTestServer(t *testing.T, token string) (*Server, *session.Manager) {
	t.Helper()
	r := router.New(nil, router.Options{}, discardLogger())
	eng := engine.New(defaultCatalog{}, r, triage.NewDispatcher("", discardLogger()), nil, discardLogger())
	mgr := session.NewManager(eng, defaultCatalog{}, nil, nil, discardLogger())
	t.Cleanup(func() { mgr.Shutdown(context.Background()) })
	return NewServer(8760, token, mgr), mgr
}

func do(srv *Server, method, path, body, token string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "")

	w := do(srv, "GET", "/health", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, mgr := newTestServer(t, "")
	if _, err := mgr.Start(context.Background(), session.StartRequest{CallID: "c1", CompanyID: "acme"}); err != nil {
		t.Fatal(err)
	}

	w := do(srv, "GET", "/api/v1/frontdesk/status", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["agent"] != "frontdesk" {
		t.Errorf("expected agent frontdesk, got %v", body["agent"])
	}
	if body["active_calls"] != float64(1) {
		t.Errorf("expected 1 active call, got %v", body["active_calls"])
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "")

	w := do(srv, "GET", "/nonexistent", "", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestCallFlow(t *testing.T) {
	srv, _ := newTestServer(t, "secret")

	w := do(srv, "POST", "/api/v1/calls", `{"call_id":"call-1","company_id":"acme","caller_phone":"555-201-3344"}`, "secret")
	if w.Code != http.StatusCreated {
		t.Fatalf("start: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = do(srv, "POST", "/api/v1/calls/call-1/turns", `{"text":"I need to book an appointment"}`, "secret")
	if w.Code != http.StatusOK {
		t.Fatalf("turn: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res engine.Result
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("decode turn: %v", err)
	}
	if res.Turn != 1 || res.Decision.Dispatch.Route != triage.RouteBookingFlow {
		t.Errorf("unexpected turn result %+v", res)
	}
	if res.NextPrompt != "Can I get your name?" {
		t.Errorf("expected name question, got %q", res.NextPrompt)
	}

	w = do(srv, "GET", "/api/v1/calls/call-1", "", "secret")
	var snap callctx.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Turns != 1 || snap.Intent != callctx.IntentBooking {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	w = do(srv, "DELETE", "/api/v1/calls/call-1", "", "secret")
	if w.Code != http.StatusOK {
		t.Fatalf("end: expected 200, got %d", w.Code)
	}

	w = do(srv, "POST", "/api/v1/calls/call-1/turns", `{"text":"hello?"}`, "secret")
	if w.Code != http.StatusNotFound {
		t.Errorf("turn after end: expected 404, got %d", w.Code)
	}
}

func TestCallErrors(t *testing.T) {
	srv, _ := newTestServer(t, "")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"bad json", "POST", "/api/v1/calls", `{`, http.StatusBadRequest},
		{"missing company", "POST", "/api/v1/calls", `{"call_id":"x"}`, http.StatusBadRequest},
		{"unknown call turn", "POST", "/api/v1/calls/ghost/turns", `{"text":"hi"}`, http.StatusNotFound},
		{"unknown call end", "DELETE", "/api/v1/calls/ghost", "", http.StatusNotFound},
		{"unknown call get", "GET", "/api/v1/calls/ghost", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(srv, tt.method, tt.path, tt.body, "")
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}

	if w := do(srv, "POST", "/api/v1/calls", `{"call_id":"dup","company_id":"acme"}`, ""); w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if w := do(srv, "POST", "/api/v1/calls", `{"call_id":"dup","company_id":"acme"}`, ""); w.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate call, got %d", w.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	srv, _ := newTestServer(t, "secret")

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "nope", http.StatusUnauthorized},
		{"valid", "secret", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(srv, "GET", "/api/v1/calls/ghost", "", tt.token)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}

	// Health stays open.
	if w := do(srv, "GET", "/health", "", ""); w.Code != http.StatusOK {
		t.Errorf("health should not require auth, got %d", w.Code)
	}
}
