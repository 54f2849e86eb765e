package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/frontdesk/internal/callctx"
	"github.com/MikeSquared-Agency/frontdesk/internal/engine"
	"github.com/MikeSquared-Agency/frontdesk/internal/session"
)

// Calls is the session surface the HTTP adapter drives. *session.Manager
// satisfies it.
type Calls interface {
	Start(ctx context.Context, req session.StartRequest) (callctx.Snapshot, error)
	Turn(ctx context.Context, callID, text string) (engine.Result, error)
	Get(callID string) (callctx.Snapshot, error)
	End(ctx context.Context, callID string) (callctx.Snapshot, error)
	Active() int
}

type Server struct {
	router *chi.Mux
	port   int
	calls  Calls
	http   *http.Server
}

func NewServer(port int, apiToken string, calls Calls) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		calls:  calls,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/frontdesk/status", s.status)

	router.Route("/api/v1/calls", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Post("/", s.startCall)
		r.Get("/{callID}", s.getCall)
		r.Post("/{callID}/turns", s.processTurn)
		r.Delete("/{callID}", s.endCall)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("API server starting", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// BearerAuthMiddleware rejects requests without the configured token. An
// empty token disables the check.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || got != token {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":        "frontdesk",
		"status":       "live",
		"active_calls": s.calls.Active(),
	})
}

func (s *Server) startCall(w http.ResponseWriter, r *http.Request) {
	var req session.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.CompanyID == "" {
		writeError(w, http.StatusBadRequest, "company_id is required")
		return
	}

	snap, err := s.calls.Start(r.Context(), req)
	if err != nil {
		writeCallError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) getCall(w http.ResponseWriter, r *http.Request) {
	snap, err := s.calls.Get(chi.URLParam(r, "callID"))
	if err != nil {
		writeCallError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// TurnRequest is the body of POST /api/v1/calls/{callID}/turns.
type TurnRequest struct {
	Text string `json:"text"`
}

func (s *Server) processTurn(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	res, err := s.calls.Turn(r.Context(), chi.URLParam(r, "callID"), req.Text)
	if err != nil {
		writeCallError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) endCall(w http.ResponseWriter, r *http.Request) {
	snap, err := s.calls.End(r.Context(), chi.URLParam(r, "callID"))
	if err != nil && snap.CallID == "" {
		writeCallError(w, err)
		return
	}
	// A persistence failure still ends the call; the snapshot is returned.
	writeJSON(w, http.StatusOK, snap)
}

func writeCallError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrUnknownCall):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrCallExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrCallEnded):
		writeError(w, http.StatusGone, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
