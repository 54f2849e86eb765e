// Package session owns live calls. Each call gets one Session whose turn lock
// keeps turns strictly sequential; calls run in parallel.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/frontdesk/internal/callctx"
	"github.com/MikeSquared-Agency/frontdesk/internal/engine"
	"github.com/MikeSquared-Agency/frontdesk/internal/hermes"
)

var (
	ErrUnknownCall = errors.New("unknown call")
	ErrCallExists  = errors.New("call already started")
)

// Processor runs a single turn. *engine.Engine satisfies it.
type Processor interface {
	ProcessTurn(ctx context.Context, cc *callctx.CallContext, turn engine.Turn) (engine.Result, error)
}

// Store persists finished calls and answers caller history lookups.
type Store interface {
	SaveCallSnapshot(ctx context.Context, snap callctx.Snapshot) error
	PriorCalls(ctx context.Context, companyID, phone string) (int, error)
}

// Session is one live call.
type Session struct {
	// turnMu serializes turns and guards cc.
	turnMu sync.Mutex
	cc     *callctx.CallContext

	ctx    context.Context
	cancel context.CancelFunc
}

// StartRequest describes a call that was just answered.
type StartRequest struct {
	CallID      string `json:"call_id"`
	CompanyID   string `json:"company_id"`
	CallerPhone string `json:"caller_phone,omitempty"`
}

type Manager struct {
	processor Processor
	catalog   engine.Catalog
	store     Store
	publisher engine.Publisher
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager. store and publisher may be nil.
func NewManager(p Processor, cat engine.Catalog, store Store, pub engine.Publisher, logger *slog.Logger) *Manager {
	return &Manager{
		processor: p,
		catalog:   cat,
		store:     store,
		publisher: pub,
		logger:    logger,
		sessions:  make(map[string]*Session),
	}
}

// Start opens a session. A missing CallID gets a generated one.
func (m *Manager) Start(ctx context.Context, req StartRequest) (callctx.Snapshot, error) {
	if req.CompanyID == "" {
		return callctx.Snapshot{}, errors.New("company_id is required")
	}
	if req.CallID == "" {
		req.CallID = uuid.NewString()
	}

	snap := m.catalog.Get(ctx, req.CompanyID)
	cc := callctx.New(req.CallID, req.CompanyID, snap.Company.Trade)

	if req.CallerPhone != "" {
		prior := 0
		if m.store != nil {
			n, err := m.store.PriorCalls(ctx, req.CompanyID, req.CallerPhone)
			if err != nil {
				m.logger.Warn("caller history lookup failed", "call_id", req.CallID, "error", err)
			} else {
				prior = n
			}
		}
		cc.SetCaller(req.CallerPhone, prior)
	}

	// The call outlives the request that started it.
	callCtx, cancel := context.WithCancel(context.Background())
	s := &Session{cc: cc, ctx: callCtx, cancel: cancel}

	m.mu.Lock()
	if _, exists := m.sessions[req.CallID]; exists {
		m.mu.Unlock()
		cancel()
		return callctx.Snapshot{}, fmt.Errorf("start %s: %w", req.CallID, ErrCallExists)
	}
	m.sessions[req.CallID] = s
	m.mu.Unlock()

	m.logger.Info("call started",
		"call_id", req.CallID,
		"company_id", req.CompanyID,
		"trade", cc.Trade(),
		"prior_calls", cc.PriorCalls(),
	)
	return cc.Snapshot(), nil
}

func (m *Manager) lookup(callID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[callID]
	if !ok {
		return nil, fmt.Errorf("call %s: %w", callID, ErrUnknownCall)
	}
	return s, nil
}

// Turn processes one utterance for a live call. It waits for any in-flight
// turn of the same call. The turn is abandoned if either ctx or the call ends.
func (m *Manager) Turn(ctx context.Context, callID, text string) (engine.Result, error) {
	s, err := m.lookup(callID)
	if err != nil {
		return engine.Result{}, err
	}

	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	turnCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return m.processor.ProcessTurn(turnCtx, s.cc, engine.Turn{Text: text, At: time.Now().UTC()})
}

// Get returns a snapshot of a live call.
func (m *Manager) Get(callID string) (callctx.Snapshot, error) {
	s, err := m.lookup(callID)
	if err != nil {
		return callctx.Snapshot{}, err
	}
	s.turnMu.Lock()
	defer s.turnMu.Unlock()
	return s.cc.Snapshot(), nil
}

// Active returns the number of live calls.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// End tears a call down: the call context is cancelled first so an in-flight
// turn stops before commit, then the final state is persisted and announced.
func (m *Manager) End(ctx context.Context, callID string) (callctx.Snapshot, error) {
	m.mu.Lock()
	s, ok := m.sessions[callID]
	if ok {
		delete(m.sessions, callID)
	}
	m.mu.Unlock()
	if !ok {
		return callctx.Snapshot{}, fmt.Errorf("end %s: %w", callID, ErrUnknownCall)
	}

	s.cancel()
	s.turnMu.Lock()
	snap := s.cc.Snapshot()
	s.turnMu.Unlock()

	var saveErr error
	if m.store != nil {
		if err := m.store.SaveCallSnapshot(ctx, snap); err != nil {
			m.logger.Error("failed to persist call snapshot", "call_id", callID, "error", err)
			saveErr = fmt.Errorf("save call %s: %w", callID, err)
		}
	}

	duration := time.Since(snap.StartedAt)
	if m.publisher != nil {
		evt := hermes.CallEnded{
			EventID:     uuid.NewString(),
			CallID:      snap.CallID,
			CompanyID:   snap.CompanyID,
			Intent:      string(snap.Intent),
			Turns:       snap.Turns,
			ReadyToBook: snap.ReadyToBook,
			DurationSec: duration.Seconds(),
			At:          time.Now().UTC(),
		}
		if err := m.publisher.Publish(hermes.SubjectCallEnded, evt); err != nil {
			m.logger.Warn("event publish failed", "subject", hermes.SubjectCallEnded, "error", err)
		}
	}

	m.logger.Info("call ended",
		"call_id", callID,
		"turns", snap.Turns,
		"intent", snap.Intent,
		"ready_to_book", snap.ReadyToBook,
		"duration_ms", duration.Milliseconds(),
	)
	return snap, saveErr
}

// Shutdown ends every live call.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if _, err := m.End(ctx, id); err != nil && !errors.Is(err, ErrUnknownCall) {
			m.logger.Warn("failed to end call on shutdown", "call_id", id, "error", err)
		}
	}
}
