package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/frontdesk/internal/callctx"
)

// SaveCallSnapshot writes a finished call and its routing trace in one
// transaction. Saving the same call again replaces the earlier copy.
func (s *Store) SaveCallSnapshot(ctx context.Context, snap callctx.Snapshot) error {
	extracted, err := json.Marshal(snap.Extracted)
	if err != nil {
		return fmt.Errorf("encode extracted: %w", err)
	}
	transcript, err := json.Marshal(snap.Transcript)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO calls (call_id, company_id, trade, caller_phone, intent, ready_to_book, turns,
			triage_matches, extracted, transcript, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (call_id)
		DO UPDATE SET
			intent = $5,
			ready_to_book = $6,
			turns = $7,
			triage_matches = $8,
			extracted = $9,
			transcript = $10,
			ended_at = now()`,
		snap.CallID, snap.CompanyID, snap.Trade, snap.CallerPhone, string(snap.Intent), snap.ReadyToBook, snap.Turns,
		nonNil(snap.TriageMatches), extracted, transcript, snap.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert call: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM call_tiers WHERE call_id = $1`, snap.CallID); err != nil {
		return fmt.Errorf("clear tier trace: %w", err)
	}
	for _, rec := range snap.TierTrace {
		_, err = tx.Exec(ctx, `
			INSERT INTO call_tiers (id, call_id, turn, tier, target, confidence, route, reason, fallback_used, decided_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			uuid.New(), snap.CallID, rec.Turn, rec.Tier, rec.Target, rec.Confidence, rec.Route, rec.Reason, rec.FallbackUsed, rec.At,
		)
		if err != nil {
			return fmt.Errorf("insert tier record: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// PriorCalls counts earlier calls from phone to a company.
func (s *Store) PriorCalls(ctx context.Context, companyID, phone string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM calls WHERE company_id = $1 AND caller_phone = $2`,
		companyID, phone,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count prior calls: %w", err)
	}
	return n, nil
}

// CallRow is a persisted call as read back for review.
type CallRow struct {
	CallID      string
	CompanyID   string
	Intent      string
	ReadyToBook bool
	Turns       int
	Tiers       []callctx.TierRecord
}

// GetCall reads a persisted call and its trace in turn order.
func (s *Store) GetCall(ctx context.Context, callID string) (*CallRow, error) {
	var c CallRow
	err := s.pool.QueryRow(ctx, `
		SELECT call_id, company_id, intent, ready_to_book, turns FROM calls WHERE call_id = $1`, callID,
	).Scan(&c.CallID, &c.CompanyID, &c.Intent, &c.ReadyToBook, &c.Turns)
	if err != nil {
		return nil, fmt.Errorf("get call: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT turn, tier, target, confidence, route, reason, fallback_used, decided_at
		FROM call_tiers WHERE call_id = $1 ORDER BY turn`, callID)
	if err != nil {
		return nil, fmt.Errorf("get tier trace: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r callctx.TierRecord
		if err := rows.Scan(&r.Turn, &r.Tier, &r.Target, &r.Confidence, &r.Route, &r.Reason, &r.FallbackUsed, &r.At); err != nil {
			return nil, fmt.Errorf("scan tier record: %w", err)
		}
		c.Tiers = append(c.Tiers, r)
	}
	return &c, rows.Err()
}
