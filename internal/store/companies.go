package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/frontdesk/internal/catalog"
	"github.com/MikeSquared-Agency/frontdesk/internal/triage"
)

// Load implements catalog.Source.
func (s *Store) Load(ctx context.Context, companyID string) (catalog.Snapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, trade, transfer_target, min_classifier_confidence, escalation_intensity
		FROM companies WHERE id = $1`, companyID)

	var c catalog.Company
	err := row.Scan(&c.ID, &c.Name, &c.Trade, &c.TransferTarget,
		&c.Thresholds.MinClassifierConfidence, &c.Thresholds.EscalationIntensity)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Snapshot{}, fmt.Errorf("company %s: %w", companyID, catalog.ErrUnknownCompany)
	}
	if err != nil {
		return catalog.Snapshot{}, fmt.Errorf("load company: %w", err)
	}

	cards, err := s.ListRuleCards(ctx, companyID)
	if err != nil {
		return catalog.Snapshot{}, err
	}
	return catalog.Snapshot{Company: c, Cards: cards, LoadedAt: time.Now().UTC()}, nil
}

// ListRuleCards returns a company's cards in priority order, then position,
// then ID. Inactive cards are included; the matcher skips them.
func (s *Store) ListRuleCards(ctx context.Context, companyID string) ([]triage.RuleCard, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, label, priority, position, keywords, exclude_keywords, action,
		       scenario_key, intent, emergency, transfer_target, active, lines
		FROM rule_cards
		WHERE company_id = $1
		ORDER BY priority DESC, position ASC, id ASC`, companyID)
	if err != nil {
		return nil, fmt.Errorf("load rule cards: %w", err)
	}
	defer rows.Close()

	var cards []triage.RuleCard
	for rows.Next() {
		var (
			c      triage.RuleCard
			action string
			active bool
			lines  []byte
		)
		if err := rows.Scan(&c.ID, &c.Label, &c.Priority, &c.Position, &c.Keywords, &c.ExcludeKeywords,
			&action, &c.ScenarioKey, &c.Intent, &c.Emergency, &c.TransferTarget, &active, &lines); err != nil {
			return nil, fmt.Errorf("scan rule card: %w", err)
		}
		c.Action = triage.Action(action)
		c.Active = &active
		if len(lines) > 0 {
			if err := json.Unmarshal(lines, &c.Lines); err != nil {
				return nil, fmt.Errorf("decode lines for card %s: %w", c.ID, err)
			}
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// SaveCompany replaces a company's configuration and cards in one
// transaction.
func (s *Store) SaveCompany(ctx context.Context, snap catalog.Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c := snap.Company
	_, err = tx.Exec(ctx, `
		INSERT INTO companies (id, name, trade, transfer_target, min_classifier_confidence, escalation_intensity, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (id)
		DO UPDATE SET
			name = $2,
			trade = $3,
			transfer_target = $4,
			min_classifier_confidence = $5,
			escalation_intensity = $6,
			updated_at = now()`,
		c.ID, c.Name, c.Trade, c.TransferTarget, c.Thresholds.MinClassifierConfidence, c.Thresholds.EscalationIntensity,
	)
	if err != nil {
		return fmt.Errorf("upsert company: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM rule_cards WHERE company_id = $1`, c.ID); err != nil {
		return fmt.Errorf("clear rule cards: %w", err)
	}

	for _, card := range snap.Cards {
		lines, err := json.Marshal(card.Lines)
		if err != nil {
			return fmt.Errorf("encode lines for card %s: %w", card.ID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO rule_cards (company_id, id, label, priority, position, keywords, exclude_keywords, action,
				scenario_key, intent, emergency, transfer_target, active, lines)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			c.ID, card.ID, card.Label, card.Priority, card.Position, nonNil(card.Keywords), nonNil(card.ExcludeKeywords),
			string(card.Action), card.ScenarioKey, card.Intent, card.Emergency, card.TransferTarget, card.IsActive(), lines,
		)
		if err != nil {
			return fmt.Errorf("insert rule card %s: %w", card.ID, err)
		}
	}

	return tx.Commit(ctx)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ catalog.Source = (*Store)(nil)
