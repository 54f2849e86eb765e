// Package catalog serves read-only company configuration and rule-card
// snapshots to the turn engine. Snapshots are immutable once published; a
// reload swaps in a new snapshot and never edits one in place.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/MikeSquared-Agency/frontdesk/internal/triage"
)

// ErrUnknownCompany is returned by a Source that has no such company.
var ErrUnknownCompany = errors.New("unknown company")

const defaultTrade = "home services"

// Thresholds are the per-company tuning knobs.
type Thresholds struct {
	// MinClassifierConfidence rejects classifier answers below it.
	MinClassifierConfidence float64 `json:"min_classifier_confidence" yaml:"min_classifier_confidence"`
	// EscalationIntensity is the ANGRY/PANICKED intensity that triggers a
	// transfer to a human.
	EscalationIntensity float64 `json:"escalation_intensity" yaml:"escalation_intensity"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{MinClassifierConfidence: 0.55, EscalationIntensity: 0.85}
}

type Company struct {
	ID             string     `json:"id" yaml:"id"`
	Name           string     `json:"name" yaml:"name"`
	Trade          string     `json:"trade" yaml:"trade"`
	TransferTarget string     `json:"transfer_target,omitempty" yaml:"transfer_target"`
	Thresholds     Thresholds `json:"thresholds" yaml:"thresholds"`
}

// Snapshot is one company's configuration at a point in time.
type Snapshot struct {
	Company  Company           `json:"company"`
	Cards    []triage.RuleCard `json:"cards"`
	LoadedAt time.Time         `json:"loaded_at"`
	// Default is set when the company was not found and defaults apply.
	Default bool `json:"default"`
}

// Source loads snapshots from some backing store.
type Source interface {
	Load(ctx context.Context, companyID string) (Snapshot, error)
}

// DefaultSnapshot is used for companies with no configuration: no cards,
// generic trade, default thresholds.
func DefaultSnapshot(companyID string) Snapshot {
	return Snapshot{
		Company: Company{
			ID:         companyID,
			Name:       companyID,
			Trade:      defaultTrade,
			Thresholds: DefaultThresholds(),
		},
		LoadedAt: time.Now().UTC(),
		Default:  true,
	}
}

// withDefaults fills unset company fields.
func (s Snapshot) withDefaults() Snapshot {
	d := DefaultThresholds()
	if s.Company.Trade == "" {
		s.Company.Trade = defaultTrade
	}
	if s.Company.Thresholds.MinClassifierConfidence <= 0 {
		s.Company.Thresholds.MinClassifierConfidence = d.MinClassifierConfidence
	}
	if s.Company.Thresholds.EscalationIntensity <= 0 {
		s.Company.Thresholds.EscalationIntensity = d.EscalationIntensity
	}
	if s.LoadedAt.IsZero() {
		s.LoadedAt = time.Now().UTC()
	}
	return s
}
