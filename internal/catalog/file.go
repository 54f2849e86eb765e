package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/frontdesk/internal/triage"
)

// fileDoc is the YAML layout of a rules file:
//
//	companies:
//	  - id: acme-hvac
//	    trade: HVAC
//	    thresholds: {min_classifier_confidence: 0.6}
//	    cards:
//	      - id: cooling
//	        label: cooling_problem
//	        keywords: [a/c, cooling]
type fileDoc struct {
	Companies []companyDoc `yaml:"companies"`
}

type companyDoc struct {
	Company `yaml:",inline"`
	Cards   []triage.RuleCard `yaml:"cards"`
}

// Parse decodes a rules file into per-company snapshots. Card Position is the
// card's index in the file.
func Parse(data []byte) (map[string]Snapshot, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode rules yaml: %w", err)
	}

	now := time.Now().UTC()
	out := make(map[string]Snapshot, len(doc.Companies))
	for i, c := range doc.Companies {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return nil, fmt.Errorf("company %d: missing id", i)
		}
		if _, dup := out[id]; dup {
			return nil, fmt.Errorf("company %s: defined twice", id)
		}
		cards, err := validateCards(id, c.Cards)
		if err != nil {
			return nil, err
		}
		c.Company.ID = id
		out[id] = Snapshot{Company: c.Company, Cards: cards, LoadedAt: now}.withDefaults()
	}
	return out, nil
}

func validateCards(companyID string, cards []triage.RuleCard) ([]triage.RuleCard, error) {
	seen := make(map[string]bool, len(cards))
	out := make([]triage.RuleCard, 0, len(cards))
	for i, card := range cards {
		if card.ID == "" {
			return nil, fmt.Errorf("company %s: card %d: missing id", companyID, i)
		}
		if seen[card.ID] {
			return nil, fmt.Errorf("company %s: card %s: duplicate id", companyID, card.ID)
		}
		seen[card.ID] = true
		switch card.Action {
		case "", triage.ActionBook, triage.ActionTransfer, triage.ActionEnd, triage.ActionMessage, triage.ActionRouteToScenario:
		default:
			return nil, fmt.Errorf("company %s: card %s: unknown action %q", companyID, card.ID, card.Action)
		}
		if card.Action == "" {
			card.Action = triage.ActionRouteToScenario
		}
		card.Position = i
		out = append(out, card)
	}
	return out, nil
}

// FileSource serves snapshots from a YAML rules file. Reload replaces the
// whole set atomically; a file that fails to parse leaves the previous set in
// place.
type FileSource struct {
	path   string
	logger *slog.Logger

	mu        sync.RWMutex
	companies map[string]Snapshot
}

// NewFileSource reads path once and fails if it cannot be parsed.
func NewFileSource(path string, logger *slog.Logger) (*FileSource, error) {
	f := &FileSource{path: path, logger: logger}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Reload re-reads the file.
func (f *FileSource) Reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("read rules file: %w", err)
	}
	companies, err := Parse(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", f.path, err)
	}

	f.mu.Lock()
	f.companies = companies
	f.mu.Unlock()

	f.logger.Info("rules file loaded", "path", f.path, "companies", len(companies))
	return nil
}

// Load implements Source.
func (f *FileSource) Load(_ context.Context, companyID string) (Snapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	snap, ok := f.companies[companyID]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownCompany, companyID)
	}
	return snap, nil
}

// Companies lists the configured company IDs in sorted order.
func (f *FileSource) Companies() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := make([]string, 0, len(f.companies))
	for id := range f.companies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Path returns the watched file path.
func (f *FileSource) Path() string { return f.path }
