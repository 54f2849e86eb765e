package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/frontdesk/internal/hermes"
)

type cacheEntry struct {
	snap    Snapshot
	expires time.Time
}

// Cache fronts a Source with a TTL. Get never fails: unknown companies get
// the default snapshot and load errors fall back to the last good snapshot.
type Cache struct {
	source Source
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func NewCache(source Source, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{
		source:  source,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the snapshot for companyID.
func (c *Cache) Get(ctx context.Context, companyID string) Snapshot {
	now := c.now()
	c.mu.RLock()
	entry, ok := c.entries[companyID]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.snap
	}

	snap, err := c.source.Load(ctx, companyID)
	switch {
	case err == nil:
		snap = snap.withDefaults()
	case errors.Is(err, ErrUnknownCompany):
		c.logger.Warn("no configuration for company, using defaults", "company_id", companyID)
		snap = DefaultSnapshot(companyID)
	case ok:
		c.logger.Warn("catalog load failed, serving stale snapshot", "company_id", companyID, "error", err)
		snap = entry.snap
	default:
		c.logger.Error("catalog load failed, using defaults", "company_id", companyID, "error", err)
		// Not cached so the next turn retries the source.
		return DefaultSnapshot(companyID)
	}

	c.mu.Lock()
	c.entries[companyID] = cacheEntry{snap: snap, expires: now.Add(c.ttl)}
	c.mu.Unlock()
	return snap
}

// Invalidate drops one company, or every company when companyID is empty.
func (c *Cache) Invalidate(companyID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if companyID == "" {
		c.entries = make(map[string]cacheEntry)
		return
	}
	delete(c.entries, companyID)
}

// HandleInvalidate is the NATS handler for frontdesk.catalog.invalidate.
func (c *Cache) HandleInvalidate(subject string, data []byte) {
	var evt hermes.CatalogInvalidate
	if len(data) > 0 {
		if err := json.Unmarshal(data, &evt); err != nil {
			c.logger.Error("failed to parse invalidate event", "subject", subject, "error", err)
			return
		}
	}
	c.Invalidate(evt.CompanyID)
	c.logger.Info("catalog invalidated", "company_id", evt.CompanyID)
}
