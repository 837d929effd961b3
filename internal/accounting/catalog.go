package accounting

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/smilemakc/mbflow/internal/infrastructure/cache"
	"github.com/smilemakc/mbflow/pkg/models"
)

// negativeCacheTTL bounds how long a confirmed-absent id is remembered,
// per spec §4.3 "negative caching for 404".
const negativeCacheTTL = 5 * time.Minute

// CatalogCache holds a customer or item catalog: a Redis-backed shared
// layer for cross-process sharing, plus an in-process snapshot so readers
// always see either the old or the new snapshot atomically (spec §5).
type CatalogCache struct {
	kind  models.CatalogEntryKind
	redis *cache.RedisCache
	ttl   time.Duration

	mu       sync.RWMutex
	byID     map[string]models.CatalogEntry
	byName   map[string]string // normalized name -> id
	bySKU    map[string]string
	byGTIN   map[string]string
	negative map[string]time.Time
}

// NewCatalogCache builds an empty cache; call Refresh to populate it.
func NewCatalogCache(kind models.CatalogEntryKind, redis *cache.RedisCache, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		kind:     kind,
		redis:    redis,
		ttl:      ttl,
		byID:     map[string]models.CatalogEntry{},
		byName:   map[string]string{},
		bySKU:    map[string]string{},
		byGTIN:   map[string]string{},
		negative: map[string]time.Time{},
	}
}

// Refresh atomically replaces the in-process snapshot with entries,
// building the secondary indexes, and mirrors the snapshot into Redis so
// other processes can share it.
func (c *CatalogCache) Refresh(ctx context.Context, entries []models.CatalogEntry) error {
	now := time.Now()
	byID := make(map[string]models.CatalogEntry, len(entries))
	byName := make(map[string]string, len(entries))
	bySKU := make(map[string]string, len(entries))
	byGTIN := make(map[string]string, len(entries))

	for _, e := range entries {
		e.LastRefreshed = now
		e.TTL = c.ttl
		e.NormalizedName = normalizeKey(e.Name)
		byID[e.ID] = e
		byName[normalizeKey(e.Name)] = e.ID
		if e.SKU != "" {
			bySKU[normalizeKey(e.SKU)] = e.ID
		}
		if e.GTIN != "" {
			byGTIN[e.GTIN] = e.ID
		}
	}

	c.mu.Lock()
	c.byID, c.byName, c.bySKU, c.byGTIN = byID, byName, bySKU, byGTIN
	c.negative = map[string]time.Time{}
	c.mu.Unlock()

	if c.redis == nil {
		return nil
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal catalog snapshot: %w", err)
	}
	return c.redis.Set(ctx, c.redisKey(), string(payload), 2*c.ttl)
}

// Entries returns the current in-process snapshot as a slice, for the
// matcher to score against.
func (c *CatalogCache) Entries() []models.CatalogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.CatalogEntry, 0, len(c.byID))
	for _, e := range c.byID {
		out = append(out, e)
	}
	return out
}

// ByID returns an entry by id, honoring the negative-cache window for ids
// previously confirmed absent.
func (c *CatalogCache) ByID(id string) (models.CatalogEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if until, negated := c.negative[id]; negated && time.Now().Before(until) {
		return models.CatalogEntry{}, false
	}
	e, ok := c.byID[id]
	return e, ok
}

// MarkMissing records a negative-cache entry for id, avoiding a repeated
// upstream lookup within negativeCacheTTL.
func (c *CatalogCache) MarkMissing(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.negative[id] = time.Now().Add(negativeCacheTTL)
}

func (c *CatalogCache) redisKey() string {
	return "accounting:catalog:" + string(c.kind)
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
