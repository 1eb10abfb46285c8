package options

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/avvvet/hrbuddy-intent/internal/logger"
)

// Source fetches the option lists valid for a user, e.g. {"leave_types": [...]}
type Source interface {
	OptionLists(ctx context.Context, userID string) (map[string][]string, error)
}

// StaticSource serves the same option lists to every user
type StaticSource map[string][]string

func (s StaticSource) OptionLists(ctx context.Context, userID string) (map[string][]string, error) {
	return copyLists(s), nil
}

type cacheEntry struct {
	lists   map[string][]string
	expires time.Time
}

// Cache keeps per-user option lists for a bounded time. Concurrent misses for the
// same user share one fetch. A failed refresh serves the stale entry if there is one.
type Cache struct {
	source Source
	ttl    time.Duration
	now    func() time.Time
	logger logger.Logger

	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

func NewCache(source Source, ttl time.Duration, log logger.Logger) *Cache {
	return &Cache{
		source:  source,
		ttl:     ttl,
		now:     time.Now,
		logger:  log,
		entries: make(map[string]cacheEntry),
	}
}

// WithClock replaces the cache clock
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

func (c *Cache) OptionLists(ctx context.Context, userID string) (map[string][]string, error) {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()

	if ok && c.now().Before(entry.expires) {
		return copyLists(entry.lists), nil
	}

	v, err, _ := c.group.Do(userID, func() (interface{}, error) {
		lists, err := c.source.OptionLists(ctx, userID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[userID] = cacheEntry{lists: lists, expires: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return lists, nil
	})
	if err != nil {
		if ok {
			c.logger.Warn("option refresh failed, serving stale lists", map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			})
			return copyLists(entry.lists), nil
		}
		return nil, err
	}
	return copyLists(v.(map[string][]string)), nil
}

// Invalidate drops userID's entry
func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

func copyLists(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}
