package gateway

import (
	"context"
	"sync"
	"time"
)

type cacheEntry struct {
	intent   *Intent
	cachedAt time.Time
}

// CachedGateway fronts a Gateway with a short TTL cache of intent lookups.
// The cache is advisory: the TTL fast-path only ever serves unsettled
// entries, so a paid or failed decision always rests on a live gateway
// answer. Settled entries are kept solely as an outage fallback; their
// states never move, so staleness cannot mislead the caller.
type CachedGateway struct {
	inner Gateway
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func NewCachedGateway(inner Gateway, ttl time.Duration) *CachedGateway {
	return &CachedGateway{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (g *CachedGateway) IntentStatus(ctx context.Context, ref string) (*Intent, error) {
	g.mu.RLock()
	entry, ok := g.entries[ref]
	g.mu.RUnlock()

	if ok && !entry.intent.Settled() && time.Since(entry.cachedAt) < g.ttl {
		return entry.intent, nil
	}

	intent, err := g.inner.IntentStatus(ctx, ref)
	if err != nil {
		if ok && entry.intent.Settled() {
			return entry.intent, nil
		}
		return nil, err
	}

	g.mu.Lock()
	g.entries[ref] = cacheEntry{intent: intent, cachedAt: time.Now()}
	g.mu.Unlock()

	return intent, nil
}
