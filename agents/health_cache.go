package agents

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultHealthCacheTTL is how long a probe outcome is reused
const DefaultHealthCacheTTL = 30 * time.Second

// probeTimeout bounds a shared probe, which outlives any single caller
const probeTimeout = 5 * time.Second

// HealthCache remembers the outcome of a dependency probe for a TTL.
// Concurrent checks on an expired entry share a single probe.
type HealthCache struct {
	mu        sync.RWMutex
	available bool
	lastErr   error
	checkedAt time.Time
	ttl       time.Duration
	now       func() time.Time
	flight    singleflight.Group
}

// NewHealthCache returns an empty cache. A zero TTL probes on every check.
func NewHealthCache(ttl time.Duration) *HealthCache {
	return &HealthCache{ttl: ttl, now: time.Now}
}

// Get returns the remembered outcome and whether it is still fresh
func (c *HealthCache) Get() (available bool, valid bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	valid = !c.checkedAt.IsZero() && c.now().Sub(c.checkedAt) < c.ttl
	return c.available, valid
}

// Set records a probe outcome
func (c *HealthCache) Set(available bool) {
	c.record(available, nil)
}

func (c *HealthCache) record(available bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.available = available
	c.lastErr = err
	c.checkedAt = c.now()
}

// LastError is the error of the most recent failed probe, nil when the
// last probe succeeded
func (c *HealthCache) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Check serves the remembered outcome while fresh, otherwise runs probe.
// cached reports whether the answer came from memory.
func (c *HealthCache) Check(ctx context.Context, probe func(context.Context) error) (available bool, cached bool) {
	if available, valid := c.Get(); valid {
		return available, true
	}
	ch := c.flight.DoChan("probe", func() (any, error) {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), probeTimeout)
		defer cancel()
		err := probe(pctx)
		c.record(err == nil, err)
		return err == nil, nil
	})
	select {
	case res := <-ch:
		return res.Val.(bool), false
	case <-ctx.Done():
		return false, false
	}
}

// Invalidate forces the next Check to probe
func (c *HealthCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkedAt = time.Time{}
}

func (c *HealthCache) TTL() time.Duration { return c.ttl }
