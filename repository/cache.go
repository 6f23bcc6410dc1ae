package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"stock-analyst/observability"

	"golang.org/x/sync/singleflight"
)

// LookupStatus is the outcome of a cache read
type LookupStatus int

const (
	LookupMiss LookupStatus = iota
	LookupHit
	LookupUnavailable
)

func (s LookupStatus) String() string {
	switch s {
	case LookupHit:
		return "hit"
	case LookupUnavailable:
		return "unavailable"
	default:
		return "miss"
	}
}

// Cache wraps a Backend with lazy connection, JSON serialization and
// fail-soft error handling. A backend failure drops the connection and the
// next call dials again. Concurrent callers share one dial, and the lock is
// never held while dialing.
type Cache struct {
	dial  Dialer
	dials singleflight.Group

	mu      sync.Mutex
	backend Backend
}

// dialTimeout bounds a shared dial, which outlives any single caller
const dialTimeout = 5 * time.Second

// NewCache creates a Cache that connects on first use
func NewCache(dial Dialer) *Cache {
	return &Cache{dial: dial}
}

// NewCacheWithBackend creates a Cache around an already connected backend
func NewCacheWithBackend(b Backend) *Cache {
	return &Cache{
		dial:    func(context.Context) (Backend, error) { return b, nil },
		backend: b,
	}
}

func (c *Cache) current() Backend {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend
}

func (c *Cache) conn(ctx context.Context) (Backend, error) {
	if b := c.current(); b != nil {
		return b, nil
	}
	if c.dial == nil {
		return nil, errors.New("no cache backend configured")
	}

	ch := c.dials.DoChan("dial", func() (any, error) {
		if b := c.current(); b != nil {
			return b, nil
		}
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dialTimeout)
		defer cancel()

		b, err := c.dial(dctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.backend = b
		c.mu.Unlock()
		return b, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("failed to connect cache backend: %w", res.Err)
		}
		return res.Val.(Backend), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// release drops the backend after a failure so the next call reconnects.
// Cancellation by the caller says nothing about backend health.
func (c *Cache) release(b Backend, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend == b {
		c.backend = nil
		if closeErr := b.Close(); closeErr != nil {
			observability.Debug("cache backend close failed", "error", closeErr)
		}
	}
}

func keyPrefix(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "other"
}

func (c *Cache) fail(op, key string, b Backend, err error) {
	observability.Warn("cache operation failed",
		"operation", op,
		"key", key,
		"error", err,
	)
	observability.GetMetrics().RecordCacheOperation(keyPrefix(key), op, "error")
	if b != nil {
		c.release(b, err)
	}
}

// Get looks up key and decodes the stored JSON into dest
func (c *Cache) Get(ctx context.Context, key string, dest any) LookupStatus {
	b, err := c.conn(ctx)
	if err != nil {
		c.fail("get", key, nil, err)
		return LookupUnavailable
	}

	data, err := b.Get(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		observability.GetMetrics().RecordCacheOperation(keyPrefix(key), "get", "miss")
		return LookupMiss
	}
	if err != nil {
		c.fail("get", key, b, err)
		return LookupUnavailable
	}

	if err := json.Unmarshal(data, dest); err != nil {
		observability.Warn("discarding undecodable cache entry", "key", key, "error", err)
		observability.GetMetrics().RecordCacheOperation(keyPrefix(key), "get", "miss")
		return LookupMiss
	}

	observability.GetMetrics().RecordCacheOperation(keyPrefix(key), "get", "hit")
	return LookupHit
}

// Set stores value as JSON under key for ttl
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if ttl <= 0 {
		c.fail("set", key, nil, fmt.Errorf("invalid ttl %v", ttl))
		return false
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.fail("set", key, nil, fmt.Errorf("failed to marshal cache value: %w", err))
		return false
	}

	b, err := c.conn(ctx)
	if err != nil {
		c.fail("set", key, nil, err)
		return false
	}

	if err := b.Set(ctx, key, data, ttl); err != nil {
		c.fail("set", key, b, err)
		return false
	}

	observability.GetMetrics().RecordCacheOperation(keyPrefix(key), "set", "ok")
	return true
}

// Exists reports whether an unexpired entry exists for key
func (c *Cache) Exists(ctx context.Context, key string) bool {
	b, err := c.conn(ctx)
	if err != nil {
		c.fail("exists", key, nil, err)
		return false
	}

	ok, err := b.Exists(ctx, key)
	if err != nil {
		c.fail("exists", key, b, err)
		return false
	}
	return ok
}

// Delete removes key, reporting whether an entry was removed
func (c *Cache) Delete(ctx context.Context, key string) bool {
	b, err := c.conn(ctx)
	if err != nil {
		c.fail("delete", key, nil, err)
		return false
	}

	removed, err := b.Delete(ctx, key)
	if err != nil {
		c.fail("delete", key, b, err)
		return false
	}

	observability.GetMetrics().RecordCacheOperation(keyPrefix(key), "delete", "ok")
	return removed
}

// DeletePrefix removes every key starting with prefix. The boolean is false
// when the backend could not be reached.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) (int64, bool) {
	b, err := c.conn(ctx)
	if err != nil {
		c.fail("delete_prefix", prefix, nil, err)
		return 0, false
	}

	n, err := b.DeletePrefix(ctx, prefix)
	if err != nil {
		c.fail("delete_prefix", prefix, b, err)
		return 0, false
	}

	observability.GetMetrics().RecordCacheOperation(keyPrefix(prefix), "delete_prefix", "ok")
	return n, true
}

// Ping checks backend connectivity. Unlike the data operations it returns
// the error so health checks can report it.
func (c *Cache) Ping(ctx context.Context) error {
	b, err := c.conn(ctx)
	if err != nil {
		return err
	}
	if err := b.Ping(ctx); err != nil {
		c.release(b, err)
		return fmt.Errorf("cache ping failed: %w", err)
	}
	return nil
}

// Close releases the backend connection
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend == nil {
		return nil
	}
	err := c.backend.Close()
	c.backend = nil
	return err
}
