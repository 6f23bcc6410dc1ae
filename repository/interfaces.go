package repository

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by a Backend when a key is absent or expired
var ErrCacheMiss = errors.New("cache miss")

// Backend is a key/value store with per-key expiry. Implementations return
// ErrCacheMiss for absent keys and any other error for backend failures.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) (bool, error)
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// Dialer opens a Backend connection
type Dialer func(ctx context.Context) (Backend, error)

// Store is the fail-soft cache contract consumed by the snapshot and analysis
// pipelines. None of its methods return backend errors.
type Store interface {
	Get(ctx context.Context, key string, dest any) LookupStatus
	Set(ctx context.Context, key string, value any, ttl time.Duration) bool
	Exists(ctx context.Context, key string) bool
	Delete(ctx context.Context, key string) bool
	DeletePrefix(ctx context.Context, prefix string) (int64, bool)
	Ping(ctx context.Context) error
}

// Compile-time interface verification
var (
	_ Store   = (*Cache)(nil)
	_ Backend = (*MemoryBackend)(nil)
	_ Backend = (*RedisBackend)(nil)
	_ Backend = (*PostgresBackend)(nil)
)
