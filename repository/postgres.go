package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stock-analyst/observability"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const cacheTable = "cache_entries"

// DBTX is an interface that both pgxpool.Pool and pgx.Tx satisfy.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresBackend stores cache entries in a PostgreSQL table, expiring them
// with an expires_at column checked on read
type PostgresBackend struct {
	pool *pgxpool.Pool
	db   DBTX
}

// NewPostgresBackend creates a backend over an existing executor
func NewPostgresBackend(db DBTX) *PostgresBackend {
	return &PostgresBackend{db: db}
}

// DialPostgres creates a connection pool, ensures the cache table exists and
// purges expired rows
func DialPostgres(ctx context.Context, connString string) (*PostgresBackend, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	p := &PostgresBackend{pool: pool, db: pool}
	if err := p.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if n, err := p.CleanExpired(ctx); err != nil {
		observability.Warn("failed to purge expired cache rows", "error", err)
	} else if n > 0 {
		observability.Info("purged expired cache rows", "count", n)
	}

	return p, nil
}

// PostgresDialer returns a Dialer for use with NewCache
func PostgresDialer(connString string) Dialer {
	return func(ctx context.Context) (Backend, error) {
		return DialPostgres(ctx, connString)
	}
}

// EnsureSchema creates the cache table if it does not exist
func (p *PostgresBackend) EnsureSchema(ctx context.Context) error {
	_, err := p.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS cache_entries (
			key         TEXT PRIMARY KEY,
			value       BYTEA NOT NULL,
			ttl_seconds BIGINT NOT NULL,
			written_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at  TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create cache table: %w", err)
	}

	_, err = p.db.Exec(ctx, `CREATE INDEX IF NOT EXISTS cache_entries_expires_at_idx ON cache_entries (expires_at)`)
	if err != nil {
		return fmt.Errorf("failed to create cache index: %w", err)
	}
	return nil
}

func (p *PostgresBackend) observe(op string, start time.Time, err error) {
	m := observability.GetMetrics()
	m.RecordDBQuery(op, cacheTable, time.Since(start))
	if err != nil {
		m.RecordDBError(op, cacheTable)
	}
}

func (p *PostgresBackend) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	var data []byte

	// Let the database handle expiry check to avoid timezone issues
	err := p.db.QueryRow(ctx, `
		SELECT value FROM cache_entries
		WHERE key = $1 AND expires_at > NOW()
	`, key).Scan(&data)

	if errors.Is(err, pgx.ErrNoRows) {
		p.observe("select", start, nil)
		return nil, ErrCacheMiss
	}
	p.observe("select", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}
	return data, nil
}

func (p *PostgresBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	seconds := int64(ttl / time.Second)

	_, err := p.db.Exec(ctx, `
		INSERT INTO cache_entries (key, value, ttl_seconds, written_at, expires_at)
		VALUES ($1, $2, $3, NOW(), NOW() + make_interval(secs => $4))
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value, ttl_seconds = EXCLUDED.ttl_seconds,
			written_at = EXCLUDED.written_at, expires_at = EXCLUDED.expires_at
	`, key, value, seconds, float64(seconds))

	p.observe("upsert", start, err)
	if err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

func (p *PostgresBackend) Exists(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	var ok bool

	err := p.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM cache_entries WHERE key = $1 AND expires_at > NOW())
	`, key).Scan(&ok)

	p.observe("exists", start, err)
	if err != nil {
		return false, fmt.Errorf("failed to check cache: %w", err)
	}
	return ok, nil
}

func (p *PostgresBackend) Delete(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	tag, err := p.db.Exec(ctx, `DELETE FROM cache_entries WHERE key = $1`, key)
	p.observe("delete", start, err)
	if err != nil {
		return false, fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *PostgresBackend) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	start := time.Now()
	tag, err := p.db.Exec(ctx, `DELETE FROM cache_entries WHERE starts_with(key, $1::text)`, prefix)
	p.observe("delete", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate cache prefix: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CleanExpired removes all expired cache entries
func (p *PostgresBackend) CleanExpired(ctx context.Context) (int64, error) {
	start := time.Now()
	tag, err := p.db.Exec(ctx, `DELETE FROM cache_entries WHERE expires_at < NOW()`)
	p.observe("delete", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to clean expired cache: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *PostgresBackend) Ping(ctx context.Context) error {
	if p.pool != nil {
		return p.pool.Ping(ctx)
	}
	var one int
	return p.db.QueryRow(ctx, `SELECT 1`).Scan(&one)
}

func (p *PostgresBackend) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
