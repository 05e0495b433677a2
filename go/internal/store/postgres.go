package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/launchpad/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv_strings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS kv_hashes (
	key   TEXT NOT NULL,
	field TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (key, field)
);
CREATE TABLE IF NOT EXISTS kv_lists (
	key   TEXT   NOT NULL,
	idx   BIGINT NOT NULL,
	value TEXT   NOT NULL,
	PRIMARY KEY (key, idx)
);`

// dbtx is satisfied by both *sql.DB and *sql.Tx
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type pgQueries struct {
	db dbtx
}

func newPGQueries(tx *sql.Tx) *pgQueries {
	return &pgQueries{db: tx}
}

// PostgresBackend emulates the Redis data model on three tables. List appends
// take a transaction-scoped advisory lock on the list key so that concurrent
// appenders from any process get distinct, gapless positions.
type PostgresBackend struct {
	db *sql.DB
	q  *pgQueries
}

var _ Backend = (*PostgresBackend)(nil)

// NewPostgresBackend opens a lib/pq connection and pings it
func NewPostgresBackend(ctx context.Context, dsn string) (*PostgresBackend, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewPostgresBackendFromDB(db), nil
}

// NewPostgresBackendFromDB wraps an open database handle
func NewPostgresBackendFromDB(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{
		db: db,
		q:  &pgQueries{db: db},
	}
}

// Migrate creates the storage tables if they do not exist
func (p *PostgresBackend) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate store schema: %w", err)
	}
	log.Info().Msg("store schema migrated")
	return nil
}

// DB exposes the handle for components sharing the connection, such as the notify relay
func (p *PostgresBackend) DB() *sql.DB {
	return p.db
}

func (p *PostgresBackend) GetString(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := p.q.db.QueryRowContext(ctx, `SELECT value FROM kv_strings WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get string %s: %w", key, err)
	}
	return v, true, nil
}

func (p *PostgresBackend) SetString(ctx context.Context, key, value string) error {
	_, err := p.q.db.ExecContext(ctx, `
		INSERT INTO kv_strings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set string %s: %w", key, err)
	}
	return nil
}

// HashGetAll aggregates the hash into one JSON object; NULL means no fields
func (p *PostgresBackend) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	var agg pqtype.NullRawMessage
	err := p.q.db.QueryRowContext(ctx,
		`SELECT jsonb_object_agg(field, value) FROM kv_hashes WHERE key = $1`, key).Scan(&agg)
	if err != nil {
		return nil, fmt.Errorf("failed to get hash %s: %w", key, err)
	}

	out := make(map[string]string)
	if !agg.Valid {
		return out, nil
	}
	if err := json.Unmarshal(agg.RawMessage, &out); err != nil {
		return nil, fmt.Errorf("failed to decode hash %s: %w", key, err)
	}
	return out, nil
}

func (p *PostgresBackend) HashGet(ctx context.Context, key, field string) (string, bool, error) {
	var v string
	err := p.q.db.QueryRowContext(ctx,
		`SELECT value FROM kv_hashes WHERE key = $1 AND field = $2`, key, field).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get hash field %s.%s: %w", key, field, err)
	}
	return v, true, nil
}

func (p *PostgresBackend) HashSet(ctx context.Context, key string, fields map[string]string) error {
	return sqlutil.Run(ctx, p.db, newPGQueries, func(q *pgQueries) error {
		for field, value := range fields {
			_, err := q.db.ExecContext(ctx, `
				INSERT INTO kv_hashes (key, field, value) VALUES ($1, $2, $3)
				ON CONFLICT (key, field) DO UPDATE SET value = EXCLUDED.value`, key, field, value)
			if err != nil {
				return fmt.Errorf("failed to set hash field %s.%s: %w", key, field, err)
			}
		}
		return nil
	})
}

func (p *PostgresBackend) ListAppend(ctx context.Context, key, value string) (int64, error) {
	var idx int64
	err := sqlutil.Run(ctx, p.db, newPGQueries, func(q *pgQueries) error {
		if _, err := q.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return fmt.Errorf("failed to lock list %s: %w", key, err)
		}
		return q.db.QueryRowContext(ctx, `
			INSERT INTO kv_lists (key, idx, value)
			SELECT $1, COALESCE(MAX(idx) + 1, 0), $2 FROM kv_lists WHERE key = $1
			RETURNING idx`, key, value).Scan(&idx)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to append to list %s: %w", key, err)
	}
	return idx + 1, nil
}

func (p *PostgresBackend) ListRange(ctx context.Context, key string) ([]string, error) {
	rows, err := p.q.db.QueryContext(ctx, `SELECT value FROM kv_lists WHERE key = $1 ORDER BY idx`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read list %s: %w", key, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan list %s: %w", key, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (p *PostgresBackend) ListIndex(ctx context.Context, key string, index int64) (string, bool, error) {
	var v string
	err := p.q.db.QueryRowContext(ctx,
		`SELECT value FROM kv_lists WHERE key = $1 AND idx = $2`, key, index).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to index list %s[%d]: %w", key, index, err)
	}
	return v, true, nil
}

func (p *PostgresBackend) Close() error {
	return p.db.Close()
}
