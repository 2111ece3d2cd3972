package authstate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// PostgresBackend stores entries in a single key/value table.
type PostgresBackend struct {
	pool  *pgxpool.Pool
	table string
}

func NewPostgresBackend(ctx context.Context, dsn string, table string) (*PostgresBackend, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, errors.New("auth state table name is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open auth state pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping auth state database: %w", err)
	}

	b := &PostgresBackend{pool: pool, table: pq.QuoteIdentifier(table)}
	if err := b.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

func (b *PostgresBackend) migrate(ctx context.Context) error {
	_, err := b.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+b.table+` (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`)
	if err != nil {
		return fmt.Errorf("create auth state table: %w", err)
	}
	return nil
}

func (b *PostgresBackend) Read(ctx context.Context, keys []string) (map[string][]byte, error) {
	rows, err := b.pool.Query(ctx, `SELECT key, value FROM `+b.table+` WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]byte, len(keys))
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[key] = []byte(value)
	}
	return out, rows.Err()
}

// Write upserts and deletes in one transaction. Keys are applied in sorted
// order so overlapping writers lock rows in the same sequence.
func (b *PostgresBackend) Write(ctx context.Context, entries map[string][]byte) error {
	batch := &pgx.Batch{}
	for _, key := range sortedKeys(entries) {
		data := entries[key]
		if data == nil {
			batch.Queue(`DELETE FROM `+b.table+` WHERE key = $1`, key)
			continue
		}
		batch.Queue(`INSERT INTO `+b.table+` (key, value, updated_at) VALUES ($1, $2, NOW())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`, key, string(data))
	}

	return pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return err
			}
		}
		return results.Close()
	})
}

func (b *PostgresBackend) Clear(ctx context.Context) error {
	_, err := b.pool.Exec(ctx, `DELETE FROM `+b.table)
	return err
}

func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}
