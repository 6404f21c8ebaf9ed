// Package postgres is the Postgres store backend. Entities live in one
// key/JSONB table so every entity kind shares the same atomic commit.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"musdScope/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	key        TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Backend is a store.Backend over a pgx pool.
type Backend struct {
	pool *pgxpool.Pool
}

// Open connects and makes sure the entities table exists.
func Open(ctx context.Context, dsn string) (*Backend, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Backend{pool: pool}, nil
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	row := b.pool.QueryRow(ctx, `SELECT data FROM entities WHERE key=$1`, key)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (b *Backend) Scan(ctx context.Context, prefix string, reverse bool, limit int) ([]store.KV, error) {
	order := "ASC"
	if reverse {
		order = "DESC"
	}
	var lim *int64
	if limit > 0 {
		l := int64(limit)
		lim = &l
	}
	rows, err := b.pool.Query(ctx, `
		SELECT key, data FROM entities
		WHERE starts_with(key, $1)
		ORDER BY key COLLATE "C" `+order+`
		LIMIT $2
	`, prefix, lim)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.KV
	for rows.Next() {
		var kv store.KV
		if err := rows.Scan(&kv.Key, &kv.Value); err != nil {
			return nil, err
		}
		out = append(out, kv)
	}
	return out, rows.Err()
}

// Commit upserts every write inside one transaction.
func (b *Backend) Commit(ctx context.Context, writes []store.Write) error {
	if len(writes) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, w := range writes {
			batch.Queue(`
				INSERT INTO entities (key, data, updated_at)
				VALUES ($1, $2::jsonb, now())
				ON CONFLICT (key) DO UPDATE
				SET data = EXCLUDED.data, updated_at = now()
			`, w.Key, string(w.Value))
		}

		br := tx.SendBatch(ctx, batch)
		for range writes {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return err
			}
		}
		return br.Close()
	})
}

func (b *Backend) Ping(ctx context.Context) error {
	return b.pool.Ping(ctx)
}

func (b *Backend) Close() error {
	if b.pool != nil {
		b.pool.Close()
	}
	return nil
}
