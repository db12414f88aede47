package users

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS pingbot_users (
	id TEXT PRIMARY KEY,
	added_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// PostgresRegistry persists subscribers in a Postgres table.
type PostgresRegistry struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn, checks the database answers and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRegistry, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}

	registry := &PostgresRegistry{pool: pool}

	if err = registry.Ready(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("users database not ready: %w", err)
	}

	if _, err = pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()

		return nil, fmt.Errorf("apply users schema: %w", err)
	}

	return registry, nil
}

// Ready pings the database.
func (r *PostgresRegistry) Ready(ctx context.Context) error {
	var one int

	if err := r.pool.QueryRow(ctx, "select 1").Scan(&one); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	return nil
}

// Add inserts id; ON CONFLICT DO NOTHING keeps it idempotent.
func (r *PostgresRegistry) Add(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `INSERT INTO pingbot_users (id) VALUES ($1) ON CONFLICT DO NOTHING`, id); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// Remove deletes id.
func (r *PostgresRegistry) Remove(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM pingbot_users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	return nil
}

// Clear deletes every id.
func (r *PostgresRegistry) Clear(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM pingbot_users`); err != nil {
		return fmt.Errorf("clear users: %w", err)
	}

	return nil
}

// List returns every id in insertion order.
func (r *PostgresRegistry) List(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM pingbot_users ORDER BY added_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect users: %w", err)
	}

	return ids, nil
}

// Close releases the pool.
func (r *PostgresRegistry) Close() error {
	r.pool.Close()

	return nil
}
