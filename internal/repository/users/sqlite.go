package users

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Registers the "sqlite" database/sql driver.
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY
);
`

// SQLiteRegistry persists subscribers in a SQLite database file.
type SQLiteRegistry struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRegistry, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir users dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open users db: %w", err)
	}

	// One writer at a time; SQLite would answer SQLITE_BUSY otherwise.
	db.SetMaxOpenConns(1)

	if _, err = db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("apply users schema: %w", err)
	}

	return &SQLiteRegistry{db: db}, nil
}

// Add inserts id unless it is already present.
func (r *SQLiteRegistry) Add(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO users (id) VALUES (?)`, id); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// Remove deletes id.
func (r *SQLiteRegistry) Remove(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	return nil
}

// Clear deletes every id.
func (r *SQLiteRegistry) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return fmt.Errorf("clear users: %w", err)
	}

	return nil
}

// List returns every id in insertion order.
func (r *SQLiteRegistry) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}

		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return ids, nil
}

// Close closes the database.
func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}
