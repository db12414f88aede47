// Package users implements the subscriber registry.
//
// A Registry is a set of opaque user ids. Every backend enforces set
// semantics: adding an id twice keeps a single entry. Backends:
//   - MemoryRegistry: process-local, used by tests and throwaway runs;
//   - FileRegistry: a JSON file written via protojson;
//   - SQLiteRegistry: a single-table SQLite database (modernc.org/sqlite);
//   - PostgresRegistry: a single table in Postgres (pgx).
package users
