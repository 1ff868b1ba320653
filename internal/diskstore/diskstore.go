// Package diskstore is a concrete detect.DBHandle backed by
// modernc.org/sqlite. The real external database is an IndexedDB-family
// on-disk format whose decoder is explicitly out of scope (spec.md §1);
// this package gives that interface a runnable body, storing one table per
// object store with an id column and a JSON blob column, in the shape the
// real decoder would hand records to the rest of the system.
package diskstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/jra3/linear-reader/internal/record"
)

// Store opens or creates a SQLite file acting as the on-disk cache. Every
// object store is its own table, named store_<name>, so arbitrary store
// identifiers (including ones starting with "_") can be represented without
// colliding with SQL keywords.
type Store struct {
	db *sql.DB
}

// Open opens dbPath, creating the parent directory and a metadata table if
// needed. Existing store tables are left as-is; new ones are created by
// PutRecords on first use.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	escapedPath := strings.ReplaceAll(dbPath, " ", "%20")
	connStr := "file:" + escapedPath + "?_time_format=sqlite"
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS store_index (name TEXT PRIMARY KEY)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize store index: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

func tableName(storeName string) string {
	return "store_" + strings.ReplaceAll(storeName, "-", "_")
}

// PutRecords overwrites storeName's contents with records, creating the
// backing table if it does not already exist. Intended for seeding test
// fixtures and for any ingestion path that mirrors the external format.
func (s *Store) PutRecords(ctx context.Context, storeName string, records []record.Map) error {
	table := tableName(storeName)
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %q (id TEXT PRIMARY KEY, data TEXT NOT NULL)`, table)); err != nil {
		return fmt.Errorf("create store table %s: %w", storeName, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO store_index(name) VALUES (?)`, storeName); err != nil {
		return fmt.Errorf("index store %s: %w", storeName, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q`, table)); err != nil {
		return fmt.Errorf("clear store table %s: %w", storeName, err)
	}
	for _, rec := range records {
		id := rec.String("id")
		blob, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record in store %s: %w", storeName, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`INSERT INTO %q (id, data) VALUES (?, ?)`, table), id, string(blob)); err != nil {
			return fmt.Errorf("insert record in store %s: %w", storeName, err)
		}
	}
	return tx.Commit()
}

// ObjectStoreNames implements detect.DBHandle.
func (s *Store) ObjectStoreNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM store_index ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list object stores: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan store name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// SampleRecords implements detect.DBHandle, iterating up to limit records
// (or all of them, when limit <= 0) from storeName in insertion order.
func (s *Store) SampleRecords(ctx context.Context, storeName string, limit int) iter.Seq2[record.Map, error] {
	return func(yield func(record.Map, error) bool) {
		table := tableName(storeName)
		query := fmt.Sprintf(`SELECT data FROM %q ORDER BY rowid`, table)
		if limit > 0 {
			query += fmt.Sprintf(" LIMIT %d", limit)
		}
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			yield(nil, fmt.Errorf("sample store %s: %w", storeName, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var blob string
			if err := rows.Scan(&blob); err != nil {
				if !yield(nil, fmt.Errorf("scan record in store %s: %w", storeName, err)) {
					return
				}
				continue
			}
			rec, err := record.FromJSON([]byte(blob))
			if !yield(rec, err) {
				return
			}
		}
	}
}
