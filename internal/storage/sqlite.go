package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema (pending_sales table + created_at index)
const currentSchemaVersion = 1

// SQLite is the indexed, transactional storage engine.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite creates or opens the pending-sale database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - FULL synchronous mode: an accepted sale must survive power loss, not
//     just a process crash, so Append may not return before the commit is
//     on disk
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version >= currentSchemaVersion {
		return nil
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// Append inserts one record and assigns its Seq.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - re-appending an already
// stored ID leaves the original record in place and fills in its Seq.
func (s *SQLite) Append(ctx context.Context, rec *Record) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_sales (id, created_at, status, body)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.Status,
		string(rec.Body),
	)
	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("append record: rows affected: %w", err)
	}

	if rows > 0 {
		seq, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("append record: last insert id: %w", err)
		}
		rec.Seq = seq
		return nil
	}

	// Conflict - record already stored, fetch its existing seq.
	err = s.db.QueryRowContext(ctx,
		"SELECT seq FROM pending_sales WHERE id = ?", rec.ID,
	).Scan(&rec.Seq)
	if err != nil {
		return fmt.Errorf("append record: select existing: %w", err)
	}
	return nil
}

// ReadAll returns all records in insertion order.
func (s *SQLite) ReadAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, created_at, status, body
		FROM pending_sales
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec       Record
			createdAt string
			body      string
		)
		if err := rows.Scan(&rec.Seq, &rec.ID, &createdAt, &rec.Status, &body); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at for %s: %w", rec.ID, err)
		}
		rec.Body = []byte(body)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// UpdateStatus sets the status of one record in place.
// Updating a non-existent ID is a no-op.
func (s *SQLite) UpdateStatus(ctx context.Context, id, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE pending_sales SET status = ? WHERE id = ?", status, id,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// Remove deletes exactly one record. Removing a non-existent ID is a no-op.
func (s *SQLite) Remove(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM pending_sales WHERE id = ?", id,
	)
	if err != nil {
		return fmt.Errorf("remove record: %w", err)
	}
	return nil
}

// Count returns the number of resident records.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pending_sales").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Capability identifies this engine as Indexed.
func (s *SQLite) Capability() Capability {
	return Indexed
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
