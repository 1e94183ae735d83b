package tlog

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder syntax and column types.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLStore persists log entries in a tlog_entries table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// OpenSQL opens a database with the named driver ("sqlite" or "postgres")
// and prepares the schema.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("tlog: open %s: %w", driver, err)
	}
	if dialect == DialectSQLite {
		// An in-memory database exists per connection.
		db.SetMaxOpenConns(1)
	}
	s, err := NewSQLStore(ctx, db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func dialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite":
		return DialectSQLite, nil
	case "postgres":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("tlog: unsupported driver %q", driver)
	}
}

// NewSQLStore wraps an open database and runs the migration.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: dialect, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("tlog: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	indexType := "INTEGER"
	if s.dialect == DialectPostgres {
		indexType = "BIGINT"
	}
	query := `
    CREATE TABLE IF NOT EXISTS tlog_entries (
        entry_id TEXT PRIMARY KEY,
        leaf_index ` + indexType + ` NOT NULL UNIQUE,
        payload_hash TEXT NOT NULL,
        created_at TEXT NOT NULL
    );`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Append(ctx context.Context, payloadHash string) (Entry, error) {
	if payloadHash == "" {
		return Entry{}, ErrEmptyPayloadHash
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("tlog: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tlog_entries`).Scan(&n); err != nil {
		return Entry{}, fmt.Errorf("tlog: count entries: %w", err)
	}

	e := Entry{
		EntryID:     uuid.New().String(),
		LeafIndex:   n,
		PayloadHash: payloadHash,
		CreatedAt:   s.now().UTC(),
	}
	query := s.rebind(`INSERT INTO tlog_entries (entry_id, leaf_index, payload_hash, created_at) VALUES (?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, query, e.EntryID, e.LeafIndex, e.PayloadHash, e.CreatedAt.Format(time.RFC3339Nano)); err != nil {
		return Entry{}, fmt.Errorf("tlog: insert entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("tlog: commit: %w", err)
	}
	return e, nil
}

func (s *SQLStore) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT entry_id, leaf_index, payload_hash, created_at
        FROM tlog_entries
        ORDER BY leaf_index ASC
    `)
	if err != nil {
		return nil, fmt.Errorf("tlog: query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			createdAt string
		)
		if err := rows.Scan(&e.EntryID, &e.LeafIndex, &e.PayloadHash, &createdAt); err != nil {
			return nil, fmt.Errorf("tlog: scan entry: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *SQLStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tlog_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("tlog: count entries: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
