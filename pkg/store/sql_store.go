package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"  // Postgres Driver
	_ "modernc.org/sqlite" // SQLite Driver
)

const defaultSQLPageSize = 500

// Dialect captures the differences between the supported SQL engines.
type Dialect struct {
	Name     string
	BlobType string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
}

var (
	// SQLite uses ? placeholders and BLOB content.
	SQLite = Dialect{Name: "sqlite", BlobType: "BLOB", Placeholder: func(int) string { return "?" }}
	// Postgres uses $n placeholders and BYTEA content.
	Postgres = Dialect{Name: "postgres", BlobType: "BYTEA", Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) }}
)

// DialectFor returns the dialect registered for a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql":
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported sql driver: %s", driver)
	}
}

// SQLStore implements Store on a single ig_objects table.
type SQLStore struct {
	db       *sql.DB
	dialect  Dialect
	pageSize int
}

// SQLStoreConfig holds configuration for OpenSQLStore.
type SQLStoreConfig struct {
	Driver   string
	DSN      string
	PageSize int
}

// OpenSQLStore opens the database and ensures the schema exists.
func OpenSQLStore(ctx context.Context, cfg SQLStoreConfig) (*SQLStore, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sql dsn is required")
	}
	db, err := sql.Open(dialect.Name, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect.Name, err)
	}
	s, err := NewSQLStore(ctx, db, dialect, cfg.PageSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database and runs the migration.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect, pageSize int) (*SQLStore, error) {
	if pageSize <= 0 {
		pageSize = defaultSQLPageSize
	}
	s := &SQLStore{db: db, dialect: dialect, pageSize: pageSize}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate ig_objects: %w", err)
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	query := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS ig_objects (
        object_key TEXT PRIMARY KEY,
        content %s NOT NULL,
        updated_at TIMESTAMP NOT NULL
    )`, s.dialect.BlobType)
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// ListKeys pages through the table in key order.
func (s *SQLStore) ListKeys(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT object_key FROM ig_objects WHERE object_key > %s ORDER BY object_key LIMIT %s`,
		s.dialect.Placeholder(1), s.dialect.Placeholder(2))

	var (
		keys  []string
		after string
	)
	for {
		page, err := s.listPage(ctx, query, after)
		if err != nil {
			return nil, err
		}
		keys = append(keys, page...)
		if len(page) < s.pageSize {
			return keys, nil
		}
		after = page[len(page)-1]
	}
}

func (s *SQLStore) listPage(ctx context.Context, query, after string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, after, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("sql list failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var page []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("sql list scan failed: %w", err)
		}
		page = append(page, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sql list failed: %w", err)
	}
	return page, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	query := fmt.Sprintf(`SELECT content FROM ig_objects WHERE object_key = %s`, s.dialect.Placeholder(1))

	var data []byte
	if err := s.db.QueryRowContext(ctx, query, key).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("sql get failed for %s: %w", key, err)
	}
	return data, nil
}

func (s *SQLStore) Put(ctx context.Context, key string, data []byte) error {
	query := fmt.Sprintf(`INSERT INTO ig_objects (object_key, content, updated_at) VALUES (%s, %s, %s)
        ON CONFLICT (object_key) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3))

	if _, err := s.db.ExecContext(ctx, query, key, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("sql put failed for %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM ig_objects WHERE object_key = %s`, s.dialect.Placeholder(1))
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("sql delete failed for %s: %w", key, err)
	}
	return nil
}

// Close closes the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
