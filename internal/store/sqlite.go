package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	sqliteSchemaVersion  = 1
	sqliteSchemaChecksum = "kickai-v1-documents"
)

// SQLite is the embedded document store used for local development: one
// documents table keyed by (collection, id) with a JSON payload column.
type SQLite struct {
	db *sql.DB
}

// DefaultSQLitePath places the database under the user's home directory.
func DefaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".kickai", "kickai.db")
}

// OpenSQLite opens (and migrates) the embedded store.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = DefaultSQLitePath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite3: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLite{db: db}
	if err := s.configurePragmas(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) configurePragmas(ctx context.Context) error {
	pragma := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
	}
	for _, q := range pragma {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("set pragma %q: %w", q, err)
		}
	}
	return nil
}

func (s *SQLite) initSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var maxVersion int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations;`).Scan(&maxVersion); err != nil {
		return fmt.Errorf("read migration max version: %w", err)
	}
	if maxVersion > sqliteSchemaVersion {
		return fmt.Errorf("db schema version %d is newer than supported %d", maxVersion, sqliteSchemaVersion)
	}
	if maxVersion == sqliteSchemaVersion {
		var checksum string
		if err := tx.QueryRowContext(ctx, `SELECT checksum FROM schema_migrations WHERE version = ?;`, sqliteSchemaVersion).Scan(&checksum); err != nil {
			return fmt.Errorf("read schema checksum: %w", err)
		}
		if checksum != sqliteSchemaChecksum {
			return fmt.Errorf("schema checksum mismatch for version %d: got %q want %q", sqliteSchemaVersion, checksum, sqliteSchemaChecksum)
		}
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		);
		CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
	`); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, checksum) VALUES (?, ?);`,
		sqliteSchemaVersion, sqliteSchemaChecksum); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration tx: %w", err)
	}
	return nil
}

// retryOnBusy retries f when SQLite returns BUSY or LOCKED, using exponential
// backoff with bounded jitter on top of the driver's busy_timeout.
func retryOnBusy(ctx context.Context, maxRetries int, f func() error) error {
	const baseDelay = 50 * time.Millisecond
	const maxDelay = 500 * time.Millisecond

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = f()
		if err == nil {
			return nil
		}
		if !isSQLiteBusy(err) {
			return err
		}
		if attempt == maxRetries {
			return err
		}
		delay := baseDelay << uint(attempt)
		if delay > maxDelay {
			delay = maxDelay
		}
		jitter := time.Duration(rand.IntN(int(delay / 2)))
		delay = delay - delay/4 + jitter

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "(5)") || // SQLITE_BUSY
		strings.Contains(msg, "(6)") // SQLITE_LOCKED
}

func (s *SQLite) Create(ctx context.Context, coll string, data map[string]any, id string) (string, error) {
	if id == "" {
		id = newDocumentID()
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	err = retryOnBusy(ctx, 5, func() error {
		_, execErr := s.db.ExecContext(ctx,
			`INSERT INTO documents (collection, id, data) VALUES (?, ?, ?);`, coll, id, string(payload))
		return execErr
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return "", fmt.Errorf("create %s/%s: %w", coll, id, ErrConstraint)
		}
		return "", fmt.Errorf("create %s/%s: %w: %v", coll, id, ErrUnavailable, err)
	}
	return id, nil
}

func (s *SQLite) Get(ctx context.Context, coll, id string) (map[string]any, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?;`, coll, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s/%s: %w", coll, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w: %v", coll, id, ErrUnavailable, err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("unmarshal %s/%s: %w", coll, id, err)
	}
	return doc, nil
}

func (s *SQLite) Update(ctx context.Context, coll, id string, patch map[string]any) error {
	return retryOnBusy(ctx, 5, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin update tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var raw string
		err = tx.QueryRowContext(ctx,
			`SELECT data FROM documents WHERE collection = ? AND id = ?;`, coll, id).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("update %s/%s: %w", coll, id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("update %s/%s: %w: %v", coll, id, ErrUnavailable, err)
		}

		var doc map[string]any
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return fmt.Errorf("unmarshal %s/%s: %w", coll, id, err)
		}
		// Merge: unknown keys survive, patched keys win.
		for k, v := range patch {
			doc[k] = v
		}
		payload, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal %s/%s: %w", coll, id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE documents SET data = ? WHERE collection = ? AND id = ?;`, string(payload), coll, id); err != nil {
			return fmt.Errorf("update %s/%s: %w: %v", coll, id, ErrUnavailable, err)
		}
		return tx.Commit()
	})
}

func (s *SQLite) Delete(ctx context.Context, coll, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?;`, coll, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w: %v", coll, id, ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", coll, id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s/%s: %w", coll, id, ErrNotFound)
	}
	return nil
}

func (s *SQLite) Query(ctx context.Context, coll string, filters []Filter, opts ...QueryOption) ([]Document, error) {
	var cfg queryConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE collection = ? ORDER BY id;`, coll)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w: %v", coll, ErrUnavailable, err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", coll, err)
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("unmarshal %s/%s: %w", coll, id, err)
		}
		if matchAll(doc, filters) {
			out = append(out, Document{ID: id, Data: doc})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w: %v", coll, ErrUnavailable, err)
	}

	if cfg.hasOrder {
		sortDocs(out, cfg.orderBy, cfg.desc)
	}
	if cfg.hasLimit && len(out) > cfg.limit {
		out = out[:cfg.limit]
	}
	return out, nil
}

func (s *SQLite) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT collection FROM documents ORDER BY collection;`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
