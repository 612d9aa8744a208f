package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/spigell/hr-screener/internal/decision"
)

var migrations = []string{
	`CREATE TABLE results (
		key        TEXT PRIMARY KEY,
		decision   TEXT NOT NULL,
		score      INTEGER NOT NULL,
		summary    TEXT NOT NULL,
		email      TEXT NOT NULL,
		file_path  TEXT NOT NULL,
		similarity REAL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX results_created_at ON results (created_at)`,
}

// SQLite is a Store persisted in a sqlite database file.
type SQLite struct {
	db  *sql.DB
	max int
}

func OpenSQLite(ctx context.Context, path string, maxEntries int) (*SQLite, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}

	// sqlite wants a single writer
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db, max: maxEntries}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, key string) (*Entry, bool, error) {
	var (
		entry      Entry
		d          string
		similarity sql.NullFloat64
		created    int64
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT decision, score, summary, email, file_path, similarity, created_at FROM results WHERE key = ?`, key,
	).Scan(&d, &entry.Score, &entry.Summary, &entry.Email, &entry.FilePath, &similarity, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached result: %w", err)
	}

	entry.Decision, err = decision.Parse(d)
	if err != nil {
		return nil, false, fmt.Errorf("get cached result: %w", err)
	}
	if similarity.Valid {
		v := similarity.Float64
		entry.Similarity = &v
	}
	entry.CreatedAt = time.Unix(0, created).UTC()

	return &entry, true, nil
}

// Put upserts entry and trims the table to the configured size. Replacing a
// key keeps its original created_at.
func (s *SQLite) Put(ctx context.Context, key string, entry *Entry) error {
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	var similarity sql.NullFloat64
	if entry.Similarity != nil {
		similarity = sql.NullFloat64{Float64: *entry.Similarity, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put cached result: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO results (key, decision, score, summary, email, file_path, similarity, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			decision = excluded.decision,
			score = excluded.score,
			summary = excluded.summary,
			email = excluded.email,
			file_path = excluded.file_path,
			similarity = excluded.similarity`,
		key, string(entry.Decision), entry.Score, entry.Summary, entry.Email, entry.FilePath, similarity, created.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("put cached result: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM results WHERE key NOT IN (
			SELECT key FROM results ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, s.max)
	if err != nil {
		return fmt.Errorf("trim cached results: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put cached result: %w", err)
	}
	return nil
}

func (s *SQLite) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cached results: %w", err)
	}
	return n, nil
}
