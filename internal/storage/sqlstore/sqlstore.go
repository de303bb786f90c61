// Package sqlstore persists tracker documents in a SQLite database. Each
// group occupies one row holding the same YAML document the file store
// writes, so the two backends are interchangeable.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/weekflow/internal/tasktype"
	"github.com/kingrea/weekflow/internal/tracker"
)

const schema = `
CREATE TABLE IF NOT EXISTS trackers (
	group_key TEXT PRIMARY KEY,
	document TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS seeds (
	group_key TEXT PRIMARY KEY,
	names TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// Store implements tracker.Store on SQLite.
type Store struct {
	db       *sql.DB
	registry *tasktype.Registry
	clock    func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithRegistry sets the registry used to bootstrap trackers from seeds.
func WithRegistry(reg *tasktype.Registry) Option {
	return func(s *Store) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// Open creates or opens the database at path and applies the schema.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlstore: database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlstore: create db directory: %w", err)
	}
	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open sqlite3: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, registry: tasktype.Default(), clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	ctx := context.Background()
	for _, q := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA synchronous=FULL;"} {
		if _, err := db.ExecContext(ctx, q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlstore: set pragma %q: %w", q, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: apply schema: %w", err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Exists reports whether a tracker row is stored for group.
func (s *Store) Exists(group string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(context.Background(),
		`SELECT COUNT(1) FROM trackers WHERE group_key = ?;`, group).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlstore: exists %s: %w", group, err)
	}
	return n > 0, nil
}

// Load returns the stored tracker, bootstrapping it from a seed row when no
// tracker has been written yet.
func (s *Store) Load(group string) (*tracker.GroupTracker, error) {
	ctx := context.Background()
	var document string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM trackers WHERE group_key = ?;`, group).Scan(&document)
	switch {
	case err == nil:
		var doc tracker.GroupTracker
		if err := yaml.Unmarshal([]byte(document), &doc); err != nil {
			return nil, fmt.Errorf("sqlstore: decode %s: %w", group, err)
		}
		return tracker.Normalize(&doc), nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("sqlstore: load %s: %w", group, err)
	}

	names, ok, err := s.seed(ctx, group)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", tracker.ErrGroupNotFound, group)
	}
	doc := tracker.Seed(s.registry, group, names, s.clock())
	if err := s.Save(group, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Save upserts the whole document inside a transaction.
func (s *Store) Save(group string, doc *tracker.GroupTracker) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("sqlstore: encode %s: %w", group, err)
	}
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO trackers (group_key, document, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(group_key) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at;
	`, group, string(data), s.clock().UTC()); err != nil {
		return fmt.Errorf("sqlstore: save %s: %w", group, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit %s: %w", group, err)
	}
	return nil
}

// Groups lists groups with a tracker row or a seed row.
func (s *Store) Groups() ([]string, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT group_key FROM trackers UNION SELECT group_key FROM seeds;`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list groups: %w", err)
	}
	defer rows.Close()
	var groups []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("sqlstore: scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: list groups: %w", err)
	}
	sort.Strings(groups)
	return groups, nil
}

// Seed records a bootstrap item list for group. It has no effect on a group
// whose tracker already exists.
func (s *Store) Seed(group string, names []string) error {
	data, err := yaml.Marshal(names)
	if err != nil {
		return fmt.Errorf("sqlstore: encode seed %s: %w", group, err)
	}
	_, err = s.db.ExecContext(context.Background(), `
		INSERT INTO seeds (group_key, names, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(group_key) DO UPDATE SET names = excluded.names, updated_at = excluded.updated_at;
	`, group, string(data), s.clock().UTC())
	if err != nil {
		return fmt.Errorf("sqlstore: seed %s: %w", group, err)
	}
	return nil
}

func (s *Store) seed(ctx context.Context, group string) ([]string, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT names FROM seeds WHERE group_key = ?;`, group).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlstore: read seed %s: %w", group, err)
	}
	var names []string
	if err := yaml.Unmarshal([]byte(raw), &names); err != nil {
		return nil, false, fmt.Errorf("sqlstore: decode seed %s: %w", group, err)
	}
	return names, true, nil
}
