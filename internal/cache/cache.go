// Package cache persists the most recently fetched task list in an embedded
// SQLite database so `taskboard tasks --offline` works without a server.
// The cache is a convenience copy: the API is always the source of truth,
// and every successful fetch replaces the cached set wholesale.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".

	"github.com/taskboard/taskboard-go/internal/api"
	"github.com/taskboard/taskboard-go/internal/session"
)

// Store is the offline task cache. Use ":memory:" as the path in tests.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the cache database at dbPath and applies
// migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cache: opening %s: %w", dbPath, err)
	}

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: enabling WAL: %w", err)
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReplaceAll swaps the cached task set for the given one in a single
// transaction, stamping each row with now as its fetch time.
func (s *Store) ReplaceAll(ctx context.Context, tasks []*api.Task, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache: beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks"); err != nil {
		return fmt.Errorf("cache: clearing tasks: %w", err)
	}

	const insert = `INSERT INTO tasks
		(id, title, description, status, priority, assigned_to, created_by, created_at, updated_at, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for _, t := range tasks {
		_, err := tx.ExecContext(ctx, insert,
			t.ID, t.Title, t.Description, t.Status, t.Priority,
			profileName(t.AssignedTo), profileName(t.CreatedBy),
			t.CreatedAt.UTC().Format(time.RFC3339),
			t.UpdatedAt.UTC().Format(time.RFC3339),
			now.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("cache: inserting task %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cache: committing: %w", err)
	}

	s.logger.Debug("task cache replaced", slog.Int("count", len(tasks)))

	return nil
}

// Tasks returns the cached task list and when it was fetched. An empty
// cache returns no tasks and a zero time.
func (s *Store) Tasks(ctx context.Context) ([]*api.Task, time.Time, error) {
	const query = `SELECT id, title, description, status, priority,
		assigned_to, created_by, created_at, updated_at, fetched_at
		FROM tasks ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("cache: querying tasks: %w", err)
	}
	defer rows.Close()

	var (
		tasks     []*api.Task
		fetchedAt time.Time
	)

	for rows.Next() {
		var (
			t                    api.Task
			assigned, created    sql.NullString
			createdAt, updatedAt string
			fetched              string
		)

		err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority,
			&assigned, &created, &createdAt, &updatedAt, &fetched)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("cache: scanning task: %w", err)
		}

		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

		if assigned.Valid && assigned.String != "" {
			t.AssignedTo = &session.Profile{DisplayName: assigned.String}
		}

		if created.Valid && created.String != "" {
			t.CreatedBy = &session.Profile{DisplayName: created.String}
		}

		if ts, parseErr := time.Parse(time.RFC3339, fetched); parseErr == nil && ts.After(fetchedAt) {
			fetchedAt = ts
		}

		tasks = append(tasks, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("cache: reading tasks: %w", err)
	}

	return tasks, fetchedAt, nil
}

// Clear drops all cached tasks. Called on logout so a different account
// never sees the previous account's tasks.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM tasks"); err != nil {
		return fmt.Errorf("cache: clearing: %w", err)
	}

	return nil
}

// profileName flattens an optional profile to its display name for storage.
// Only the name is cached; the full profile comes from the API.
func profileName(p *session.Profile) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}

	return sql.NullString{String: p.DisplayName, Valid: true}
}
