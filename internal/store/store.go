// Package store provides SQL persistence for pacer.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/fentz26/pacer/internal/apperr"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store provides access to the pacer database. Its embedded Queries run
// outside any transaction; use InTx for multi-statement writes.
type Store struct {
	*Queries
	db     *sqlx.DB
	driver string
}

// New opens (creating if needed) a SQLite database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_time_format=sqlite"
	return Open(DriverSQLite, dsn)
}

// Open connects with the given driver and DSN and runs migrations.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite only supports one writer at a time
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
	}

	s := &Store{Queries: &Queries{q: db}, db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Driver returns the database driver name.
func (s *Store) Driver() string { return s.driver }

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn inside a transaction. Any error from fn rolls everything back.
// fn must only use the Queries it is given.
func (s *Store) InTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.Storage("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(&Queries{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Storage("commit transaction", err)
	}
	return nil
}

// migrate runs idempotent schema migrations. The DDL is portable across
// SQLite and Postgres.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		client_name TEXT,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'backlog',
		value_tier TEXT NOT NULL DEFAULT '',
		drain_type TEXT NOT NULL DEFAULT '',
		effort_estimate INTEGER NOT NULL DEFAULT 0,
		points_final INTEGER,
		points_ai_guess INTEGER,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS task_events (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		from_status TEXT NOT NULL DEFAULT '',
		to_status TEXT NOT NULL DEFAULT '',
		actor TEXT NOT NULL DEFAULT '',
		metadata TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS graveyard (
		id TEXT PRIMARY KEY,
		original_task_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		client_name TEXT,
		value_tier TEXT NOT NULL DEFAULT '',
		drain_type TEXT NOT NULL DEFAULT '',
		effort_estimate INTEGER NOT NULL DEFAULT 0,
		points_final INTEGER,
		points_ai_guess INTEGER,
		age_days INTEGER NOT NULL DEFAULT 0,
		reason TEXT NOT NULL,
		archived_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS client_memory (
		name TEXT PRIMARY KEY,
		tier TEXT NOT NULL DEFAULT '',
		sentiment TEXT NOT NULL DEFAULT '',
		importance INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		avoidance_score INTEGER NOT NULL DEFAULT 0,
		stale_days INTEGER NOT NULL DEFAULT 0,
		last_touched_task TEXT,
		last_touched_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS daily_goals (
		date TEXT PRIMARY KEY,
		target_points INTEGER NOT NULL,
		earned_points INTEGER NOT NULL DEFAULT 0,
		task_count INTEGER NOT NULL DEFAULT 0,
		daily_debt INTEGER NOT NULL DEFAULT 0,
		weekly_debt INTEGER NOT NULL DEFAULT 0,
		pressure_level INTEGER NOT NULL DEFAULT 0,
		current_streak INTEGER NOT NULL DEFAULT 0,
		longest_streak INTEGER NOT NULL DEFAULT 0,
		last_goal_hit_date TEXT,
		last_urgency_hour INTEGER,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_completed_at ON tasks(completed_at);
	CREATE INDEX IF NOT EXISTS idx_task_events_task_id ON task_events(task_id);
	CREATE INDEX IF NOT EXISTS idx_task_events_kind ON task_events(kind);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Queries holds every statement the engine issues. It runs against either
// the pool or a transaction.
type Queries struct {
	q sqlx.ExtContext
}

func (q *Queries) get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, q.q, dest, q.q.Rebind(query), args...)
}

func (q *Queries) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, q.q, dest, q.q.Rebind(query), args...)
}

func (q *Queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.q.ExecContext(ctx, q.q.Rebind(query), args...)
}

// execOne runs a statement that must touch exactly one row.
func (q *Queries) execOne(ctx context.Context, op, what, key string, query string, args ...any) error {
	res, err := q.exec(ctx, query, args...)
	if err != nil {
		return apperr.Storage(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Storage(op, err)
	}
	if n == 0 {
		return apperr.NotFound(op, "%s %s not found", what, key)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
