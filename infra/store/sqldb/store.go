// Package sqldb implements store.Store on database/sql. SQLite (modernc) and
// PostgreSQL (lib/pq) share one schema; queries are written with '?' and
// rebound for drivers that number their placeholders.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/kilianp07/rescue/core/store"
)

// Dialect captures the driver differences the store cares about.
type Dialect struct {
	Driver string
	// Numbered placeholders ($1, $2...) instead of '?'.
	Numbered bool
}

var (
	SQLite   = Dialect{Driver: "sqlite"}
	Postgres = Dialect{Driver: "postgres", Numbered: true}
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS teams (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        capacity INTEGER NOT NULL,
        status TEXT NOT NULL,
        location TEXT NOT NULL DEFAULT '',
        equipment TEXT NOT NULL DEFAULT '',
        current_request TEXT NOT NULL DEFAULT '',
        created_at BIGINT NOT NULL,
        updated_at BIGINT NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS team_capabilities (
        team_id TEXT NOT NULL,
        capability TEXT NOT NULL,
        PRIMARY KEY(team_id, capability)
    )`,
	`CREATE INDEX IF NOT EXISTS idx_team_capabilities_cap ON team_capabilities(capability)`,
	`CREATE TABLE IF NOT EXISTS requests (
        id TEXT PRIMARY KEY,
        capability TEXT NOT NULL,
        priority TEXT NOT NULL,
        status TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        location TEXT NOT NULL DEFAULT '',
        latitude DOUBLE PRECISION,
        longitude DOUBLE PRECISION,
        victim_name TEXT NOT NULL DEFAULT '',
        victim_phone TEXT NOT NULL DEFAULT '',
        created_by TEXT NOT NULL DEFAULT '',
        resolution_notes TEXT NOT NULL DEFAULT '',
        assigned_team TEXT NOT NULL DEFAULT '',
        created_at BIGINT NOT NULL,
        updated_at BIGINT NOT NULL,
        assigned_at BIGINT,
        responded_at BIGINT,
        completed_at BIGINT
    )`,
	`CREATE INDEX IF NOT EXISTS idx_requests_status ON requests(status)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_team ON requests(assigned_team)`,
}

// Store persists teams and requests in a SQL database.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLite opens or creates a SQLite database at path.
func OpenSQLite(path string) (*Store, error) {
	db, err := sql.Open(SQLite.Driver, path)
	if err != nil {
		return nil, err
	}
	// one writer at a time, and ":memory:" lives on a single connection
	db.SetMaxOpenConns(1)
	return New(context.Background(), db, SQLite, true)
}

// OpenPostgres connects to PostgreSQL using dsn.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open(Postgres.Driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return New(ctx, db, Postgres, true)
}

// New wraps an open database. When migrate is set the schema is created.
func New(ctx context.Context, db *sql.DB, d Dialect, migrate bool) (*Store, error) {
	s := &Store{db: db, dialect: d}
	if migrate {
		for _, stmt := range schema {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// rebind rewrites '?' placeholders for numbered dialects.
func (s *Store) rebind(q string) string {
	if !s.dialect.Numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
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

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// exists reports whether table holds a row with id.
func (s *Store) exists(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, table, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, s.rebind("SELECT 1 FROM "+table+" WHERE id = ?"), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// conditional turns a zero-row UPDATE into ErrNotFound or ErrConflict.
func (s *Store) conditional(ctx context.Context, tx *sql.Tx, res sql.Result, kind, table, id string, expected string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	ok, err := s.exists(ctx, tx, table, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return fmt.Errorf("%s %s is not %s: %w", kind, id, expected, store.ErrConflict)
}

func nanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func nullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: nanos(*t), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

var _ store.Store = (*Store)(nil)
