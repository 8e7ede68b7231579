package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite3"
)

// DB wraps sqlx.DB for Postgres (pgx) or SQLite.
type DB struct {
	Client *sqlx.DB
	Driver string
}

// NewDB opens and pings the database with sane pool defaults.
func NewDB(ctx context.Context, driver, dsn string) (*DB, error) {
	switch driver {
	case DriverPostgres:
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	default:
		return nil, errors.Errorf("unsupported db driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}
	if driver == DriverSQLite {
		// one writer; also keeps a :memory: database alive
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping db")
	}
	return &DB{Client: db, Driver: driver}, nil
}

func sqliteDSN(dsn string) string {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return dsn
	}
	if dir := filepath.Dir(dsn); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	return dsn + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=off"
}

// Migrate creates the schema if it does not exist.
func (d *DB) Migrate(ctx context.Context) error {
	ts := "TIMESTAMPTZ"
	if d.Driver == DriverSQLite {
		ts = "TIMESTAMP"
	}
	schema := strings.ReplaceAll(`
	CREATE TABLE IF NOT EXISTS students (
		id          TEXT PRIMARY KEY,
		uid         TEXT NOT NULL UNIQUE,
		student_id  TEXT NOT NULL UNIQUE,
		name        TEXT NOT NULL,
		gender      TEXT NOT NULL,
		created_at  {ts} NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attendance_records (
		id          TEXT PRIMARY KEY,
		student_id  TEXT NOT NULL,
		day         TEXT NOT NULL,
		occurred_at {ts} NOT NULL,
		status      TEXT NOT NULL CHECK (status IN ('HADIR', 'IZIN', 'SAKIT', 'ALFA')),
		photo_url   TEXT,
		remark      TEXT NOT NULL DEFAULT '',
		UNIQUE (student_id, day)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_day ON attendance_records(day);

	CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL,
		created_at    {ts} NOT NULL
	);
	`, "{ts}", ts)

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}
	return nil
}

// Healthy pings the database.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
