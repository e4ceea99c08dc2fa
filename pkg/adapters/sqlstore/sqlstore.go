package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder syntax and column types.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// DB wraps a database handle with its dialect. Store and Registry share one.
type DB struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures the tables exist.
func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	return Wrap(ctx, db, SQLite)
}

// OpenPostgres connects with the given DSN, or with PostgresDSNFromEnv if empty.
func OpenPostgres(ctx context.Context, dsn string) (*DB, error) {
	if dsn == "" {
		dsn = PostgresDSNFromEnv()
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return Wrap(ctx, db, Postgres)
}

// PostgresDSNFromEnv builds a DSN from the standard PG* variables.
func PostgresDSNFromEnv() string {
	host := getEnv("PGHOST", "127.0.0.1")
	port := getEnv("PGPORT", "5432")
	user := getEnv("PGUSER", "questgraph")
	dbname := getEnv("PGDATABASE", "questgraph")
	if password := os.Getenv("PGPASSWORD"); password != "" {
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname)
	}
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
		host, port, user, dbname)
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// Wrap bootstraps the tables on an already open handle.
func Wrap(ctx context.Context, db *sql.DB, dialect Dialect) (*DB, error) {
	d := &DB{db: db, dialect: dialect}
	if err := d.bootstrap(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// Dialect returns the dialect of the handle.
func (d *DB) Dialect() Dialect {
	return d.dialect
}

func (d *DB) bootstrap(ctx context.Context) error {
	blob := "BLOB"
	if d.dialect == Postgres {
		blob = "BYTEA"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS quest_instances (
  id         TEXT PRIMARY KEY,
  data       ` + blob + ` NOT NULL,
  updated_at TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS quest_definitions (
  id         TEXT PRIMARY KEY,
  name       TEXT NOT NULL,
  data       ` + blob + ` NOT NULL,
  created_at TEXT NOT NULL
);`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap %s: %w", d.dialect, err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (d *DB) rebind(query string) string {
	if d.dialect != Postgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
