// Package sqlstore keeps instances and definitions in SQLite (modernc.org/sqlite,
// no cgo) or Postgres (lib/pq). Both share one schema; only placeholders and
// blob column types differ.
package sqlstore
