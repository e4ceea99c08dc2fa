package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		dialect Dialect
		want    string
	}{
		{SQLite, "INSERT INTO t (a, b) VALUES (?, ?)"},
		{Postgres, "INSERT INTO t (a, b) VALUES ($1, $2)"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.String(), func(t *testing.T) {
			d := &DB{dialect: tt.dialect}
			assert.Equal(t, tt.want, d.rebind("INSERT INTO t (a, b) VALUES (?, ?)"))
		})
	}
}

func TestPostgresDSNFromEnv(t *testing.T) {
	t.Setenv("PGHOST", "db")
	t.Setenv("PGPORT", "6543")
	t.Setenv("PGUSER", "quest")
	t.Setenv("PGDATABASE", "world")
	t.Setenv("PGPASSWORD", "")
	assert.Equal(t, "host=db port=6543 user=quest dbname=world sslmode=disable", PostgresDSNFromEnv())

	t.Setenv("PGPASSWORD", "s3cret")
	assert.Contains(t, PostgresDSNFromEnv(), "password=s3cret")
}
