package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aretw0/questgraph/pkg/codec"
	"github.com/aretw0/questgraph/pkg/domain"
)

// Registry implements ports.DefinitionRegistry on a SQL table.
type Registry struct {
	*DB
}

// NewRegistry returns the definition registry of d.
func NewRegistry(d *DB) *Registry {
	return &Registry{DB: d}
}

// Register inserts m unless its id is already present.
func (r *Registry) Register(ctx context.Context, m *domain.Machine) error {
	data, err := codec.EncodeDefinition(m, codec.FormatBinary)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, r.rebind(`INSERT INTO quest_definitions (id, name, data, created_at) VALUES (?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING`), m.ID, m.Name, data, now())
	if err != nil {
		return fmt.Errorf("register %s: %w", m.ID, err)
	}
	return nil
}

// Definition decodes the definition stored under id.
func (r *Registry) Definition(ctx context.Context, id string) (*domain.Machine, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, r.rebind(`SELECT data FROM quest_definitions WHERE id = ?`), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrDefinitionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load definition %s: %w", id, err)
	}
	return codec.DecodeDefinition(data, codec.FormatBinary)
}

// List returns all definition ids in order.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	return r.ids(ctx, `SELECT id FROM quest_definitions ORDER BY id`)
}
