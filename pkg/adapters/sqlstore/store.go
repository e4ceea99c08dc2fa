package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aretw0/questgraph/pkg/domain"
)

// Store implements ports.InstanceStore on a SQL table.
type Store struct {
	*DB
}

// NewStore returns the instance store of d.
func NewStore(d *DB) *Store {
	return &Store{DB: d}
}

// Save upserts the record.
func (s *Store) Save(ctx context.Context, instanceID string, data []byte) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO quest_instances (id, data, updated_at) VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`),
		instanceID, data, now())
	if err != nil {
		return fmt.Errorf("save instance %s: %w", instanceID, err)
	}
	return nil
}

// Load reads the record of an instance.
func (s *Store) Load(ctx context.Context, instanceID string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT data FROM quest_instances WHERE id = ?`), instanceID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrInstanceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load instance %s: %w", instanceID, err)
	}
	return data, nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, instanceID string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM quest_instances WHERE id = ?`), instanceID); err != nil {
		return fmt.Errorf("delete instance %s: %w", instanceID, err)
	}
	return nil
}

// List returns all instance ids in order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	return s.ids(ctx, `SELECT id FROM quest_instances ORDER BY id`)
}

func (d *DB) ids(ctx context.Context, query string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
