package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/questgraph/pkg/domain"
)

const instanceExt = ".instance"

// Store implements ports.InstanceStore on the local filesystem, one file
// per instance.
type Store struct {
	BasePath string
}

// New creates a Store rooted at basePath, ".questgraph/instances" if empty.
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".questgraph", "instances")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(instanceID string) string {
	return filepath.Join(s.BasePath, instanceID+instanceExt)
}

// Save writes the record atomically.
func (s *Store) Save(ctx context.Context, instanceID string, data []byte) error {
	if err := checkID(instanceID); err != nil {
		return err
	}
	if err := writeAtomic(s.BasePath, instanceID+instanceExt, data); err != nil {
		return fmt.Errorf("save instance %s: %w", instanceID, err)
	}
	return nil
}

// Load reads the record of an instance.
func (s *Store) Load(ctx context.Context, instanceID string) ([]byte, error) {
	if err := checkID(instanceID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(instanceID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrInstanceNotFound
		}
		return nil, fmt.Errorf("failed to read instance file: %w", err)
	}
	return data, nil
}

// Delete removes the record. Missing records are not an error.
func (s *Store) Delete(ctx context.Context, instanceID string) error {
	if err := checkID(instanceID); err != nil {
		return err
	}
	if err := os.Remove(s.path(instanceID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete instance file: %w", err)
	}
	return nil
}

// List returns the ids of all stored instances.
func (s *Store) List(ctx context.Context) ([]string, error) {
	ids, err := listIDs(s.BasePath, instanceExt)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	return ids, nil
}
