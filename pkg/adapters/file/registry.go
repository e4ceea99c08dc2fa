package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/questgraph/pkg/codec"
	"github.com/aretw0/questgraph/pkg/domain"
)

const definitionExt = ".def"

// Registry implements ports.DefinitionRegistry over a directory of encoded
// definitions. Definitions are immutable, so the first write wins.
type Registry struct {
	BasePath string
	Format   codec.Format
}

// NewRegistry creates a Registry rooted at basePath, ".questgraph/definitions" if empty.
func NewRegistry(basePath string) *Registry {
	if basePath == "" {
		basePath = filepath.Join(".questgraph", "definitions")
	}
	return &Registry{BasePath: basePath, Format: codec.FormatBinary}
}

func (r *Registry) path(id string) string {
	return filepath.Join(r.BasePath, id+definitionExt)
}

// Register writes m unless a definition with the same id already exists.
func (r *Registry) Register(ctx context.Context, m *domain.Machine) error {
	if err := checkID(m.ID); err != nil {
		return err
	}
	if _, err := os.Stat(r.path(m.ID)); err == nil {
		return nil
	}
	data, err := codec.EncodeDefinition(m, r.Format)
	if err != nil {
		return err
	}
	if err := writeAtomic(r.BasePath, m.ID+definitionExt, data); err != nil {
		return fmt.Errorf("register %s: %w", m.ID, err)
	}
	return nil
}

// Definition decodes the definition stored under id.
func (r *Registry) Definition(ctx context.Context, id string) (*domain.Machine, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDefinitionNotFound, id)
		}
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}
	return codec.DecodeDefinition(data, codec.Detect(data))
}

// List returns the ids of all stored definitions.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	ids, err := listIDs(r.BasePath, definitionExt)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	return ids, nil
}
