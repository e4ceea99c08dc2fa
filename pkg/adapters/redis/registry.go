package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/questgraph/pkg/codec"
	"github.com/aretw0/questgraph/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Registry implements ports.DefinitionRegistry with one Redis hash holding
// every encoded definition, so replicas share what any of them compiled.
type Registry struct {
	client *backend.Client
	key    string
}

// NewRegistry creates a registry under prefix, DefaultPrefix if empty.
func NewRegistry(client *backend.Client, prefix string) *Registry {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Registry{client: client, key: prefix + "definitions"}
}

// Register stores m unless its id is already present.
func (r *Registry) Register(ctx context.Context, m *domain.Machine) error {
	data, err := codec.EncodeDefinition(m, codec.FormatBinary)
	if err != nil {
		return err
	}
	if err := r.client.HSetNX(ctx, r.key, m.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to register definition: %w", err)
	}
	return nil
}

// Definition decodes the definition stored under id.
func (r *Registry) Definition(ctx context.Context, id string) (*domain.Machine, error) {
	data, err := r.client.HGet(ctx, r.key, id).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDefinitionNotFound, id)
		}
		return nil, fmt.Errorf("failed to get definition: %w", err)
	}
	return codec.DecodeDefinition(data, codec.FormatBinary)
}

// List returns the registered ids in sorted order.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	ids, err := r.client.HKeys(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}
