package ports

import (
	"context"

	"github.com/aretw0/questgraph/pkg/domain"
)

//go:generate mockgen -destination=mocks/mock_ports.go -package=mocks github.com/aretw0/questgraph/pkg/ports SymbolResolver,DefinitionRegistry,InstanceStore

// InstanceStore persists encoded quest instances.
// The payload is an opaque, already encoded record so that middleware
// (such as encryption) can wrap any backend.
type InstanceStore interface {
	// Save persists the record for a given instance ID.
	Save(ctx context.Context, instanceID string, data []byte) error

	// Load retrieves the record for a given instance ID.
	// Returns domain.ErrInstanceNotFound if the instance does not exist.
	Load(ctx context.Context, instanceID string) ([]byte, error)

	// Delete removes the record for a given instance ID.
	Delete(ctx context.Context, instanceID string) error

	// List returns the IDs of all stored instances.
	List(ctx context.Context) ([]string, error)
}

// DefinitionRegistry holds compiled quest definitions by their stable id.
type DefinitionRegistry interface {
	// Register stores a machine under its ID. Registering the same ID twice is a no-op.
	Register(ctx context.Context, m *domain.Machine) error

	// Definition returns the machine with the given ID.
	// Returns domain.ErrDefinitionNotFound if it is unknown.
	Definition(ctx context.Context, id string) (*domain.Machine, error)

	// List returns the IDs of all registered definitions.
	List(ctx context.Context) ([]string, error)
}
