package ports

import (
	"context"

	"github.com/aretw0/questgraph/pkg/domain"
)

// GraphSnapshot is an immutable view of an authored quest document.
// Nodes and edges are returned in insertion order.
type GraphSnapshot interface {
	Name() string
	Nodes() []domain.Node
	Edges() []domain.Edge
}

// DocumentLoader reads an authored quest document from a storage backend
// (a YAML file, a Loam directory, ...).
type DocumentLoader interface {
	Load(ctx context.Context) (GraphSnapshot, error)
}

// SymbolResolver tells the validator whether an external gameplay symbol
// (actor, item, location) exists.
type SymbolResolver interface {
	Resolve(symbolID string) bool
}

// SymbolResolverFunc adapts a function to SymbolResolver.
type SymbolResolverFunc func(symbolID string) bool

// Resolve calls f.
func (f SymbolResolverFunc) Resolve(symbolID string) bool {
	return f(symbolID)
}

// Watchable is implemented by loaders that can report changes to the
// underlying document. The channel carries the id of the changed item.
type Watchable interface {
	Watch(ctx context.Context) (<-chan string, error)
}
