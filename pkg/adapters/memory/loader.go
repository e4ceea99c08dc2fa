package memory

import (
	"context"

	"github.com/aretw0/questgraph/pkg/ports"
)

// Loader implements ports.DocumentLoader over a snapshot that already lives in memory.
type Loader struct {
	snap ports.GraphSnapshot
}

// NewLoader wraps a snapshot, typically taken from a document or the dsl builder.
func NewLoader(snap ports.GraphSnapshot) *Loader {
	return &Loader{snap: snap}
}

// Load returns the wrapped snapshot.
func (l *Loader) Load(ctx context.Context) (ports.GraphSnapshot, error) {
	return l.snap, nil
}
