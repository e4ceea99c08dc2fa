package loam

import (
	"context"
	"fmt"

	"github.com/aretw0/loam"
	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/aretw0/questgraph/pkg/ports"
)

// Save writes snap into the repository, one document per node. Control edges
// between default pins are written as next, everything else as links.
func (l *Loader) Save(ctx context.Context, snap ports.GraphSnapshot) error {
	out := make(map[string][]domain.Edge)
	for _, e := range snap.Edges() {
		out[e.From.Node] = append(out[e.From.Node], e)
	}

	for _, n := range snap.Nodes() {
		meta, body := fromNode(n, out[n.ID])
		err := l.Repo.Save(ctx, &loam.DocumentModel[NodeMetadata]{
			ID:      n.ID,
			Content: body,
			Data:    meta,
		})
		if err != nil {
			return fmt.Errorf("failed to save node %s: %w", n.ID, err)
		}
	}
	return nil
}

func fromNode(n domain.Node, edges []domain.Edge) (NodeMetadata, string) {
	meta := NodeMetadata{
		ID:         n.ID,
		Kind:       string(n.Kind),
		Entry:      n.Entry,
		Repeatable: n.Repeatable,
	}

	var body string
	for k, v := range n.Config {
		if k == domain.ConfigDescription {
			body, _ = v.(string)
			continue
		}
		if meta.Config == nil {
			meta.Config = make(map[string]any, len(n.Config))
		}
		meta.Config[k] = v
	}

	defIn, defOut := domain.DefaultPins(n.Kind)
	if !samePins(n.Inputs, defIn) || !samePins(n.Outputs, defOut) {
		meta.Inputs = toPinMetadata(n.Inputs)
		meta.Outputs = toPinMetadata(n.Outputs)
	}

	for _, e := range edges {
		if e.From.Pin == domain.DefaultOutputPin && e.To.Pin == domain.DefaultInputPin {
			meta.Next = append(meta.Next, e.To.Node)
			continue
		}
		meta.Links = append(meta.Links, LinkMetadata{From: e.From.Pin, To: e.To.String()})
	}
	return meta, body
}

func toPinMetadata(pins []domain.Pin) []PinMetadata {
	out := make([]PinMetadata, 0, len(pins))
	for _, p := range pins {
		out = append(out, PinMetadata{ID: p.ID, Type: string(p.Type), Default: p.Default})
	}
	return out
}

func samePins(a, b []domain.Pin) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Type != b[i].Type || a[i].Default != nil {
			return false
		}
	}
	return true
}
