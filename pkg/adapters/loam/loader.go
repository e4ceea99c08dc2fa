package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/questgraph/pkg/document"
	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/aretw0/questgraph/pkg/ports"
)

// Loader reads a quest document from a Loam directory, one file per node.
// It implements ports.DocumentLoader.
type Loader struct {
	Repo *loam.TypedRepository[NodeMetadata]
	Name string
}

// New creates a loader for the quest called name.
func New(repo *loam.TypedRepository[NodeMetadata], name string) *Loader {
	return &Loader{Repo: repo, Name: name}
}

type nodeFile struct {
	path string
	meta NodeMetadata
	body string
}

// Load reads every node file and assembles an unchecked snapshot.
// Nodes are ordered by id so that the same directory always yields the same document.
func (l *Loader) Load(ctx context.Context) (ports.GraphSnapshot, error) {
	files, err := l.files(ctx)
	if err != nil {
		return nil, err
	}

	nodes := make([]domain.Node, 0, len(files))
	var edges []domain.Edge
	for _, id := range sortedIDs(files) {
		f := files[id]
		nodes = append(nodes, toNode(id, f))

		out, err := toEdges(id, f.meta)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.path, err)
		}
		edges = append(edges, out...)
	}
	return document.NewSnapshot(l.Name, nodes, edges), nil
}

// ListNodes returns the node ids found in the repository.
func (l *Loader) ListNodes(ctx context.Context) ([]string, error) {
	files, err := l.files(ctx)
	if err != nil {
		return nil, err
	}
	return sortedIDs(files), nil
}

func (l *Loader) files(ctx context.Context) (map[string]nodeFile, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	files := make(map[string]nodeFile, len(docs))
	for _, doc := range docs {
		rawID := doc.Data.ID
		if rawID == "" {
			rawID = doc.ID
		}
		id := trimExtension(rawID)

		if existing, ok := files[id]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", id, existing.path, doc.ID)
		}
		// List carries metadata only; the body needs a full read.
		full, err := l.Repo.Get(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("loam get failed for %s: %w", doc.ID, err)
		}
		files[id] = nodeFile{path: doc.ID, meta: full.Data, body: strings.TrimSpace(full.Content)}
	}
	return files, nil
}

func toNode(id string, f nodeFile) domain.Node {
	kind := domain.NodeKind(f.meta.Kind)
	if kind == "" {
		kind = domain.KindObjective
	}
	n := domain.Node{
		ID:         id,
		Kind:       kind,
		Entry:      f.meta.Entry,
		Repeatable: f.meta.Repeatable,
	}
	if len(f.meta.Config) > 0 || f.body != "" {
		n.Config = make(map[string]any, len(f.meta.Config)+1)
		for k, v := range f.meta.Config {
			n.Config[k] = v
		}
		if f.body != "" {
			n.Config[domain.ConfigDescription] = f.body
		}
	}

	n.Inputs, n.Outputs = domain.DefaultPins(kind)
	if f.meta.Inputs != nil {
		n.Inputs = toPins(f.meta.Inputs, domain.DirInput)
	}
	if f.meta.Outputs != nil {
		n.Outputs = toPins(f.meta.Outputs, domain.DirOutput)
	}
	return n
}

func toPins(src []PinMetadata, dir domain.Direction) []domain.Pin {
	pins := make([]domain.Pin, 0, len(src))
	for _, p := range src {
		typ := domain.PinType(p.Type)
		if typ == "" {
			typ = domain.PinControl
		}
		pins = append(pins, domain.Pin{ID: p.ID, Direction: dir, Type: typ, Default: p.Default})
	}
	return pins
}

func toEdges(id string, meta NodeMetadata) ([]domain.Edge, error) {
	edges := make([]domain.Edge, 0, len(meta.Next)+len(meta.Links))
	for _, target := range meta.Next {
		edges = append(edges, domain.Edge{
			From: domain.PinRef{Node: id, Pin: domain.DefaultOutputPin},
			To:   domain.PinRef{Node: trimExtension(target), Pin: domain.DefaultInputPin},
		})
	}
	for i, link := range meta.Links {
		from := link.From
		if from == "" {
			from = domain.DefaultOutputPin
		}
		to, err := parseTarget(link.To)
		if err != nil {
			return nil, fmt.Errorf("links[%d]: %w", i, err)
		}
		edges = append(edges, domain.Edge{From: domain.PinRef{Node: id, Pin: from}, To: to})
	}
	return edges, nil
}

func parseTarget(s string) (domain.PinRef, error) {
	if s == "" {
		return domain.PinRef{}, fmt.Errorf("link has no target")
	}
	if !strings.Contains(s, ".") {
		return domain.PinRef{Node: s, Pin: domain.DefaultInputPin}, nil
	}
	return domain.ParsePinRef(s)
}

func sortedIDs(files map[string]nodeFile) []string {
	ids := make([]string, 0, len(files))
	for id := range files {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if isFileExt(ext) {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

func isFileExt(ext string) bool {
	switch ext {
	case ".md", ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// Watch emits the id of every changed node file until ctx is done.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- trimExtension(evt.ID):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}
