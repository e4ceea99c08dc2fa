package document

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/aretw0/questgraph/pkg/ports"
	"gopkg.in/yaml.v3"
)

// FileVersion is the version of the YAML authoring format written by Encode.
const FileVersion = 1

type fileDoc struct {
	Version int        `yaml:"version"`
	Name    string     `yaml:"name"`
	Nodes   []fileNode `yaml:"nodes"`
	Edges   []fileEdge `yaml:"edges,omitempty"`
}

type fileNode struct {
	ID         string          `yaml:"id"`
	Kind       domain.NodeKind `yaml:"kind"`
	Entry      bool            `yaml:"entry,omitempty"`
	Repeatable bool            `yaml:"repeatable,omitempty"`
	Inputs     []filePin       `yaml:"inputs,omitempty"`
	Outputs    []filePin       `yaml:"outputs,omitempty"`
	Config     map[string]any  `yaml:"config,omitempty"`
}

type filePin struct {
	ID      string         `yaml:"id"`
	Type    domain.PinType `yaml:"type,omitempty"`
	Default any            `yaml:"default,omitempty"`
}

type fileEdge struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Encode writes a snapshot in the YAML authoring format, in insertion order.
// Pin lists matching the kind defaults are omitted, each side on its own.
func Encode(w io.Writer, snap ports.GraphSnapshot) error {
	doc := fileDoc{Version: FileVersion, Name: snap.Name()}
	for _, n := range snap.Nodes() {
		fn := fileNode{
			ID:         n.ID,
			Kind:       n.Kind,
			Entry:      n.Entry,
			Repeatable: n.Repeatable,
			Config:     n.Config,
		}
		defIn, defOut := domain.DefaultPins(n.Kind)
		if !samePins(n.Inputs, defIn) {
			fn.Inputs = toFilePins(n.Inputs)
		}
		if !samePins(n.Outputs, defOut) {
			fn.Outputs = toFilePins(n.Outputs)
		}
		doc.Nodes = append(doc.Nodes, fn)
	}
	for _, e := range snap.Edges() {
		doc.Edges = append(doc.Edges, fileEdge{From: e.From.String(), To: e.To.String()})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	return enc.Close()
}

// Decode reads the YAML authoring format into an unchecked snapshot.
// Nodes that list no pins get the defaults of their kind.
func Decode(r io.Reader) (*Snapshot, error) {
	var doc fileDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if doc.Version > FileVersion {
		return nil, fmt.Errorf("document version %d: %w", doc.Version, domain.ErrUnsupportedVersion)
	}

	nodes := make([]domain.Node, 0, len(doc.Nodes))
	for _, fn := range doc.Nodes {
		n := domain.Node{
			ID:         fn.ID,
			Kind:       fn.Kind,
			Entry:      fn.Entry,
			Repeatable: fn.Repeatable,
			Config:     fn.Config,
		}
		n.Inputs, n.Outputs = domain.DefaultPins(fn.Kind)
		if fn.Inputs != nil {
			n.Inputs = fromFilePins(fn.Inputs, domain.DirInput)
		}
		if fn.Outputs != nil {
			n.Outputs = fromFilePins(fn.Outputs, domain.DirOutput)
		}
		nodes = append(nodes, n)
	}

	edges := make([]domain.Edge, 0, len(doc.Edges))
	for i, fe := range doc.Edges {
		from, err := domain.ParsePinRef(fe.From)
		if err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
		to, err := domain.ParsePinRef(fe.To)
		if err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
		edges = append(edges, domain.Edge{From: from, To: to})
	}

	return NewSnapshot(doc.Name, nodes, edges), nil
}

// ReadFile decodes a document file from disk.
func ReadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	snap, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

// FileLoader implements ports.DocumentLoader for a YAML document on disk.
type FileLoader struct {
	Path string
}

// Load reads and decodes the file on every call.
func (l FileLoader) Load(ctx context.Context) (ports.GraphSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadFile(l.Path)
}

func toFilePins(pins []domain.Pin) []filePin {
	out := make([]filePin, 0, len(pins))
	for _, p := range pins {
		out = append(out, filePin{ID: p.ID, Type: p.Type, Default: p.Default})
	}
	return out
}

func fromFilePins(pins []filePin, dir domain.Direction) []domain.Pin {
	if len(pins) == 0 {
		return nil
	}
	out := make([]domain.Pin, 0, len(pins))
	for _, p := range pins {
		typ := p.Type
		if typ == "" {
			typ = domain.PinControl
		}
		out = append(out, domain.Pin{ID: p.ID, Direction: dir, Type: typ, Default: p.Default})
	}
	return out
}

func samePins(a, b []domain.Pin) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Type != b[i].Type || a[i].Direction != b[i].Direction || a[i].Default != nil {
			return false
		}
	}
	return true
}
