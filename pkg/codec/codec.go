package codec

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/aretw0/questgraph/pkg/ports"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/blake3"
)

// Format selects the on-disk layout.
type Format uint8

const (
	// FormatBinary is MessagePack with sorted map keys.
	FormatBinary Format = iota
	// FormatJSON is compact JSON, for inspection and debugging.
	FormatJSON
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "binary"
}

// ParseFormat reads "binary", "msgpack" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "binary", "msgpack":
		return FormatBinary, nil
	case "json":
		return FormatJSON, nil
	}
	return 0, fmt.Errorf("unknown format %q", s)
}

// Detect guesses the format of an encoded container.
func Detect(data []byte) Format {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatJSON
	}
	return FormatBinary
}

// Current container versions.
const (
	DefinitionVersion = 1
	InstanceVersion   = 1
)

// VersionError is returned for containers written by a newer format.
type VersionError struct {
	Container string
	Version   int
	Supported int
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("%s container version %d is newer than supported version %d", e.Container, e.Version, e.Supported)
}

func (e *VersionError) Unwrap() error {
	return domain.ErrUnsupportedVersion
}

type definitionEnvelope struct {
	Version int             `json:"version" msgpack:"version"`
	Machine *domain.Machine `json:"machine" msgpack:"machine"`
	// Symbols maps node ids back to state indices for tooling.
	Symbols map[string]int `json:"symbols" msgpack:"symbols"`
}

type instanceEnvelope struct {
	Version  int                   `json:"version" msgpack:"version"`
	Instance *domain.InstanceState `json:"instance" msgpack:"instance"`
}

// header is decoded first so that the payload of a newer container is never
// interpreted with an older layout.
type header struct {
	Version int `json:"version" msgpack:"version"`
}

// EncodeDefinition writes a compiled machine in a versioned container.
func EncodeDefinition(m *domain.Machine, f Format) ([]byte, error) {
	if m == nil {
		return nil, errors.New("encode definition: nil machine")
	}
	return marshal(definitionEnvelope{Version: DefinitionVersion, Machine: m, Symbols: m.Symbols()}, f)
}

// DecodeDefinition reads a container written by EncodeDefinition and checks
// every index of the machine.
func DecodeDefinition(data []byte, f Format) (*domain.Machine, error) {
	var h header
	if err := unmarshal(data, f, &h); err != nil {
		return nil, fmt.Errorf("decode definition: %w", err)
	}
	if h.Version > DefinitionVersion {
		return nil, &VersionError{Container: "definition", Version: h.Version, Supported: DefinitionVersion}
	}
	var env definitionEnvelope
	if err := unmarshal(data, f, &env); err != nil {
		return nil, fmt.Errorf("decode definition: %w", err)
	}
	if env.Machine == nil {
		return nil, errors.New("decode definition: missing machine")
	}
	if err := env.Machine.Check(); err != nil {
		return nil, fmt.Errorf("decode definition: %w", err)
	}
	for id, i := range env.Symbols {
		if got, ok := env.Machine.Index(id); !ok || got != i {
			return nil, fmt.Errorf("decode definition: symbol %q does not match state %d", id, i)
		}
	}
	return env.Machine, nil
}

// EncodeInstance writes instance state in a versioned container. The
// definition is referenced by id, never embedded.
func EncodeInstance(s *domain.InstanceState, f Format) ([]byte, error) {
	if s == nil {
		return nil, errors.New("encode instance: nil state")
	}
	return marshal(instanceEnvelope{Version: InstanceVersion, Instance: s}, f)
}

// DecodeInstance reads instance state without resolving its definition.
func DecodeInstance(data []byte, f Format) (*domain.InstanceState, error) {
	var h header
	if err := unmarshal(data, f, &h); err != nil {
		return nil, fmt.Errorf("decode instance: %w", err)
	}
	if h.Version > InstanceVersion {
		return nil, &VersionError{Container: "instance", Version: h.Version, Supported: InstanceVersion}
	}
	var env instanceEnvelope
	if err := unmarshal(data, f, &env); err != nil {
		return nil, fmt.Errorf("decode instance: %w", err)
	}
	if env.Instance == nil {
		return nil, errors.New("decode instance: missing state")
	}
	return env.Instance, nil
}

// ResolveInstance decodes instance state and looks its definition up in reg.
// A definition the registry does not hold yields domain.ErrUnresolvedDefinition.
func ResolveInstance(ctx context.Context, data []byte, f Format, reg ports.DefinitionRegistry) (*domain.InstanceState, *domain.Machine, error) {
	s, err := DecodeInstance(data, f)
	if err != nil {
		return nil, nil, err
	}
	m, err := reg.Definition(ctx, s.DefinitionID)
	if errors.Is(err, domain.ErrDefinitionNotFound) {
		return nil, nil, fmt.Errorf("instance %s references %q: %w", s.ID, s.DefinitionID, domain.ErrUnresolvedDefinition)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("instance %s: %w", s.ID, err)
	}
	if err := CheckInstance(s, m); err != nil {
		return nil, nil, err
	}
	return s, m, nil
}

// CheckInstance verifies that every state index held by s exists in m.
func CheckInstance(s *domain.InstanceState, m *domain.Machine) error {
	n := len(m.States)
	bad := func(i int) bool { return i < 0 || i >= n }
	for _, list := range [][]int{s.Active, s.History, s.Locked, s.Interrupted} {
		for _, i := range list {
			if bad(i) {
				return fmt.Errorf("instance %s: state %d out of range for %s", s.ID, i, m.ID)
			}
		}
	}
	for i, slots := range s.Joins {
		if bad(i) || len(slots) != len(m.States[i].In) {
			return fmt.Errorf("instance %s: join counters of state %d do not match %s", s.ID, i, m.ID)
		}
	}
	for i := range s.Visits {
		if bad(i) {
			return fmt.Errorf("instance %s: visit count of state %d out of range for %s", s.ID, i, m.ID)
		}
	}
	return nil
}

// Fingerprint hashes the canonical binary encoding of m with its id cleared.
// Identical machines always get identical fingerprints.
func Fingerprint(m *domain.Machine) (string, error) {
	c := *m
	c.ID = ""
	data, err := marshal(&c, FormatBinary)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:8]), nil
}

func marshal(v any, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return json.Marshal(v)
	case FormatBinary:
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetSortMapKeys(true)
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown format %d", f)
}

func unmarshal(data []byte, f Format, v any) error {
	switch f {
	case FormatJSON:
		return json.Unmarshal(data, v)
	case FormatBinary:
		return msgpack.Unmarshal(data, v)
	}
	return fmt.Errorf("unknown format %d", f)
}
