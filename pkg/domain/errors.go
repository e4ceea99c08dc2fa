package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInstanceNotFound is returned when an instance id cannot be found in the store.
var ErrInstanceNotFound = errors.New("instance not found")

// ErrDefinitionNotFound is returned by registries for unknown definition ids.
var ErrDefinitionNotFound = errors.New("definition not found")

// ErrUnsupportedVersion is returned when a container was written by a newer format.
var ErrUnsupportedVersion = errors.New("unsupported format version")

// ErrUnresolvedDefinition is returned when an instance references a definition the registry does not hold.
var ErrUnresolvedDefinition = errors.New("unresolved definition")

// ErrAlreadyStarted is returned when Start is called on an instance that left Pending.
var ErrAlreadyStarted = errors.New("instance already started")

// ErrNotActive is returned by operations that need an active instance.
var ErrNotActive = errors.New("instance not active")

// ErrStateNotActive is returned when a state named by the caller is not in the active set.
var ErrStateNotActive = errors.New("state not active")

// ErrUnknownState is returned when a node id has no compiled state.
var ErrUnknownState = errors.New("unknown state")

// Invariants named by StructuralError.
const (
	InvariantNodeID        = "node-id"
	InvariantUniqueNode    = "unique-node"
	InvariantNodeKind      = "node-kind"
	InvariantNodeExists    = "node-exists"
	InvariantUniquePin     = "unique-pin"
	InvariantPinExists     = "pin-exists"
	InvariantPinDirection  = "pin-direction"
	InvariantPinType       = "pin-type"
	InvariantTerminalPins  = "terminal-pins"
	InvariantDuplicateEdge = "duplicate-edge"
	InvariantFanIn         = "fan-in"
	InvariantEdgeExists    = "edge-exists"
	InvariantPayloadType   = "payload-type"
)

// StructuralError is returned by document mutations that would break a local invariant.
// The document is left unchanged.
type StructuralError struct {
	Op        string
	Invariant string
	Node      string
	Pin       string
	Msg       string
	Err       error
}

func (e *StructuralError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Op)
	sb.WriteString(": ")
	sb.WriteString(e.Invariant)
	if e.Node != "" {
		sb.WriteString(" [node ")
		sb.WriteString(e.Node)
		if e.Pin != "" {
			sb.WriteString(" pin ")
			sb.WriteString(e.Pin)
		}
		sb.WriteString("]")
	}
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

// CompileError is returned when compilation is attempted on a document that was
// not validated or did not pass validation.
type CompileError struct {
	Reason string
	// Problems lists the blocking diagnostics, if any.
	Problems []string
	Err      error
}

func (e *CompileError) Error() string {
	msg := "compile: " + e.Reason
	if len(e.Problems) > 0 {
		msg += fmt.Sprintf(" (%d problems: %s)", len(e.Problems), strings.Join(e.Problems, "; "))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CompileError) Unwrap() error {
	return e.Err
}
