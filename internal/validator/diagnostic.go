package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/aretw0/questgraph/pkg/ports"
)

// Category classifies a diagnostic.
type Category string

const (
	UnreachableNode     Category = "unreachable_node"
	MissingEntry        Category = "missing_entry"
	MultipleEntry       Category = "multiple_entry"
	NoTerminal          Category = "no_terminal"
	DanglingEdge        Category = "dangling_edge"
	TypeMismatch        Category = "type_mismatch"
	IllegalFanIn        Category = "illegal_fan_in"
	IllegalCycle        Category = "illegal_cycle"
	UnresolvedReference Category = "unresolved_reference"
	InvalidPayload      Category = "invalid_payload"
	InvalidExpression   Category = "invalid_expression"
	DeadEnd             Category = "dead_end"
)

// Severity tells blocking diagnostics from advisory ones.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one problem found in a document.
type Diagnostic struct {
	Category Category     `json:"category"`
	Severity Severity     `json:"severity"`
	Node     string       `json:"node,omitempty"`
	Pin      string       `json:"pin,omitempty"`
	Edge     *domain.Edge `json:"edge,omitempty"`
	// Path is the offending node sequence of an illegal cycle, first node repeated last.
	Path    []string `json:"path,omitempty"`
	Message string   `json:"message"`
}

func (d Diagnostic) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s", d.Severity, d.Category)
	switch {
	case d.Edge != nil:
		fmt.Fprintf(&sb, " [edge %s]", d.Edge)
	case d.Node != "" && d.Pin != "":
		fmt.Fprintf(&sb, " [node %s pin %s]", d.Node, d.Pin)
	case d.Node != "":
		fmt.Fprintf(&sb, " [node %s]", d.Node)
	}
	if len(d.Path) > 0 {
		fmt.Fprintf(&sb, " %v", d.Path)
	}
	if d.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(d.Message)
	}
	return sb.String()
}

// Report is the result of validating one snapshot. Only reports produced by
// Validate are accepted by the compiler.
type Report struct {
	Diagnostics []Diagnostic `json:"diagnostics"`

	snapshot  ports.GraphSnapshot
	validated bool
}

// Snapshot returns the snapshot the report was produced from.
func (r *Report) Snapshot() ports.GraphSnapshot {
	return r.snapshot
}

// Validated reports whether r came out of Validate.
func (r *Report) Validated() bool {
	return r != nil && r.validated
}

// Valid reports whether no error-level diagnostic was found.
func (r *Report) Valid() bool {
	return len(r.Errors()) == 0
}

// Errors returns the blocking diagnostics.
func (r *Report) Errors() []Diagnostic {
	return r.filter(SeverityError)
}

// Warnings returns the advisory diagnostics.
func (r *Report) Warnings() []Diagnostic {
	return r.filter(SeverityWarning)
}

// Has reports whether at least one diagnostic of the category was found.
func (r *Report) Has(c Category) bool {
	for _, d := range r.Diagnostics {
		if d.Category == c {
			return true
		}
	}
	return false
}

func (r *Report) filter(s Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity == s {
			out = append(out, d)
		}
	}
	return out
}

func (r *Report) add(d Diagnostic) {
	if d.Severity == "" {
		d.Severity = SeverityError
	}
	r.Diagnostics = append(r.Diagnostics, d)
}
