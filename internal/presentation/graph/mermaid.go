package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/questgraph/internal/expr"
	"github.com/aretw0/questgraph/pkg/domain"
)

// Overlay contains instance data to visualize on the graph.
type Overlay struct {
	Visited     []string
	Active      []string
	Interrupted []string
}

// OverlayFor builds the overlay of an instance of m.
func OverlayFor(m *domain.Machine, s *domain.InstanceState) *Overlay {
	ids := func(idx []int) []string {
		out := make([]string, 0, len(idx))
		for _, i := range idx {
			if i >= 0 && i < len(m.States) {
				out = append(out, m.States[i].NodeID)
			}
		}
		return out
	}
	return &Overlay{
		Visited:     ids(s.History),
		Active:      ids(s.Active),
		Interrupted: ids(s.Interrupted),
	}
}

// GenerateMermaid produces a Mermaid flowchart of a compiled quest.
// Shapes follow the state kind:
//   - entry: ((circle))
//   - gate: {{hexagon}}
//   - branch: {rhombus}
//   - action: [[subroutine]]
//   - terminal: ([stadium])
//
// Edges carry their guard, optional edges are dotted.
func GenerateMermaid(m *domain.Machine, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for i := range m.States {
		st := &m.States[i]
		opener, closer := shape(st, i == m.Entry)
		label := st.NodeID
		if st.Title != "" {
			label = st.Title
		}
		if st.Kind == domain.KindGate && st.Join != "" {
			label += " <br/> " + string(st.Join)
		}
		if st.Action != nil {
			label += " <br/> " + st.Action.Name
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(st.NodeID), opener, escape(label), closer)
	}

	for _, tr := range m.Transitions {
		from := sanitizeMermaidID(m.States[tr.Source].NodeID)
		to := sanitizeMermaidID(m.States[tr.Target].NodeID)

		arrow := "-->"
		if tr.Optional {
			arrow = "-.->"
		}
		if guard := expr.Lift(m, tr.Guard); guard != nil {
			cond := escape(unwrap(guard.String()))
			arrow = fmt.Sprintf("-- \"%s\" -->", cond)
			if tr.Optional {
				arrow = fmt.Sprintf("-. \"%s\" .->", cond)
			}
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", from, arrow, to)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on both light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef interrupted fill:#eeeeee,stroke:#9e9e9e,stroke-dasharray:4,color:#000;\n")
		writeClass(&sb, overlay.Visited, "visited")
		writeClass(&sb, overlay.Interrupted, "interrupted")
		writeClass(&sb, overlay.Active, "current")
	}

	return sb.String()
}

func shape(st *domain.State, entry bool) (string, string) {
	switch {
	case entry:
		return "((", "))"
	case st.Kind == domain.KindGate:
		return "{{", "}}"
	case st.Kind == domain.KindBranch:
		return "{", "}"
	case st.Kind == domain.KindAction:
		return "[[", "]]"
	case st.Kind == domain.KindTerminal:
		return "([", "])"
	}
	return "[", "]"
}

func writeClass(sb *strings.Builder, ids []string, class string) {
	seen := make(map[string]bool)
	for _, id := range ids {
		safeID := sanitizeMermaidID(id)
		if safeID == "" || seen[safeID] {
			continue
		}
		seen[safeID] = true
		fmt.Fprintf(sb, "    class %s %s;\n", safeID, class)
	}
}

// unwrap drops the outer parentheses the canonical form puts around
// binary expressions.
func unwrap(s string) string {
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		return s[1 : len(s)-1]
	}
	return s
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
