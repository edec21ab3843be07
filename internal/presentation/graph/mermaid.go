package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/fsmsim/pkg/domain"
)

// GraphOverlay contains dynamic simulation data to visualize on the graph.
type GraphOverlay struct {
	// ActivePath lists the active state of every level, outermost first
	// (domain.Snapshot.ActivePath).
	ActivePath []string
	// Breakpoints are state names with a state breakpoint. They are marked on every level.
	Breakpoints []string
}

// GenerateMermaid produces a Mermaid stateDiagram-v2 for a machine. Superstates
// become composite states holding their nested machine. Entry, during and exit
// actions are shown as state descriptions and transitions are labelled
// "event [condition] / action".
// It also applies overlay styles (active path, breakpoints) if provided.
func GenerateMermaid(m domain.Machine, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("stateDiagram-v2\n")
	if m.Name != "" {
		sb.WriteString(fmt.Sprintf("    %%%% Title: %s\n", strings.ReplaceAll(m.Name, "\n", " ")))
	}
	if len(m.States) == 0 {
		sb.WriteString("    %% No states defined\n")
		return sb.String()
	}
	sb.WriteString("    direction LR\n")

	writeLevel(&sb, m.States, m.Transitions, "", 1)

	if overlay != nil {
		writeOverlay(&sb, m, overlay)
	}
	return sb.String()
}

func writeLevel(sb *strings.Builder, states []domain.StateDef, transitions []domain.TransitionDef, prefix string, depth int) {
	indent := strings.Repeat("    ", depth)
	ids := make(map[string]string, len(states))
	initial := ""

	for _, st := range states {
		id := stateID(prefix, st.Name)
		ids[st.Name] = id
		label := escapeLabel(st.Name)

		if sub, ok := st.Sub(); ok {
			sb.WriteString(fmt.Sprintf("%sstate \"%s\" as %s\n", indent, label, id))
			sb.WriteString(fmt.Sprintf("%sstate %s {\n", indent, id))
			writeLevel(sb, sub.States, sub.Transitions, id, depth+1)
			sb.WriteString(fmt.Sprintf("%s}\n", indent))
		} else {
			sb.WriteString(fmt.Sprintf("%sstate \"%s\" as %s\n", indent, label, id))
		}
		for _, line := range actionLines(st) {
			sb.WriteString(fmt.Sprintf("%s%s : %s\n", indent, id, escapeLabel(line)))
		}

		if st.IsInitial && initial == "" {
			initial = id
		}
		if st.IsFinal {
			sb.WriteString(fmt.Sprintf("%s%s --> [*]\n", indent, id))
		}
	}
	if initial == "" {
		initial = ids[states[0].Name]
	}
	sb.WriteString(fmt.Sprintf("%s[*] --> %s\n", indent, initial))

	for _, t := range transitions {
		src, okSrc := ids[t.Source]
		dst, okDst := ids[t.Target]
		if !okSrc || !okDst {
			continue
		}
		if label := escapeLabel(transitionLabel(t)); label != "" {
			sb.WriteString(fmt.Sprintf("%s%s --> %s : %s\n", indent, src, dst, label))
		} else {
			sb.WriteString(fmt.Sprintf("%s%s --> %s\n", indent, src, dst))
		}
	}
}

func writeOverlay(sb *strings.Builder, m domain.Machine, overlay *GraphOverlay) {
	sb.WriteString("\n    %% Overlay Styles\n")
	// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme
	sb.WriteString("    classDef active fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000\n")
	sb.WriteString("    classDef breakpoint stroke:#d32f2f,stroke-width:3px,stroke-dasharray:5 5\n")

	var active []string
	prefix := ""
	for _, name := range overlay.ActivePath {
		id := stateID(prefix, name)
		active = append(active, id)
		prefix = id
	}
	if len(active) > 0 {
		sb.WriteString(fmt.Sprintf("    class %s active\n", strings.Join(active, ",")))
	}

	if len(overlay.Breakpoints) > 0 {
		want := make(map[string]bool, len(overlay.Breakpoints))
		for _, name := range overlay.Breakpoints {
			want[name] = true
		}
		var marked []string
		walkStates(m.States, "", func(id string, st domain.StateDef) {
			if want[st.Name] {
				marked = append(marked, id)
			}
		})
		if len(marked) > 0 {
			sb.WriteString(fmt.Sprintf("    class %s breakpoint\n", strings.Join(marked, ",")))
		}
	}
}

// walkStates visits every state of every level, depth first, with its diagram ID.
func walkStates(states []domain.StateDef, prefix string, fn func(id string, st domain.StateDef)) {
	for _, st := range states {
		id := stateID(prefix, st.Name)
		fn(id, st)
		if sub, ok := st.Sub(); ok {
			walkStates(sub.States, id, fn)
		}
	}
}

func actionLines(st domain.StateDef) []string {
	var lines []string
	for _, a := range []struct{ kind, code string }{
		{"entry", st.EntryAction},
		{"during", st.DuringAction},
		{"exit", st.ExitAction},
	} {
		if strings.TrimSpace(a.code) != "" {
			lines = append(lines, fmt.Sprintf("%s / %s", a.kind, a.code))
		}
	}
	return lines
}

func transitionLabel(t domain.TransitionDef) string {
	var parts []string
	if t.Event != "" {
		parts = append(parts, t.Event)
	}
	if t.Condition != "" {
		parts = append(parts, "["+t.Condition+"]")
	}
	if t.Action != "" {
		parts = append(parts, "/ "+t.Action)
	}
	return strings.Join(parts, " ")
}

// stateID builds a diagram-safe identifier, qualified by the enclosing superstates.
func stateID(prefix, name string) string {
	id := sanitizeID(name)
	if prefix == "" {
		return id
	}
	return prefix + "__" + id
}

func sanitizeID(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		s = "s_" + s
	}
	return s
}

func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", "; ")
	s = strings.ReplaceAll(s, "\"", "#quot;")
	return s
}
