package tui

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/aretw0/fsmsim/pkg/domain"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// NewRenderer returns a function that renders markdown using glamour.
// width <= 0 keeps glamour's default word wrap.
func NewRenderer(width int) func(string) (string, error) {
	opts := []glamour.TermRendererOption{
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// IsTerminal reports whether f is attached to an interactive terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the width of f, or fallback when it is not a terminal.
func TerminalWidth(f *os.File, fallback int) int {
	if !IsTerminal(f) {
		return fallback
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}

// Styler colours action-log lines by their kind.
type Styler struct {
	profile termenv.Profile
}

// NewStyler returns a Styler for the given colour profile. termenv.Ascii
// disables colouring entirely.
func NewStyler(p termenv.Profile) *Styler {
	return &Styler{profile: p}
}

var lineStyles = []struct {
	marker string
	color  string
	bold   bool
}{
	{"[SIMULATION HALTED]", "#ef4444", true},
	{"HALTED", "#ef4444", true},
	{"[Code Error]", "#ef4444", false},
	{"[Sub-FSM Error]", "#ef4444", false},
	{"Blocked by Safety Check]", "#f97316", false},
	{"[Safety Check Failed]", "#f97316", false},
	{"BREAKPOINT", "#facc15", true},
	{"PAUSED", "#facc15", true},
	{"[Warning]", "#facc15", false},
	{"[Output]", "#22d3ee", false},
	{"Entering state:", "#4ade80", false},
}

// Line styles a single action-log line.
func (s *Styler) Line(line string) string {
	if s.profile == termenv.Ascii {
		return line
	}
	for _, st := range lineStyles {
		if strings.Contains(line, st.marker) {
			out := termenv.String(line).Foreground(s.profile.Color(st.color))
			if st.bold {
				out = out.Bold()
			}
			return out.String()
		}
	}
	return line
}

// Lines styles every line, joined with newlines.
func (s *Styler) Lines(lines []string) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = s.Line(l)
	}
	return strings.Join(out, "\n")
}

// Report builds the markdown summary of a simulation run.
func Report(snap domain.Snapshot, events []string) string {
	var sb strings.Builder
	title := snap.Name
	if title == "" {
		title = "Simulation"
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)

	status := "running"
	switch {
	case snap.Halted:
		status = "**halted**"
	case snap.Paused:
		status = "**paused** at breakpoint"
	}
	fmt.Fprintf(&sb, "- **State:** `%s`\n", strings.Join(snap.ActivePath, " / "))
	fmt.Fprintf(&sb, "- **Tick:** %d\n", snap.Tick)
	fmt.Fprintf(&sb, "- **Status:** %s\n", status)
	if len(events) > 0 {
		fmt.Fprintf(&sb, "- **Events:** %s\n", codeList(events))
	}
	if len(snap.PossibleEvents) > 0 {
		fmt.Fprintf(&sb, "- **Possible events:** %s\n", codeList(snap.PossibleEvents))
	}
	if len(snap.StateBreakpoints) > 0 {
		fmt.Fprintf(&sb, "- **Breakpoints:** %s\n", codeList(snap.StateBreakpoints))
	}

	sb.WriteString("\n## Variables\n\n")
	if len(snap.Variables) == 0 {
		sb.WriteString("_none_\n")
		return sb.String()
	}
	names := make([]string, 0, len(snap.Variables))
	for name := range snap.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	sb.WriteString("| Name | Value |\n|---|---|\n")
	for _, name := range names {
		fmt.Fprintf(&sb, "| `%s` | `%v` |\n", name, snap.Variables[name])
	}
	return sb.String()
}

func codeList(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = "`" + it + "`"
	}
	return strings.Join(quoted, ", ")
}
