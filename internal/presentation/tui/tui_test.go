package tui_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aretw0/fsmsim/internal/presentation/tui"
	"github.com/aretw0/fsmsim/pkg/domain"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStyler_AsciiIsPlain(t *testing.T) {
	s := tui.NewStyler(termenv.Ascii)
	line := "[Tick 1] [SIMULATION HALTED] boom"
	assert.Equal(t, line, s.Line(line))
	assert.Equal(t, "a\nb", s.Lines([]string{"a", "b"}))
}

func TestStyler_ColoursKnownLines(t *testing.T) {
	s := tui.NewStyler(termenv.TrueColor)

	halted := s.Line("[Tick 1] [SIMULATION HALTED] boom")
	assert.NotEqual(t, "[Tick 1] [SIMULATION HALTED] boom", halted)
	assert.Contains(t, halted, "\x1b[")
	assert.Contains(t, halted, "boom")

	plain := "[Tick 1] Sending event 'go' to FSM (current level: A)."
	assert.Equal(t, plain, s.Line(plain))
}

func TestReport(t *testing.T) {
	snap := domain.Snapshot{
		Name:           "job",
		ActivePath:     []string{"Processing", "SubIdle"},
		Tick:           3,
		Paused:         true,
		PossibleEvents: []string{"activate", "stop"},
		Variables:      map[string]any{"b": 2, "a": "x"},
	}
	md := tui.Report(snap, []string{"start"})

	assert.True(t, strings.HasPrefix(md, "# job\n"))
	assert.Contains(t, md, "`Processing / SubIdle`")
	assert.Contains(t, md, "**Tick:** 3")
	assert.Contains(t, md, "**paused** at breakpoint")
	assert.Contains(t, md, "**Events:** `start`")
	assert.Contains(t, md, "`activate`, `stop`")
	assert.Less(t, strings.Index(md, "| `a` |"), strings.Index(md, "| `b` |"))
}

func TestReport_NoVariables(t *testing.T) {
	md := tui.Report(domain.Snapshot{ActivePath: []string{"Off"}, Halted: true}, nil)
	assert.Contains(t, md, "# Simulation")
	assert.Contains(t, md, "**halted**")
	assert.Contains(t, md, "_none_")
	assert.NotContains(t, md, "**Events:**")
}

func TestNewRenderer(t *testing.T) {
	render := tui.NewRenderer(60)
	out, err := render("# Title\n\nbody text")
	require.NoError(t, err)
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "body text")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf, termenv.Ascii)
	assert.Contains(t, buf.String(), "|___/")
	assert.NotContains(t, buf.String(), "\x1b[")
}
