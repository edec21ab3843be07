package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/fsmsim/internal/presentation/graph"
	"github.com/aretw0/fsmsim/pkg/domain"
)

func jobMachine() domain.Machine {
	return domain.Machine{
		Name: "job",
		States: []domain.StateDef{
			{Name: "Idle", IsInitial: true, EntryAction: `msg = "ready"`},
			{Name: "Processing", IsSuperstate: true, SubFSM: &domain.SubFSM{
				States: []domain.StateDef{
					{Name: "SubIdle", IsInitial: true},
					{Name: "Sub Done", IsFinal: true},
				},
				Transitions: []domain.TransitionDef{
					{Source: "SubIdle", Target: "Sub Done", Event: "finish"},
				},
			}},
			{Name: "Done", IsFinal: true},
		},
		Transitions: []domain.TransitionDef{
			{Source: "Idle", Target: "Processing", Event: "start", Condition: "ready == True", Action: "count += 1"},
			{Source: "Processing", Target: "Done", Condition: "Processing_sub_completed"},
			{Source: "Idle", Target: "Ghost", Event: "lost"},
		},
	}
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		machine  domain.Machine
		overlay  *graph.GraphOverlay
		contains []string
		excludes []string
	}{
		{
			name:    "Header And Initial",
			machine: jobMachine(),
			contains: []string{
				"stateDiagram-v2\n",
				"%% Title: job",
				"    [*] --> Idle\n",
			},
		},
		{
			name:    "Composite State",
			machine: jobMachine(),
			contains: []string{
				"    state Processing {\n",
				"        [*] --> Processing__SubIdle\n",
				"        Processing__Sub_Done --> [*]\n",
				"        Processing__SubIdle --> Processing__Sub_Done : finish\n",
			},
		},
		{
			name:    "Labels And Escaping",
			machine: jobMachine(),
			contains: []string{
				"Idle : entry / msg = #quot;ready#quot;",
				"Idle --> Processing : start [ready == True] / count += 1",
				"Processing --> Done : [Processing_sub_completed]",
			},
			excludes: []string{"Ghost"},
		},
		{
			name:    "Overlay",
			machine: jobMachine(),
			overlay: &graph.GraphOverlay{
				ActivePath:  []string{"Processing", "SubIdle"},
				Breakpoints: []string{"Sub Done", "Idle"},
			},
			contains: []string{
				"classDef active",
				"class Processing,Processing__SubIdle active",
				"class Idle,Processing__Sub_Done breakpoint",
			},
		},
		{
			name:     "Empty Machine",
			machine:  domain.Machine{},
			contains: []string{"%% No states defined"},
			excludes: []string{"[*]"},
		},
		{
			name: "Defaults Initial To First State",
			machine: domain.Machine{States: []domain.StateDef{
				{Name: "1st"}, {Name: "second"},
			}},
			contains: []string{"[*] --> s_1st"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.machine, tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(got, unwanted) {
					t.Errorf("GenerateMermaid() = \n%v\nUnwanted substring: %v", got, unwanted)
				}
			}
		})
	}
}
