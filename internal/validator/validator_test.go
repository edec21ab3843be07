package validator

import (
	"strings"
	"testing"

	"github.com/aretw0/fsmsim/pkg/domain"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		machine domain.Machine
		want    []string
	}{
		{
			name: "Valid",
			machine: domain.Machine{
				States: []domain.StateDef{
					{Name: "start", IsInitial: true},
					{Name: "a"},
					{Name: "b", IsFinal: true},
				},
				Transitions: []domain.TransitionDef{
					{Source: "start", Target: "a", Event: "go"},
					{Source: "a", Target: "b"},
				},
			},
		},
		{
			name: "Unreachable And Dead End",
			machine: domain.Machine{
				States: []domain.StateDef{
					{Name: "start", IsInitial: true},
					{Name: "orphan", IsFinal: true},
				},
				Transitions: []domain.TransitionDef{
					{Source: "start", Target: "ghost", Event: "go"},
				},
			},
			want: []string{
				"start: not final and has no outgoing transitions",
				"orphan: unreachable from initial state 'start'",
			},
		},
		{
			name: "Defaults To First State",
			machine: domain.Machine{
				States: []domain.StateDef{
					{Name: "first", IsFinal: true},
					{Name: "second", IsFinal: true},
				},
			},
			want: []string{"second: unreachable from initial state 'first'"},
		},
		{
			name: "Superstate Problems",
			machine: domain.Machine{
				States: []domain.StateDef{
					{Name: "Idle", IsInitial: true},
					{Name: "Empty", IsSuperstate: true},
					{
						Name: "Loop", IsSuperstate: true,
						SubFSM: &domain.SubFSM{
							States: []domain.StateDef{{Name: "A", IsInitial: true}, {Name: "B"}},
							Transitions: []domain.TransitionDef{
								{Source: "A", Target: "B", Event: "x"},
								{Source: "B", Target: "A", Event: "y"},
							},
						},
					},
					{Name: "Flat", IsFinal: true, SubFSM: &domain.SubFSM{States: []domain.StateDef{{Name: "X"}}}},
				},
				Transitions: []domain.TransitionDef{
					{Source: "Idle", Target: "Empty", Event: "e"},
					{Source: "Empty", Target: "Loop", Event: "l"},
					{Source: "Loop", Target: "Flat", Condition: "Loop_sub_completed"},
				},
			},
			want: []string{
				"Empty: superstate without nested states",
				"Loop: 'Loop_sub_completed' is never set: the nested machine has no final state",
				"Flat: carries nested states but is not a superstate; they are ignored",
			},
		},
		{
			name: "Nested Level",
			machine: domain.Machine{
				States: []domain.StateDef{
					{
						Name: "Outer", IsInitial: true, IsSuperstate: true, IsFinal: true,
						SubFSM: &domain.SubFSM{
							States: []domain.StateDef{
								{Name: "In", IsInitial: true, IsFinal: true},
								{Name: "Lost", IsFinal: true},
							},
						},
					},
				},
			},
			want: []string{"Outer/Lost: unreachable from initial state 'In'"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := Validate(tt.machine)
			got := make([]string, len(issues))
			for i, is := range issues {
				got[i] = is.String()
			}
			if strings.Join(got, "\n") != strings.Join(tt.want, "\n") {
				t.Errorf("Validate() =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(tt.want, "\n"))
			}
		})
	}
}

func TestValidateGraph(t *testing.T) {
	ok := domain.Machine{States: []domain.StateDef{{Name: "only", IsFinal: true}}}
	if err := ValidateGraph(ok); err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	broken := domain.Machine{States: []domain.StateDef{{Name: "stuck"}}}
	err := ValidateGraph(broken)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "found 1 errors") || !strings.Contains(err.Error(), "stuck: not final") {
		t.Errorf("unexpected error text: %v", err)
	}
}
