package runner

import (
	"errors"
	"testing"

	"github.com/aretw0/fsmsim/pkg/domain"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		want    domain.Command
		wantErr error
	}{
		{"start", domain.Command{Op: domain.OpStep, Event: "start"}, nil},
		{"", domain.Command{Op: domain.OpStep}, nil},
		{":step", domain.Command{Op: domain.OpStep}, nil},
		{":s go", domain.Command{Op: domain.OpStep, Event: "go"}, nil},
		{":reset", domain.Command{Op: domain.OpReset}, nil},
		{":c", domain.Command{Op: domain.OpContinue}, nil},
		{":set x=3", domain.Command{Op: domain.OpSetVariable, Name: "x", Value: 3}, nil},
		{":set name=bob", domain.Command{Op: domain.OpSetVariable, Name: "name", Value: "bob"}, nil},
		{":break Idle", domain.Command{Op: domain.OpAddStateBreakpoint, Name: "Idle"}, nil},
		{":unbreak Idle", domain.Command{Op: domain.OpRemoveStateBreakpoint, Name: "Idle"}, nil},
		{":tbreak A B", domain.Command{Op: domain.OpAddTransitionBreakpoint, Source: "A", Target: "B"}, nil},
		{":untbreak A B go", domain.Command{Op: domain.OpRemoveTransitionBreakpoint, Source: "A", Target: "B", Event: "go"}, nil},
		{":quit", domain.Command{}, ErrQuit},
		{"two words", domain.Command{}, ErrInvalidCommand},
		{":set novalue", domain.Command{}, ErrInvalidCommand},
		{":break", domain.Command{}, ErrInvalidCommand},
		{":tbreak A", domain.Command{}, ErrInvalidCommand},
		{":nope", domain.Command{}, ErrInvalidCommand},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseLine(%q) error = %v, want %v", tt.line, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLine(%q) unexpected error: %v", tt.line, err)
			}
			if got.Op != tt.want.Op || got.Event != tt.want.Event || got.Name != tt.want.Name ||
				got.Source != tt.want.Source || got.Target != tt.want.Target || got.Value != tt.want.Value {
				t.Errorf("ParseLine(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseAssignment(t *testing.T) {
	tests := []struct {
		pair  string
		name  string
		value any
	}{
		{"n=3", "n", 3},
		{"f = 1.5", "f", 1.5},
		{"ok=true", "ok", true},
		{"s=hello", "s", "hello"},
		{"empty=", "empty", ""},
		{"nothing=null", "nothing", nil},
	}
	for _, tt := range tests {
		name, value, err := ParseAssignment(tt.pair)
		if err != nil {
			t.Fatalf("ParseAssignment(%q): %v", tt.pair, err)
		}
		if name != tt.name || value != tt.value {
			t.Errorf("ParseAssignment(%q) = %q, %v; want %q, %v", tt.pair, name, value, tt.name, tt.value)
		}
	}

	if _, _, err := ParseAssignment("=3"); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("expected ErrInvalidCommand for missing name, got %v", err)
	}
}
