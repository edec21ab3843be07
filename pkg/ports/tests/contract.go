package tests

import (
	"testing"

	"github.com/aretw0/fsmsim/pkg/ports"
)

// MachineLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.MachineLoader.
// want maps every reference the loader should resolve to the number of root states it holds.
func MachineLoaderContractTest(t *testing.T, loader ports.MachineLoader, want map[string]int) {
	t.Helper()

	t.Run("LoadMachine_Success", func(t *testing.T) {
		for ref, states := range want {
			m, err := loader.LoadMachine(ref)
			if err != nil {
				t.Fatalf("unexpected error loading machine %s: %v", ref, err)
			}
			if len(m.States) != states {
				t.Errorf("state count mismatch for %s. got %d, want %d", ref, len(m.States), states)
			}
		}
	})

	t.Run("LoadMachine_NotFound", func(t *testing.T) {
		_, err := loader.LoadMachine("non-existent-machine")
		if err == nil {
			t.Error("expected error for non-existent machine, got nil")
		}
	})

	t.Run("ListMachines", func(t *testing.T) {
		refs, err := loader.ListMachines()
		if err != nil {
			t.Fatalf("unexpected error listing machines: %v", err)
		}
		found := make(map[string]bool, len(refs))
		for _, ref := range refs {
			found[ref] = true
		}
		for ref := range want {
			if !found[ref] {
				t.Errorf("ListMachines() missing %q, got %v", ref, refs)
			}
		}
	})
}
