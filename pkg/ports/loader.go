package ports

import "github.com/aretw0/fsmsim/pkg/domain"

// MachineLoader defines how machine descriptions are retrieved.
// This allows the source (files, memory) to be decoupled from the simulator.
type MachineLoader interface {
	// LoadMachine resolves ref into a machine description.
	LoadMachine(ref string) (domain.Machine, error)

	// ListMachines returns the references this loader can resolve.
	// This is used for introspection tools (e.g. 'fsmsim validate' over a directory).
	ListMachines() ([]string, error)
}
