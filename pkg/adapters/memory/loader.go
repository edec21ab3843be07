package memory

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aretw0/fsmsim/pkg/domain"
)

// Loader implements ports.MachineLoader using an in-memory map.
type Loader struct {
	machines map[string]domain.Machine
}

// NewLoader creates a new Loader from machine descriptions keyed by reference.
func NewLoader(machines map[string]domain.Machine) *Loader {
	data := make(map[string]domain.Machine, len(machines))
	for k, m := range machines {
		data[k] = m
	}
	return &Loader{machines: data}
}

// NewFromJSON creates a new Loader from raw .bsm JSON documents.
// This handles decoding automatically, improving DX for tests.
func NewFromJSON(docs map[string]string) (*Loader, error) {
	data := make(map[string]domain.Machine, len(docs))
	for ref, doc := range docs {
		var m domain.Machine
		if err := json.Unmarshal([]byte(doc), &m); err != nil {
			return nil, fmt.Errorf("failed to decode machine %s: %w", ref, err)
		}
		data[ref] = m
	}
	return &Loader{machines: data}, nil
}

// LoadMachine retrieves a machine by reference.
func (l *Loader) LoadMachine(ref string) (domain.Machine, error) {
	m, ok := l.machines[ref]
	if !ok {
		return domain.Machine{}, fmt.Errorf("machine not found: %s", ref)
	}
	if m.Name == "" {
		m.Name = ref
	}
	return m, nil
}

// ListMachines returns all available references.
func (l *Loader) ListMachines() ([]string, error) {
	keys := make([]string, 0, len(l.machines))
	for k := range l.machines {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}
