package domain

import (
	"reflect"
)

// SnapshotDiff represents the changes between two snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type SnapshotDiff struct {
	// CurrentState is set when the hierarchical state name changed.
	CurrentState *string `json:"current_state,omitempty"`

	// Halted or Paused changed?
	Halted *bool `json:"halted,omitempty"`
	Paused *bool `json:"paused,omitempty"`

	// Tick is set when the tick counter moved.
	Tick *int `json:"tick,omitempty"`

	// Variables contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Variables map[string]any `json:"variables,omitempty"`
}

// Diff calculates the difference between oldSnap and newSnap.
// If oldSnap is nil, it returns a diff representing the entire newSnap.
// It returns nil when nothing changed.
func Diff(oldSnap, newSnap *Snapshot) *SnapshotDiff {
	if newSnap == nil {
		return nil
	}

	diff := &SnapshotDiff{}
	if oldSnap == nil || oldSnap.CurrentState != newSnap.CurrentState {
		diff.CurrentState = &newSnap.CurrentState
	}
	if oldSnap == nil || oldSnap.Halted != newSnap.Halted {
		diff.Halted = &newSnap.Halted
	}
	if oldSnap == nil || oldSnap.Paused != newSnap.Paused {
		diff.Paused = &newSnap.Paused
	}
	if oldSnap == nil || oldSnap.Tick != newSnap.Tick {
		diff.Tick = &newSnap.Tick
	}
	diff.Variables = diffVariables(oldSnap, newSnap)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffVariables(old *Snapshot, new *Snapshot) map[string]any {
	delta := make(map[string]any)

	if old == nil {
		for k, v := range new.Variables {
			delta[k] = v
		}
		if len(delta) == 0 {
			return nil
		}
		return delta
	}

	for k, newVal := range new.Variables {
		oldVal, exists := old.Variables[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}
	for k := range old.Variables {
		if _, exists := new.Variables[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SnapshotDiff) IsEmpty() bool {
	return d.CurrentState == nil &&
		d.Halted == nil &&
		d.Paused == nil &&
		d.Tick == nil &&
		len(d.Variables) == 0
}
