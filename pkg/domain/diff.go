package domain

import (
	"reflect"
)

// StateDiff represents the changes between two snapshots of the same instance.
// It is designed to be serialized to JSON for partial updates on a client.
type StateDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	Frame  *uint64 `json:"frame,omitempty"`
	Status *Status `json:"status,omitempty"`

	// Nodes contains only nodes whose status changed, keyed by node ID.
	Nodes map[string]Status `json:"nodes,omitempty"`

	// Variables contains only changed, added or deleted variables keyed by name.
	// For deletions, the key is present with a nil value.
	Variables map[string]any `json:"variables,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
func Diff(oldState, newState *TreeState) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{
		SessionID: newState.SessionID,
	}

	if oldState == nil || oldState.Frame != newState.Frame {
		diff.Frame = &newState.Frame
	}
	if oldState == nil || oldState.Status != newState.Status {
		diff.Status = &newState.Status
	}

	diff.Nodes = diffNodes(oldState, newState)
	diff.Variables = diffVariables(oldState, newState)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffNodes(old *TreeState, new *TreeState) map[string]Status {
	delta := make(map[string]Status)
	for _, n := range new.Nodes {
		if old == nil {
			delta[n.ID] = n.Status
			continue
		}
		prev, ok := old.Node(n.ID)
		if !ok || prev.Status != n.Status {
			delta[n.ID] = n.Status
		}
	}
	if len(delta) == 0 {
		return nil
	}
	return delta
}

func diffVariables(old *TreeState, new *TreeState) map[string]any {
	delta := make(map[string]any)

	previous := make(map[string]any)
	if old != nil {
		for _, v := range old.Variables {
			previous[v.Name] = v.Value
		}
	}

	current := make(map[string]bool, len(new.Variables))
	for _, v := range new.Variables {
		current[v.Name] = true
		oldVal, exists := previous[v.Name]
		if !exists || !reflect.DeepEqual(oldVal, v.Value) {
			delta[v.Name] = v.Value
		}
	}

	for name := range previous {
		if !current[name] {
			delta[name] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.Frame == nil &&
		d.Status == nil &&
		len(d.Nodes) == 0 &&
		len(d.Variables) == 0
}
