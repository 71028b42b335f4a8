package domain

import "time"

// TreeState is the persisted snapshot of an in-flight tree instance.
// It is what stores save and what Graph.Restore consumes on resume.
type TreeState struct {
	// SessionID identifies the driver session owning the instance.
	SessionID string `json:"session_id"`

	// TreeID identifies the description the instance was compiled from.
	TreeID string `json:"tree_id"`

	// Frame is the clock frame at snapshot time.
	Frame uint64 `json:"frame"`

	// Status is the root status at snapshot time.
	Status Status `json:"status"`

	Nodes     []NodeState     `json:"nodes"`
	Variables []VariableState `json:"variables,omitempty"`

	SavedAt time.Time `json:"saved_at"`

	// Sealed holds the encrypted snapshot when the state was written through
	// an encrypting store. Only the metadata fields are readable alongside it.
	Sealed string `json:"sealed,omitempty"`
}

// NodeState is the persisted part of one node.
type NodeState struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	// Data is whatever the node returned from OnSerialize.
	Data map[string]any `json:"data,omitempty"`
}

// VariableState is the persisted value of one blackboard variable.
type VariableState struct {
	GUID  string `json:"guid"`
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// NewTreeState creates an empty snapshot for a session.
func NewTreeState(sessionID, treeID string) *TreeState {
	return &TreeState{
		SessionID: sessionID,
		TreeID:    treeID,
		Status:    StatusUninitialized,
		Nodes:     []NodeState{},
	}
}

// Node returns the persisted state of the node with the given ID.
func (s *TreeState) Node(id string) (*NodeState, bool) {
	for i := range s.Nodes {
		if s.Nodes[i].ID == id {
			return &s.Nodes[i], true
		}
	}
	return nil, false
}

// Clone returns a copy whose slices and top-level maps can be mutated freely.
func (s *TreeState) Clone() *TreeState {
	if s == nil {
		return nil
	}
	next := *s
	next.Nodes = make([]NodeState, len(s.Nodes))
	for i, n := range s.Nodes {
		next.Nodes[i] = n
		if n.Data != nil {
			next.Nodes[i].Data = make(map[string]any, len(n.Data))
			for k, v := range n.Data {
				next.Nodes[i].Data[k] = v
			}
		}
	}
	next.Variables = append([]VariableState(nil), s.Variables...)
	return &next
}
