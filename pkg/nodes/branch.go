package nodes

import (
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/tree"
)

// Branch evaluates its conditions once at start and runs the True or False child.
//
// A selected branch with no child attached is an intentional no-op: it is
// reported at warning level and the branch succeeds.
type Branch struct {
	tree.Composite

	Conditions            []tree.Condition
	RequiresAllConditions bool
	// TrueID and FalseID name the children of each branch; either may be empty.
	TrueID  string
	FalseID string

	taken  tree.Node
	result bool
}

func (b *Branch) OnStart() domain.Status {
	tree.StartConditions(b.Conditions)
	b.result = tree.EvaluateConditions(b.Conditions, b.RequiresAllConditions)
	tree.EndConditions(b.Conditions)

	id := b.FalseID
	if b.result {
		id = b.TrueID
	}
	b.taken = b.child(id)
	if b.taken == nil {
		b.Logger().Warn("branch has no child for the selected path", "result", b.result)
		return domain.StatusSuccess
	}
	return progress(b.Graph().StartNode(b.taken))
}

func (b *Branch) OnUpdate() domain.Status {
	if b.taken == nil {
		return domain.StatusSuccess
	}
	return progress(b.taken.NodeBase().Status())
}

func (b *Branch) OnEnd() {}

func (b *Branch) child(id string) tree.Node {
	if id == "" {
		return nil
	}
	for _, c := range b.Children() {
		if c.NodeBase().ID() == id {
			return c
		}
	}
	return nil
}

func (b *Branch) OnSerialize() map[string]any {
	data := map[string]any{"result": b.result}
	if conds := tree.SerializeConditions(b.Conditions); conds != nil {
		data["conditions"] = conds
	}
	return data
}

func (b *Branch) OnDeserialize(data map[string]any) error {
	var st struct {
		Result bool `json:"result"`
	}
	if err := decodeState(data, &st); err != nil {
		return err
	}
	b.result = st.Result
	id := b.FalseID
	if b.result {
		id = b.TrueID
	}
	b.taken = b.child(id)
	return tree.DeserializeConditions(b.Conditions, data["conditions"])
}
