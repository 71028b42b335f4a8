package nodes

import (
	"reflect"

	"github.com/aretw0/arbor/pkg/blackboard"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/tree"
)

// Switch runs the child mapped to the current value of an enum variable:
// member i of the enum selects child i. Values without a child report Default.
type Switch struct {
	tree.Composite

	Variable blackboard.Cell
	Enums    *blackboard.EnumRegistry
	// Cases overrides the enum members when set.
	Cases   []any
	Default domain.Status

	cache     map[any]int
	cacheType string
	index     int
	dirty     bool
	watched   blackboard.Cell
	unwatch   func()
}

func (s *Switch) OnStart() domain.Status {
	if s.Variable == nil {
		return fail(&s.Base, "switch has no variable")
	}
	s.watch()
	if s.dirty {
		s.index = s.lookup()
		s.dirty = false
	}
	children := s.Children()
	if s.index < 0 || s.index >= len(children) {
		s.Logger().Warn("switch value has no mapped child",
			"variable", s.Variable.Name(),
			"value", s.Variable.ObjectValue(),
			"default", s.Default,
		)
		return s.defaultStatus()
	}
	return progress(s.Graph().StartNode(children[s.index]))
}

func (s *Switch) OnUpdate() domain.Status {
	children := s.Children()
	if s.index < 0 || s.index >= len(children) {
		return s.defaultStatus()
	}
	return progress(children[s.index].NodeBase().Status())
}

func (s *Switch) OnEnd() {}

// defaultStatus keeps Default usable as a result. An unset or in-progress
// default is reported as Success, like a branch with no child: nothing
// could wake the switch to complete it.
func (s *Switch) defaultStatus() domain.Status {
	if s.Default.IsTerminal() {
		return s.Default
	}
	return domain.StatusSuccess
}

// watch subscribes to the variable once; a change marks the mapping dirty.
func (s *Switch) watch() {
	if s.watched == s.Variable {
		return
	}
	if s.unwatch != nil {
		s.unwatch()
	}
	s.watched = s.Variable
	s.unwatch = s.Variable.OnValueChanged(func() { s.dirty = true })
	s.dirty = true
}

// lookup resolves the current value through the value→index cache, rebuilding
// the cache only when the variable's type changed.
func (s *Switch) lookup() int {
	typeName := s.Variable.TypeName()
	if s.cache == nil || s.cacheType != typeName {
		s.rebuild(typeName)
	}
	value := s.Variable.ObjectValue()
	if value == nil || !reflect.TypeOf(value).Comparable() {
		return -1
	}
	if i, ok := s.cache[value]; ok {
		return i
	}
	return -1
}

func (s *Switch) rebuild(typeName string) {
	members := s.Cases
	if members == nil && s.Enums != nil {
		members, _ = s.Enums.Members(typeName)
	}
	s.cache = make(map[any]int, len(members))
	for i, m := range members {
		s.cache[m] = i
	}
	s.cacheType = typeName
}

// Dispose drops the subscription on the variable.
func (s *Switch) Dispose() {
	if s.unwatch != nil {
		s.unwatch()
		s.unwatch = nil
		s.watched = nil
	}
}

func (s *Switch) OnSerialize() map[string]any {
	return map[string]any{"index": s.index}
}

func (s *Switch) OnDeserialize(data map[string]any) error {
	var st struct {
		Index int `json:"index"`
	}
	if err := decodeState(data, &st); err != nil {
		return err
	}
	if s.Variable != nil {
		s.watch()
	}
	if s.Status().IsInProgress() {
		s.index = st.Index
		s.dirty = false
	}
	return nil
}
