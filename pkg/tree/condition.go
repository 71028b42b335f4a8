package tree

import (
	"errors"
	"fmt"
)

// Condition is a predicate attached to branching and guard nodes.
// Stateful conditions also implement Stateful.
type Condition interface {
	OnStart()
	IsTrue() bool
	OnEnd()
}

// EvaluateConditions aggregates conds with AND when requireAll, OR otherwise.
// An empty list is true.
func EvaluateConditions(conds []Condition, requireAll bool) bool {
	if len(conds) == 0 {
		return true
	}
	for _, c := range conds {
		ok := c.IsTrue()
		if requireAll && !ok {
			return false
		}
		if !requireAll && ok {
			return true
		}
	}
	return requireAll
}

func StartConditions(conds []Condition) {
	for _, c := range conds {
		c.OnStart()
	}
}

func EndConditions(conds []Condition) {
	for _, c := range conds {
		c.OnEnd()
	}
}

// SerializeConditions collects the state of stateful conditions, positionally.
// It returns nil when none of them is stateful.
func SerializeConditions(conds []Condition) []any {
	var out []any
	stateful := false
	for _, c := range conds {
		if s, ok := c.(Stateful); ok {
			out = append(out, s.OnSerialize())
			stateful = true
			continue
		}
		out = append(out, nil)
	}
	if !stateful {
		return nil
	}
	return out
}

// DeserializeConditions hands the positional state produced by SerializeConditions back.
func DeserializeConditions(conds []Condition, raw any) error {
	if raw == nil {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("conditions state: expected list, got %T", raw)
	}
	var errs []error
	for i, c := range conds {
		s, ok := c.(Stateful)
		if !ok || i >= len(list) || list[i] == nil {
			continue
		}
		data, ok := list[i].(map[string]any)
		if !ok {
			errs = append(errs, fmt.Errorf("condition %d: expected map, got %T", i, list[i]))
			continue
		}
		if err := s.OnDeserialize(data); err != nil {
			errs = append(errs, fmt.Errorf("condition %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
