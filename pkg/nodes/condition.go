package nodes

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/aretw0/arbor/pkg/blackboard"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Operator is a comparison used by CompareVariable.
type Operator string

const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
)

// ParseOperator validates op. The empty string means equality.
func ParseOperator(op string) (Operator, error) {
	switch o := Operator(strings.TrimSpace(op)); o {
	case "":
		return OpEqual, nil
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		return o, nil
	}
	return "", fmt.Errorf("unknown comparison operator %q", op)
}

// CompareVariable compares a variable against a constant or another variable.
// Numbers compare by value whatever their Go type; strings compare lexically;
// any other type only supports == and !=.
type CompareVariable struct {
	Variable blackboard.Cell
	Operator Operator
	Value    any
	// Other, when set, replaces Value.
	Other  blackboard.Cell
	Logger *slog.Logger
}

func (c *CompareVariable) OnStart() {}
func (c *CompareVariable) OnEnd()   {}

func (c *CompareVariable) IsTrue() bool {
	if c.Variable == nil {
		return false
	}
	rhs := c.Value
	if c.Other != nil {
		rhs = c.Other.ObjectValue()
	}
	ok, err := compare(c.Variable.ObjectValue(), c.Operator, rhs)
	if err != nil {
		if c.Logger != nil {
			c.Logger.Error("comparison failed", "variable", c.Variable.Name(), "err", err)
		}
		return false
	}
	return ok
}

func compare(a any, op Operator, b any) (bool, error) {
	if op == "" {
		op = OpEqual
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return ordered(fa, fb, op)
		}
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return ordered(strings.Compare(sa, sb), 0, op)
		}
	}
	if a != nil && b != nil && reflect.TypeOf(a) != reflect.TypeOf(b) {
		// enums compare against their declared names
		if s, ok := b.(string); ok && fmt.Sprint(a) == s {
			b = a
		}
	}
	switch op {
	case OpEqual:
		return reflect.DeepEqual(a, b), nil
	case OpNotEqual:
		return !reflect.DeepEqual(a, b), nil
	}
	return false, fmt.Errorf("operator %s does not apply to %T and %T", op, a, b)
}

func ordered[T int | float64](a, b T, op Operator) (bool, error) {
	switch op {
	case OpEqual:
		return a == b, nil
	case OpNotEqual:
		return a != b, nil
	case OpLess:
		return a < b, nil
	case OpLessEqual:
		return a <= b, nil
	case OpGreater:
		return a > b, nil
	case OpGreaterEqual:
		return a >= b, nil
	}
	return false, fmt.Errorf("unknown operator %q", op)
}

func toFloat(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// VariableIsTrue holds while a boolean variable is true (false when Negate).
type VariableIsTrue struct {
	Variable blackboard.Cell
	Negate   bool
}

func (c *VariableIsTrue) OnStart() {}
func (c *VariableIsTrue) OnEnd()   {}

func (c *VariableIsTrue) IsTrue() bool {
	if c.Variable == nil {
		return false
	}
	v, _ := c.Variable.ObjectValue().(bool)
	return v != c.Negate
}

// VariableChanged holds once its variable changed since the condition started.
type VariableChanged struct {
	Variable blackboard.Cell

	changed bool
	cancel  func()
}

func (c *VariableChanged) OnStart() {
	c.changed = false
	c.subscribe()
}

func (c *VariableChanged) subscribe() {
	if c.cancel != nil || c.Variable == nil {
		return
	}
	c.cancel = c.Variable.OnValueChanged(func() { c.changed = true })
}

func (c *VariableChanged) IsTrue() bool { return c.changed }

func (c *VariableChanged) OnEnd() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *VariableChanged) OnSerialize() map[string]any {
	return map[string]any{"changed": c.changed}
}

// OnDeserialize restores the flag and the subscription, which does not survive a load.
func (c *VariableChanged) OnDeserialize(data map[string]any) error {
	var st struct {
		Changed bool `json:"changed"`
	}
	if err := decodeState(data, &st); err != nil {
		return err
	}
	c.changed = st.Changed
	c.subscribe()
	return nil
}

// Expression holds while a boolean expression over the blackboard evaluates to true.
// Variables are addressed by name; unknown names evaluate to nil.
type Expression struct {
	Source     string
	Blackboard *blackboard.Blackboard
	Logger     *slog.Logger

	program *vm.Program
}

// NewExpression compiles src once; evaluation reuses the program.
func NewExpression(src string, bb *blackboard.Blackboard, logger *slog.Logger) (*Expression, error) {
	program, err := expr.Compile(src, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", src, err)
	}
	return &Expression{Source: src, Blackboard: bb, Logger: logger, program: program}, nil
}

func (e *Expression) OnStart() {}
func (e *Expression) OnEnd()   {}

func (e *Expression) IsTrue() bool {
	if e.program == nil {
		return false
	}
	env := map[string]any{}
	if e.Blackboard != nil {
		for _, c := range e.Blackboard.Variables() {
			env[c.Name()] = c.ObjectValue()
		}
	}
	out, err := expr.Run(e.program, env)
	if err != nil {
		if e.Logger != nil {
			e.Logger.Error("expression failed", "expression", e.Source, "err", err)
		}
		return false
	}
	ok, _ := out.(bool)
	return ok
}
