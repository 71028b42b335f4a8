package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/nodes"
	"github.com/aretw0/arbor/pkg/tree"
)

// RegisterBuiltins adds every built-in node and condition kind to r.
func RegisterBuiltins(r *Registry) {
	composite := func(name string, f Factory) {
		r.Register(Kind{Name: name, MaxChildren: tree.Unlimited, New: f})
	}
	modifier := func(name string, f Factory) {
		r.Register(Kind{Name: name, MaxChildren: 1, New: f})
	}
	leaf := func(name string, f Factory) {
		r.Register(Kind{Name: name, New: f})
	}

	composite("sequence", plain(func() tree.Node { return &nodes.Sequence{} }))
	composite("selector", plain(func() tree.Node { return &nodes.Selector{} }))
	composite("parallel_any", parallel(nodes.ParallelAny))
	composite("parallel_any_success", parallel(nodes.ParallelAnySuccess))
	composite("parallel_all", parallel(nodes.ParallelAll))
	composite("switch", newSwitch)
	r.Register(Kind{Name: "branch", MaxChildren: 2, Conditions: true, New: newBranch})

	modifier("inverter", plain(func() tree.Node { return &nodes.Inverter{} }))
	modifier("succeeder", plain(func() tree.Node { return &nodes.Succeeder{} }))
	modifier("failer", plain(func() tree.Node { return &nodes.Failer{} }))
	modifier("repeat", repeat(domain.StatusUninitialized))
	modifier("repeat_until_success", repeat(domain.StatusSuccess))
	modifier("repeat_until_failure", repeat(domain.StatusFailure))
	r.Register(Kind{Name: "guard", MaxChildren: 1, Conditions: true, New: newGuard})
	modifier("cooldown", newCooldown)
	modifier("start_on_event", newStartOnEvent)

	r.Register(Kind{Name: "join", MaxChildren: 1, Join: true, New: plain(func() tree.Node { return &nodes.Join{} })})
	r.Register(Kind{Name: "wait_for_all", MaxChildren: 1, Join: true, New: plain(func() tree.Node { return &nodes.WaitForAll{} })})

	leaf("wait_frames", newWaitFrames)
	leaf("wait", newWait)
	leaf("set_variable", newSetVariable)
	leaf("log", newLog)
	leaf("send_event", newSendEvent)
	leaf("call_action", newCallAction)
	leaf("run_subgraph", newRunSubgraph)
	leaf("run_subgraph_dynamic", newRunSubgraphDynamic)

	r.RegisterCondition("compare", newCompare)
	r.RegisterCondition("is_true", newIsTrue)
	r.RegisterCondition("changed", newChanged)
	r.RegisterCondition("expression", newExpression)
}

// plain builds kinds without properties.
func plain(fn func() tree.Node) Factory {
	return func(_ Builder, spec Spec) (tree.Node, error) {
		if err := Decode(spec.Properties, &struct{}{}); err != nil {
			return nil, err
		}
		return fn(), nil
	}
}

func parallel(policy nodes.ParallelPolicy) Factory {
	return plain(func() tree.Node { return &nodes.Parallel{Policy: policy} })
}

func newSwitch(b Builder, spec Spec) (tree.Node, error) {
	var p struct {
		Variable string        `mapstructure:"variable"`
		Cases    []any         `mapstructure:"cases"`
		Default  domain.Status `mapstructure:"default"`
	}
	if err := Decode(spec.Properties, &p); err != nil {
		return nil, err
	}
	v, err := Variable(b, p.Variable)
	if err != nil {
		return nil, err
	}
	n := &nodes.Switch{Variable: v, Enums: b.Enums(), Default: p.Default}
	for _, raw := range p.Cases {
		c, err := Coerce(v.Type(), raw)
		if err != nil {
			return nil, err
		}
		n.Cases = append(n.Cases, c)
	}
	return n, nil
}

func newBranch(_ Builder, spec Spec) (tree.Node, error) {
	var p struct {
		RequiresAll bool   `mapstructure:"requires_all"`
		OnTrue      string `mapstructure:"on_true"`
		OnFalse     string `mapstructure:"on_false"`
	}
	if err := Decode(spec.Properties, &p); err != nil {
		return nil, err
	}
	return &nodes.Branch{
		Conditions:            spec.Conditions,
		RequiresAllConditions: p.RequiresAll,
		TrueID:                p.OnTrue,
		FalseID:               p.OnFalse,
	}, nil
}

func repeat(until domain.Status) Factory {
	return func(_ Builder, spec Spec) (tree.Node, error) {
		var p struct {
			Count int `mapstructure:"count"`
		}
		if err := Decode(spec.Properties, &p); err != nil {
			return nil, err
		}
		return &nodes.Repeat{Count: p.Count, Until: until}, nil
	}
}

func newGuard(_ Builder, spec Spec) (tree.Node, error) {
	var p struct {
		RequiresAll bool `mapstructure:"requires_all"`
	}
	if err := Decode(spec.Properties, &p); err != nil {
		return nil, err
	}
	return &nodes.Guard{Conditions: spec.Conditions, RequiresAllConditions: p.RequiresAll}, nil
}

func newCooldown(_ Builder, spec Spec) (tree.Node, error) {
	var p struct {
		Frames uint64 `mapstructure:"frames"`
	}
	if err := Decode(spec.Properties, &p); err != nil {
		return nil, err
	}
	return &nodes.Cooldown{Frames: p.Frames}, nil
}

func newStartOnEvent(b Builder, spec Spec) (tree.Node, error) {
	var p struct {
		Channel string   `mapstructure:"channel"`
		Targets []string `mapstructure:"targets"`
		Mode    string   `mapstructure:"mode"`
	}
	if err := Decode(spec.Properties, &p); err != nil {
		return nil, err
	}
	mode, ok := nodes.ParseTriggerMode(p.Mode)
	if !ok {
		return nil, fmt.Errorf("unknown trigger mode %q", p.Mode)
	}
	ch, err := Variable(b, p.Channel)
	if err != nil {
		return nil, err
	}
	targets, err := Variables(b, p.Targets)
	if err != nil {
		return nil, err
	}
	return &nodes.StartOnEvent{Channel: ch, Targets: targets, Mode: mode}, nil
}

func newWaitFrames(_ Builder, spec Spec) (tree.Node, error) {
	var p struct {
		Frames uint64 `mapstructure:"frames"`
	}
	if err := Decode(spec.Properties, &p); err != nil {
		return nil, err
	}
	return &nodes.WaitFrames{Frames: p.Frames}, nil
}

func newWait(_ Builder, spec Spec) (tree.Node, error) {
	var p struct {
		Duration time.Duration `mapstructure:"duration"`
	}
	if err := Decode(spec.Properties, &p); err != nil {
		return nil, err
	}
	return &nodes.Wait{Duration: p.Duration}, nil
}

func newSetVariable(b Builder, spec Spec) (tree.Node, error) {
	var p struct {
		Target string `mapstructure:"target"`
		Value  any    `mapstructure:"value"`
		Source string `mapstructure:"source"`
	}
	if err := Decode(spec.Properties, &p); err != nil {
		return nil, err
	}
	target, err := Variable(b, p.Target)
	if err != nil {
		return nil, err
	}
	source, err := OptionalVariable(b, p.Source)
	if err != nil {
		return nil, err
	}
	n := &nodes.SetVariable{Target: target, Source: source}
	if source == nil {
		if n.Value, err = Coerce(target.Type(), p.Value); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func newLog(b Builder, spec Spec) (tree.Node, error) {
	var p struct {
		Message   string     `mapstructure:"message"`
		Level     slog.Level `mapstructure:"level"`
		Variables []string   `mapstructure:"variables"`
	}
	if err := Decode(spec.Properties, &p); err != nil {
		return nil, err
	}
	vars, err := Variables(b, p.Variables)
	if err != nil {
		return nil, err
	}
	return &nodes.Log{Message: p.Message, Level: p.Level, Variables: vars}, nil
}

func newSendEvent(b Builder, spec Spec) (tree.Node, error) {
	var p struct {
		Channel string `mapstructure:"channel"`
		Args    []any  `mapstructure:"args"`
	}
	if err := Decode(spec.Properties, &p); err != nil {
		return nil, err
	}
	ch, err := Variable(b, p.Channel)
	if err != nil {
		return nil, err
	}
	n := &nodes.SendEvent{Channel: ch}
	for _, raw := range p.Args {
		arg, err := Resolve(b, raw)
		if err != nil {
			return nil, err
		}
		n.Args = append(n.Args, arg)
	}
	return n, nil
}

func newCallAction(b Builder, spec Spec) (tree.Node, error) {
	var p struct {
		Action string         `mapstructure:"action"`
		Args   map[string]any `mapstructure:"args"`
	}
	if err := Decode(spec.Properties, &p); err != nil {
		return nil, err
	}
	if p.Action == "" {
		return nil, errors.New("call_action requires an action name")
	}
	fn, ok := b.Action(p.Action)
	if !ok {
		b.Logger().Warn("action is not registered", "node", spec.ID, "action", p.Action)
	}
	n := &nodes.CallAction{Name: p.Action, Func: fn, Args: make(map[string]any, len(p.Args))}
	for k, raw := range p.Args {
		arg, err := Resolve(b, raw)
		if err != nil {
			return nil, err
		}
		n.Args[k] = arg
	}
	return n, nil
}

type subgraphProps struct {
	Subgraph  string   `mapstructure:"subgraph"`
	Variable  string   `mapstructure:"variable"`
	Overrides []string `mapstructure:"overrides"`
}

func newRunSubgraph(b Builder, spec Spec) (tree.Node, error) {
	var p subgraphProps
	if err := Decode(spec.Properties, &p); err != nil {
		return nil, err
	}
	if p.Variable != "" {
		return nil, errors.New("run_subgraph takes a fixed subgraph; use run_subgraph_dynamic")
	}
	return buildSubgraph(b, p)
}

func newRunSubgraphDynamic(b Builder, spec Spec) (tree.Node, error) {
	var p subgraphProps
	if err := Decode(spec.Properties, &p); err != nil {
		return nil, err
	}
	return buildSubgraph(b, p)
}

func buildSubgraph(b Builder, p subgraphProps) (tree.Node, error) {
	n := &nodes.RunSubgraphDynamic{}
	if p.Subgraph != "" {
		src, err := b.Subgraph(p.Subgraph)
		if err != nil {
			return nil, err
		}
		n.Source = src
	}
	if p.Variable != "" {
		v, err := Typed[tree.Source](b, p.Variable)
		if err != nil {
			return nil, err
		}
		n.Subgraph = v
	}
	if n.Source == nil && n.Subgraph == nil {
		return nil, errors.New("subgraph or variable is required")
	}
	overrides, err := Variables(b, p.Overrides)
	if err != nil {
		return nil, err
	}
	n.Overrides = overrides
	return n, nil
}

func newCompare(b Builder, props map[string]any) (tree.Condition, error) {
	var p struct {
		Variable string `mapstructure:"variable"`
		Operator string `mapstructure:"operator"`
		Value    any    `mapstructure:"value"`
		Other    string `mapstructure:"other"`
	}
	if err := Decode(props, &p); err != nil {
		return nil, err
	}
	op, err := nodes.ParseOperator(p.Operator)
	if err != nil {
		return nil, err
	}
	v, err := Variable(b, p.Variable)
	if err != nil {
		return nil, err
	}
	other, err := OptionalVariable(b, p.Other)
	if err != nil {
		return nil, err
	}
	value := p.Value
	if value != nil {
		// Enum members and other non-convertible literals are compared as written.
		if c, err := Coerce(v.Type(), value); err == nil {
			value = c
		}
	}
	return &nodes.CompareVariable{Variable: v, Operator: op, Value: value, Other: other, Logger: b.Logger()}, nil
}

func newIsTrue(b Builder, props map[string]any) (tree.Condition, error) {
	var p struct {
		Variable string `mapstructure:"variable"`
		Negate   bool   `mapstructure:"negate"`
	}
	if err := Decode(props, &p); err != nil {
		return nil, err
	}
	v, err := Variable(b, p.Variable)
	if err != nil {
		return nil, err
	}
	return &nodes.VariableIsTrue{Variable: v, Negate: p.Negate}, nil
}

func newChanged(b Builder, props map[string]any) (tree.Condition, error) {
	var p struct {
		Variable string `mapstructure:"variable"`
	}
	if err := Decode(props, &p); err != nil {
		return nil, err
	}
	v, err := Variable(b, p.Variable)
	if err != nil {
		return nil, err
	}
	return &nodes.VariableChanged{Variable: v}, nil
}

func newExpression(b Builder, props map[string]any) (tree.Condition, error) {
	var p struct {
		Expression string `mapstructure:"expression"`
	}
	if err := Decode(props, &p); err != nil {
		return nil, err
	}
	return nodes.NewExpression(p.Expression, b.Blackboard(), b.Logger())
}
