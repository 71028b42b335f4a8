package nodes

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/arbor/pkg/blackboard"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/event"
	"github.com/aretw0/arbor/pkg/tree"
)

// WaitFrames succeeds once Frames frames have elapsed since it started.
type WaitFrames struct {
	tree.Action
	Frames uint64

	target uint64
}

func (w *WaitFrames) OnStart() domain.Status {
	w.target = w.Clock().Frame() + w.Frames
	return w.OnUpdate()
}

func (w *WaitFrames) OnUpdate() domain.Status {
	if w.Clock().Frame() >= w.target {
		return domain.StatusSuccess
	}
	return domain.StatusRunning
}

func (w *WaitFrames) OnEnd() {}

// Remaining returns the number of frames left to wait.
func (w *WaitFrames) Remaining() uint64 {
	return remainingFrames(w.Clock(), w.target)
}

// The absolute target frame is meaningless after a load; the remaining
// count is persisted instead.
func (w *WaitFrames) OnSerialize() map[string]any {
	return map[string]any{"remaining": w.Remaining()}
}

func (w *WaitFrames) OnDeserialize(data map[string]any) error {
	var st struct {
		Remaining uint64 `json:"remaining"`
	}
	if err := decodeState(data, &st); err != nil {
		return err
	}
	w.target = w.Clock().Frame() + st.Remaining
	return nil
}

// Wait succeeds once Duration of clock time has elapsed since it started.
type Wait struct {
	tree.Action
	Duration time.Duration

	deadline time.Duration
}

func (w *Wait) OnStart() domain.Status {
	w.deadline = w.Clock().Elapsed() + w.Duration
	return w.OnUpdate()
}

func (w *Wait) OnUpdate() domain.Status {
	if w.Clock().Elapsed() >= w.deadline {
		return domain.StatusSuccess
	}
	return domain.StatusRunning
}

func (w *Wait) OnEnd() {}

func (w *Wait) OnSerialize() map[string]any {
	remaining := w.deadline - w.Clock().Elapsed()
	if remaining < 0 {
		remaining = 0
	}
	return map[string]any{"remaining": remaining.String()}
}

func (w *Wait) OnDeserialize(data map[string]any) error {
	var st struct {
		Remaining time.Duration `json:"remaining"`
	}
	if err := decodeState(data, &st); err != nil {
		return err
	}
	w.deadline = w.Clock().Elapsed() + st.Remaining
	return nil
}

// SetVariable assigns Value, or the current value of Source when set, to Target.
type SetVariable struct {
	tree.Action
	Target blackboard.Cell
	Value  any
	Source blackboard.Cell
}

func (s *SetVariable) OnStart() domain.Status {
	if s.Target == nil {
		return fail(&s.Base, "set variable has no target")
	}
	value := s.Value
	if s.Source != nil {
		value = s.Source.ObjectValue()
	}
	if err := s.Target.SetObjectValue(value); err != nil {
		return fail(&s.Base, "set variable failed", "variable", s.Target.Name(), "err", err)
	}
	return domain.StatusSuccess
}

func (s *SetVariable) OnUpdate() domain.Status { return domain.StatusSuccess }
func (s *SetVariable) OnEnd()                  {}

// Log reports Message to the diagnostics sink with the current value of each variable.
type Log struct {
	tree.Action
	Message   string
	Level     slog.Level
	Variables []blackboard.Cell
}

func (l *Log) OnStart() domain.Status {
	args := make([]any, 0, 2*len(l.Variables))
	for _, v := range l.Variables {
		if v != nil {
			args = append(args, v.Name(), v.ObjectValue())
		}
	}
	l.Logger().Log(l.Context(), l.Level, l.Message, args...)
	return domain.StatusSuccess
}

func (l *Log) OnUpdate() domain.Status { return domain.StatusSuccess }
func (l *Log) OnEnd()                  {}

// SendEvent sends one message on the channel held by Channel. Args entries that
// are blackboard cells contribute their current value.
type SendEvent struct {
	tree.Action
	Channel blackboard.Cell
	Args    []any
}

func (s *SendEvent) OnStart() domain.Status {
	if s.Channel == nil {
		return fail(&s.Base, "send event has no channel variable")
	}
	ch, ok := event.From(s.Channel.ObjectValue())
	if !ok {
		return fail(&s.Base, "channel variable is not assigned", "variable", s.Channel.Name())
	}
	if err := ch.SendEventMessage(resolveArgs(s.Args)...); err != nil {
		return fail(&s.Base, "event not sent", "channel", ch.Name(), "err", err)
	}
	return domain.StatusSuccess
}

func (s *SendEvent) OnUpdate() domain.Status { return domain.StatusSuccess }
func (s *SendEvent) OnEnd()                  {}

func resolveArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		if c, ok := a.(blackboard.Cell); ok {
			out[i] = c.ObjectValue()
			continue
		}
		out[i] = a
	}
	return out
}

// ActionCall describes one invocation of an external action.
type ActionCall struct {
	Node *tree.Base
	Name string
	// Args holds the configured arguments, with blackboard cells replaced by their current value.
	Args map[string]any
	// First is true for the invocation made when the node starts.
	First bool
}

// ActionFunc performs an opaque side effect such as moving or animating the agent.
// It runs synchronously within the tick; returning Running calls it again next tick.
type ActionFunc func(ctx context.Context, call ActionCall) (domain.Status, error)

// CallAction invokes an ActionFunc until it reports a terminal status.
type CallAction struct {
	tree.Action
	Name string
	Func ActionFunc
	Args map[string]any
}

func (c *CallAction) OnStart() domain.Status  { return c.call(true) }
func (c *CallAction) OnUpdate() domain.Status { return c.call(false) }
func (c *CallAction) OnEnd()                  {}

func (c *CallAction) call(first bool) domain.Status {
	if c.Func == nil {
		return fail(&c.Base, "action is not registered", "action", c.Name)
	}
	args := make(map[string]any, len(c.Args))
	for k, v := range c.Args {
		if cell, ok := v.(blackboard.Cell); ok {
			v = cell.ObjectValue()
		}
		args[k] = v
	}
	status, err := c.Func(c.Context(), ActionCall{Node: &c.Base, Name: c.Name, Args: args, First: first})
	if err != nil {
		return fail(&c.Base, "action failed", "action", c.Name, "err", err)
	}
	switch status {
	case domain.StatusSuccess, domain.StatusFailure, domain.StatusRunning:
		return status
	default:
		return fail(&c.Base, "action returned an invalid status", "action", c.Name, "status", status)
	}
}
