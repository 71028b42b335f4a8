package nodes

import (
	"github.com/aretw0/arbor/pkg/blackboard"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/event"
	"github.com/aretw0/arbor/pkg/tree"
)

// TriggerMode decides what StartOnEvent does with messages.
type TriggerMode int

const (
	// TriggerDefault ignores messages received while the child runs.
	TriggerDefault TriggerMode = iota
	// TriggerRestart aborts the running child and restarts it.
	TriggerRestart
	// TriggerOnce handles the first message only, then completes with the child.
	TriggerOnce
	// TriggerQueue runs the child once per message, in order of arrival.
	TriggerQueue
)

var triggerModes = map[string]TriggerMode{
	"default": TriggerDefault,
	"restart": TriggerRestart,
	"once":    TriggerOnce,
	"queue":   TriggerQueue,
}

// ParseTriggerMode converts a mode name; the empty string is TriggerDefault.
func ParseTriggerMode(name string) (TriggerMode, bool) {
	if name == "" {
		return TriggerDefault, true
	}
	m, ok := triggerModes[name]
	return m, ok
}

// StartOnEvent waits for a message on the channel held by Channel, writes the
// payload into Targets and runs its child. Outside TriggerOnce it never
// completes: after the child finishes it waits for the next message.
//
// In TriggerQueue mode payloads are stored on arrival and written silently when
// the message is dispatched; the targets are notified at that point.
type StartOnEvent struct {
	tree.Modifier
	Channel blackboard.Cell
	Targets []blackboard.Cell
	Mode    TriggerMode

	pending  [][]any
	received bool
	running  bool
	cancel   func()
}

func (s *StartOnEvent) OnStart() domain.Status {
	if s.Child() == nil {
		return fail(&s.Base, "start on event has no child")
	}
	s.pending = nil
	s.received = false
	s.running = false
	if !s.subscribe() {
		return domain.StatusFailure
	}
	return domain.StatusRunning
}

func (s *StartOnEvent) subscribe() bool {
	if s.cancel != nil {
		return true
	}
	if s.Channel == nil {
		s.Logger().Error("start on event has no channel variable")
		return false
	}
	ch, ok := event.From(s.Channel.ObjectValue())
	if !ok {
		s.Logger().Error("channel variable is not assigned", "variable", s.Channel.Name())
		return false
	}
	s.cancel = ch.Register(s.receive)
	return true
}

func (s *StartOnEvent) receive(args []any) {
	switch s.Mode {
	case TriggerQueue:
		s.pending = append(s.pending, append([]any(nil), args...))
	case TriggerOnce:
		if s.received {
			return
		}
		s.pending = [][]any{args}
		s.unsubscribe()
	case TriggerDefault:
		if s.running {
			return
		}
		s.pending = [][]any{args}
	case TriggerRestart:
		s.pending = [][]any{args}
	}
	s.received = true
}

func (s *StartOnEvent) OnUpdate() domain.Status {
	child := s.Child()
	if s.running {
		status := child.NodeBase().Status()
		switch {
		case s.Mode == TriggerRestart && len(s.pending) > 0:
			s.Graph().ResetStatus(child)
			s.running = false
		case !status.IsTerminal():
			return domain.StatusRunning
		case s.Mode == TriggerOnce:
			return status
		default:
			s.Graph().ResetStatus(child)
			s.running = false
		}
	}
	if len(s.pending) == 0 {
		return domain.StatusRunning
	}
	s.dispatch(s.pending[0])
	s.pending = s.pending[1:]

	s.running = true
	if status := s.Graph().StartNode(child); status.IsTerminal() && s.Mode == TriggerOnce {
		return status
	}
	return domain.StatusRunning
}

func (s *StartOnEvent) dispatch(args []any) {
	if s.Mode != TriggerQueue {
		event.CreateEventHandler(s.Logger(), s.Targets...)(args)
		return
	}
	event.CreateEventHandlerWithoutNotify(s.Logger(), s.Targets...)(args)
	for _, t := range s.Targets {
		if n, ok := t.(interface{ Notify() }); ok {
			n.Notify()
		}
	}
}

func (s *StartOnEvent) unsubscribe() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *StartOnEvent) OnEnd() { s.unsubscribe() }

// Pending returns the number of messages waiting for dispatch.
func (s *StartOnEvent) Pending() int { return len(s.pending) }

func (s *StartOnEvent) OnSerialize() map[string]any {
	return map[string]any{
		"pending":  s.pending,
		"received": s.received,
		"running":  s.running,
	}
}

// OnDeserialize re-registers on the channel: listener registrations are live
// handles that are not persisted.
func (s *StartOnEvent) OnDeserialize(data map[string]any) error {
	var st struct {
		Pending  [][]any `json:"pending"`
		Received bool    `json:"received"`
		Running  bool    `json:"running"`
	}
	if err := decodeState(data, &st); err != nil {
		return err
	}
	s.pending, s.received, s.running = st.Pending, st.Received, st.Running
	if s.Status().IsInProgress() && !(s.Mode == TriggerOnce && s.received) {
		s.subscribe()
	}
	return nil
}
