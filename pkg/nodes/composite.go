package nodes

import (
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/tree"
)

// Sequence runs its children in order until one fails.
// With no children it succeeds immediately.
type Sequence struct {
	tree.Composite
	index int
}

func (s *Sequence) OnStart() domain.Status {
	s.index = 0
	return s.advance(s.Children())
}

func (s *Sequence) OnUpdate() domain.Status {
	children := s.Children()
	if s.index >= len(children) {
		return domain.StatusSuccess
	}
	switch children[s.index].NodeBase().Status() {
	case domain.StatusSuccess:
		s.index++
		return s.advance(children)
	case domain.StatusFailure:
		return domain.StatusFailure
	default:
		return domain.StatusWaiting
	}
}

func (s *Sequence) advance(children []tree.Node) domain.Status {
	for ; s.index < len(children); s.index++ {
		switch s.Graph().StartNode(children[s.index]) {
		case domain.StatusSuccess:
		case domain.StatusFailure:
			return domain.StatusFailure
		default:
			return domain.StatusWaiting
		}
	}
	return domain.StatusSuccess
}

func (s *Sequence) OnEnd() {}

func (s *Sequence) OnSerialize() map[string]any {
	return map[string]any{"index": s.index}
}

func (s *Sequence) OnDeserialize(data map[string]any) error {
	var st struct {
		Index int `json:"index"`
	}
	if err := decodeState(data, &st); err != nil {
		return err
	}
	s.index = st.Index
	return nil
}

// Selector runs its children in order until one succeeds.
// With no children it fails immediately: there is nothing to select.
type Selector struct {
	tree.Composite
	index int
}

func (s *Selector) OnStart() domain.Status {
	s.index = 0
	return s.advance(s.Children())
}

func (s *Selector) OnUpdate() domain.Status {
	children := s.Children()
	if s.index >= len(children) {
		return domain.StatusFailure
	}
	switch children[s.index].NodeBase().Status() {
	case domain.StatusFailure:
		s.index++
		return s.advance(children)
	case domain.StatusSuccess:
		return domain.StatusSuccess
	default:
		return domain.StatusWaiting
	}
}

func (s *Selector) advance(children []tree.Node) domain.Status {
	for ; s.index < len(children); s.index++ {
		switch s.Graph().StartNode(children[s.index]) {
		case domain.StatusFailure:
		case domain.StatusSuccess:
			return domain.StatusSuccess
		default:
			return domain.StatusWaiting
		}
	}
	return domain.StatusFailure
}

func (s *Selector) OnEnd() {}

func (s *Selector) OnSerialize() map[string]any {
	return map[string]any{"index": s.index}
}

func (s *Selector) OnDeserialize(data map[string]any) error {
	var st struct {
		Index int `json:"index"`
	}
	if err := decodeState(data, &st); err != nil {
		return err
	}
	s.index = st.Index
	return nil
}

// ParallelPolicy decides when a Parallel composite completes.
type ParallelPolicy int

const (
	// ParallelAny completes with the first terminal child result.
	ParallelAny ParallelPolicy = iota
	// ParallelAnySuccess succeeds on the first success and fails once all children failed.
	ParallelAnySuccess
	// ParallelAll fails on the first failure and succeeds once all children succeeded.
	ParallelAll
)

func (p ParallelPolicy) String() string {
	switch p {
	case ParallelAny:
		return "any"
	case ParallelAnySuccess:
		return "any_success"
	case ParallelAll:
		return "all"
	}
	return "unknown"
}

// Parallel starts all children and aggregates their results under Policy.
// Children still in progress when the result is decided are ended.
//
// With no children, ParallelAny and ParallelAll succeed and ParallelAnySuccess fails.
type Parallel struct {
	tree.Composite
	Policy ParallelPolicy
}

func (p *Parallel) OnStart() domain.Status {
	children := p.Children()
	for _, c := range children {
		p.Graph().StartNode(c)
		if s := p.evaluate(children); s.IsTerminal() {
			return s
		}
	}
	return p.evaluate(children)
}

func (p *Parallel) OnUpdate() domain.Status {
	return p.evaluate(p.Children())
}

func (p *Parallel) evaluate(children []tree.Node) domain.Status {
	var succeeded, failed int
	for _, c := range children {
		s := c.NodeBase().Status()
		switch s {
		case domain.StatusSuccess:
			succeeded++
		case domain.StatusFailure:
			failed++
		}
		if p.Policy == ParallelAny && s.IsTerminal() {
			return s
		}
	}
	n := len(children)
	switch p.Policy {
	case ParallelAnySuccess:
		if succeeded > 0 {
			return domain.StatusSuccess
		}
		if failed == n {
			return domain.StatusFailure
		}
	case ParallelAll:
		if failed > 0 {
			return domain.StatusFailure
		}
		if succeeded == n {
			return domain.StatusSuccess
		}
	default:
		if n == 0 {
			return domain.StatusSuccess
		}
	}
	return domain.StatusWaiting
}

func (p *Parallel) OnEnd() {}
