package actorutil

import (
	"github.com/asynkron/protoactor-go/actor"
)

// ActorWithStates wraps a Behavior and remembers the name of the active
// state, so health checks can report it.
type ActorWithStates struct {
	Behavior actor.Behavior
	stack    []string
}

type ActorState interface {
	Name() string
	Receive(actor.Context)
}

func (s *ActorWithStates) Become(state ActorState) {
	s.stack = []string{state.Name()}
	s.Behavior.Become(state.Receive)
}

func (s *ActorWithStates) BecomeStacked(state ActorState) {
	s.stack = append(s.stack, state.Name())
	s.Behavior.BecomeStacked(state.Receive)
}

func (s *ActorWithStates) UnbecomeStacked() {
	if len(s.stack) > 0 {
		s.stack = s.stack[:len(s.stack)-1]
	}
	s.Behavior.UnbecomeStacked()
}

func (s *ActorWithStates) StateName() string {
	if len(s.stack) == 0 {
		return ""
	}
	return s.stack[len(s.stack)-1]
}
