package expansion

// State holds whether the online peer list is shown. It starts collapsed and
// only changes through Toggle.
type State struct {
	expanded bool
}

func (s *State) Toggle() bool {
	s.expanded = !s.expanded
	return s.expanded
}

func (s *State) Expanded() bool {
	return s.expanded
}
