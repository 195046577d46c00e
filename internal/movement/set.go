package movement

import "sync"

// GovernorSet keys one Governor per combat so transports sharing a combat
// share its tracked totals.
type GovernorSet struct {
	mu        sync.Mutex
	governors map[string]*Governor
}

func NewGovernorSet() *GovernorSet {
	return &GovernorSet{governors: map[string]*Governor{}}
}

// For returns the combat's governor, creating it on first use.
func (s *GovernorSet) For(combatCode string) *Governor {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.governors[combatCode]
	if !ok {
		g = NewGovernor()
		s.governors[combatCode] = g
	}
	return g
}

// Drop forgets a combat's governor, e.g. when the combat ends.
func (s *GovernorSet) Drop(combatCode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.governors, combatCode)
}
