package checker

import "sync"

// Supervisor tracks the set of logins with an in-flight verification. It is
// process-wide state with no persistence: empty at start, entries removed
// when sessions terminate. Safe for concurrent use.
type Supervisor struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewSupervisor() *Supervisor {
	return &Supervisor{active: make(map[string]struct{})}
}

// Admit reserves the login for a new session. It returns false, admitting
// nothing, when a session for that login is already active.
func (s *Supervisor) Admit(login string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[login]; ok {
		return false
	}
	s.active[login] = struct{}{}
	return true
}

// Release frees the login's slot. Called exactly once per admitted session.
func (s *Supervisor) Release(login string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, login)
}

// IsActive reports whether a verification for the login is in flight.
// Listing operations use this to mark records as pending.
func (s *Supervisor) IsActive(login string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[login]
	return ok
}
