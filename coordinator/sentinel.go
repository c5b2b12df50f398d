package coordinator

import "sync"

// Sentinel turns a visibility signal into next-page requests. Only a
// transition from hidden to visible requests a page, so a signal that stays
// true does not cause repeated fetches.
type Sentinel struct {
	coordinator *Coordinator

	mu      sync.Mutex
	visible bool
}

// NewSentinel returns a hidden sentinel bound to c.
func NewSentinel(c *Coordinator) *Sentinel {
	return &Sentinel{coordinator: c}
}

// SetVisible records the current visibility and reports whether a page fetch
// was started.
func (s *Sentinel) SetVisible(visible bool) bool {
	s.mu.Lock()
	rising := visible && !s.visible
	s.visible = visible
	s.mu.Unlock()

	if !rising {
		return false
	}
	return s.coordinator.RequestNextPage()
}

// Visible reports the last recorded visibility.
func (s *Sentinel) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}
