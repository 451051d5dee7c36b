package scroll

import "sync"

// Sentinel is an Observer driven by the UI: the view reports whether the end
// of the list is on screen. Like an intersection observer it fires on Observe
// when the sentinel is already visible, and on every hidden -> visible edge.
type Sentinel struct {
	mu        sync.Mutex
	visible   bool
	onVisible func()
}

var _ Observer = (*Sentinel)(nil)

func (s *Sentinel) Observe(onVisible func()) {
	s.mu.Lock()
	s.onVisible = onVisible
	visible := s.visible
	s.mu.Unlock()

	if visible && onVisible != nil {
		onVisible()
	}
}

func (s *Sentinel) Disconnect() {
	s.mu.Lock()
	s.onVisible = nil
	s.mu.Unlock()
}

// SetVisible records the sentinel's visibility.
func (s *Sentinel) SetVisible(visible bool) {
	s.mu.Lock()
	edge := visible && !s.visible
	s.visible = visible
	fn := s.onVisible
	s.mu.Unlock()

	if edge && fn != nil {
		fn()
	}
}

// Visible reports the last recorded visibility.
func (s *Sentinel) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}
