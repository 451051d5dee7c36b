package notify

import (
	"errors"
	"sync"

	"github.com/mmcdole/cinesync/internal/domain"
)

// ErrNoLogoutHandler is returned when the registry is used before a session
// manager registered itself.
var ErrNoLogoutHandler = errors.New("no logout handler registered")

// LogoutRegistry is a single-slot cell holding the current session manager.
// The gateway is built with the registry; the session store registers itself
// once it exists, which breaks the gateway <-> session construction cycle.
type LogoutRegistry struct {
	mu      sync.RWMutex
	handler domain.SessionManager
}

var _ domain.SessionManager = (*LogoutRegistry)(nil)

// Register replaces the current handler.
func (r *LogoutRegistry) Register(h domain.SessionManager) {
	r.mu.Lock()
	r.handler = h
	r.mu.Unlock()
}

// Handler returns the registered handler or nil.
func (r *LogoutRegistry) Handler() domain.SessionManager {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handler
}

// Logout forwards to the registered handler.
func (r *LogoutRegistry) Logout() error {
	h := r.Handler()
	if h == nil {
		return ErrNoLogoutHandler
	}
	return h.Logout()
}
