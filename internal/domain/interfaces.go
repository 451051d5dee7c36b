package domain

// Identified is implemented by every item held in a paginated collection.
// The id is used to drop duplicates that reappear on later pages.
type Identified interface {
	GetID() string
}

// SessionManager ends the local session when the backend rejects it.
// The session store implements it; the gateway only calls it.
type SessionManager interface {
	Logout() error
}

// Navigator moves the UI to the login screen.
type Navigator interface {
	NavigateToLogin(reason string)
}

// MessageKind classifies a user notification.
type MessageKind string

const (
	MessageInfo    MessageKind = "info"
	MessageSuccess MessageKind = "success"
	MessageError   MessageKind = "error"
)

// Notifier posts transient user-facing messages.
type Notifier interface {
	Show(kind MessageKind, text string) string
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(reason string)

func (f NavigatorFunc) NavigateToLogin(reason string) { f(reason) }

// NoOpNavigator ignores navigation requests (for tests and headless use).
type NoOpNavigator struct{}

func (NoOpNavigator) NavigateToLogin(string) {}
