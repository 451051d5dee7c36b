// Package notify holds the transient user-message queue and the logout
// registry that lets the request gateway end a session without importing the
// session store.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/cinesync/internal/domain"
)

const defaultTTL = 4 * time.Second

// Message is a single user-facing notification.
type Message struct {
	ID        string
	Kind      domain.MessageKind
	Text      string
	TTL       time.Duration
	CreatedAt time.Time
}

// Bus is an ephemeral notification queue. Every message removes itself after
// its TTL; Remove dismisses it early.
type Bus struct {
	ttl    time.Duration
	logger *slog.Logger

	mu          sync.Mutex
	messages    []Message
	timers      map[string]*time.Timer
	subscribers []func([]Message)
}

var _ domain.Notifier = (*Bus)(nil)

// NewBus creates a bus whose messages expire after ttl (default 4s).
func NewBus(ttl time.Duration, logger *slog.Logger) *Bus {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		ttl:    ttl,
		logger: logger,
		timers: make(map[string]*time.Timer),
	}
}

// Show posts a message with the bus default TTL and returns its id.
func (b *Bus) Show(kind domain.MessageKind, text string) string {
	return b.ShowWithTTL(kind, text, b.ttl)
}

// ShowWithTTL posts a message that expires after ttl.
func (b *Bus) ShowWithTTL(kind domain.MessageKind, text string, ttl time.Duration) string {
	if ttl <= 0 {
		ttl = b.ttl
	}
	msg := Message{
		ID:        uuid.NewString(),
		Kind:      kind,
		Text:      text,
		TTL:       ttl,
		CreatedAt: time.Now(),
	}

	b.mu.Lock()
	b.messages = append(b.messages, msg)
	b.timers[msg.ID] = time.AfterFunc(ttl, func() { b.Remove(msg.ID) })
	snapshot, subs := b.snapshotLocked()
	b.mu.Unlock()

	b.logger.Debug("message shown", "id", msg.ID, "kind", kind, "text", text)
	notifyAll(subs, snapshot)
	return msg.ID
}

// Remove dismisses a message. Unknown or already-expired ids are ignored.
func (b *Bus) Remove(id string) {
	b.mu.Lock()
	idx := -1
	for i, m := range b.messages {
		if m.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		b.mu.Unlock()
		return
	}
	b.messages = append(b.messages[:idx], b.messages[idx+1:]...)
	if t, ok := b.timers[id]; ok {
		t.Stop()
		delete(b.timers, id)
	}
	snapshot, subs := b.snapshotLocked()
	b.mu.Unlock()

	notifyAll(subs, snapshot)
}

// Messages returns the live messages in the order they were shown.
func (b *Bus) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.messages...)
}

// Subscribe registers fn to receive a snapshot after every change.
// fn runs outside the bus lock and must not block.
func (b *Bus) Subscribe(fn func([]Message)) {
	b.mu.Lock()
	b.subscribers = append(b.subscribers, fn)
	b.mu.Unlock()
}

// Close stops all pending expiry timers.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
}

func (b *Bus) snapshotLocked() ([]Message, []func([]Message)) {
	return append([]Message(nil), b.messages...), append(([]func([]Message))(nil), b.subscribers...)
}

func notifyAll(subs []func([]Message), snapshot []Message) {
	for _, fn := range subs {
		fn(snapshot)
	}
}
