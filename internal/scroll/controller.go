// Package scroll loads the next page of a collection when a sentinel at the
// end of the list becomes visible.
package scroll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Observer reports when a sentinel becomes visible. Observe replaces any
// previous callback; Disconnect drops it.
type Observer interface {
	Observe(onVisible func())
	Disconnect()
}

// FetchFunc loads the next page.
type FetchFunc func(ctx context.Context) error

// Options tunes a Controller.
type Options struct {
	// ShouldListen decides whether to keep observing after a fetch, e.g.
	// "collection has more" or "filtered results are still scarce".
	// nil means always.
	ShouldListen func() bool

	// OnSettled runs after every fetch, with its error. A failed fetch leaves
	// the observer disconnected until Refresh.
	OnSettled func(err error)

	Logger *slog.Logger
}

// Controller triggers at most one fetch at a time per sentinel.
type Controller struct {
	observer     Observer
	fetch        FetchFunc
	shouldListen func() bool
	onSettled    func(error)
	logger       *slog.Logger

	mu       sync.Mutex
	running  bool
	fetching bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewController pairs an observer with a fetch function.
func NewController(observer Observer, fetch FetchFunc, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	shouldListen := opts.ShouldListen
	if shouldListen == nil {
		shouldListen = func() bool { return true }
	}
	return &Controller{
		observer:     observer,
		fetch:        fetch,
		shouldListen: shouldListen,
		onSettled:    opts.OnSettled,
		logger:       logger,
	}
}

// Start begins observing. Calling Start on a running controller is a no-op.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.listen()
}

// Stop cancels an in-flight fetch, waits for it to settle and disconnects
// the observer.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.cancel()
	c.mu.Unlock()

	// A settling fetch may re-listen, so disconnect after it has returned.
	c.wg.Wait()
	c.observer.Disconnect()
}

// Fetching reports whether a triggered fetch is in flight.
func (c *Controller) Fetching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetching
}

// Refresh re-evaluates ShouldListen, e.g. after filters changed.
func (c *Controller) Refresh() {
	c.mu.Lock()
	idle := c.running && !c.fetching
	c.mu.Unlock()
	if idle {
		c.listen()
	}
}

func (c *Controller) listen() {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if running && c.shouldListen() {
		c.observer.Observe(c.trigger)
		return
	}
	c.observer.Disconnect()
}

func (c *Controller) trigger() {
	c.mu.Lock()
	if !c.running || c.fetching {
		c.mu.Unlock()
		return
	}
	c.fetching = true
	ctx := c.ctx
	c.wg.Add(1)
	c.mu.Unlock()

	c.observer.Disconnect()
	go c.run(ctx)
}

func (c *Controller) run(ctx context.Context) {
	defer c.wg.Done()

	err := c.fetch(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Debug("scroll fetch failed", "error", err)
	}

	c.mu.Lock()
	c.fetching = false
	running := c.running
	c.mu.Unlock()

	if c.onSettled != nil {
		c.onSettled(err)
	}
	if running && err == nil {
		c.listen()
	}
}
