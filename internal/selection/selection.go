// Package selection holds the process-wide "currently open note".
//
// There is exactly one Controller per process. It is constructed at startup
// and passed by reference to every view that reads or writes the selection.
package selection

import (
	"sync"
	"sync/atomic"
)

// Listener receives the new selection. ok is false when the selection was cleared.
type Listener func(id string, ok bool)

type subscriber struct {
	fn     Listener
	active atomic.Bool
}

type change struct {
	id string
	ok bool
}

// Controller is the single source of truth for the selected note.
//
// Any caller may write; the last write wins and Current reflects it as soon
// as the write returns. Listeners run synchronously on the writing goroutine
// after the write, in subscription order, and only when the value actually
// changes. A notification raised while another round is delivering (from
// inside a listener, or from a second goroutine) joins that round, so
// listeners never recurse into each other and see changes in write order.
// There is no existence check: callers only offer notes that exist.
type Controller struct {
	mu          sync.Mutex
	id          string
	ok          bool
	subs        []*subscriber
	pending     []change
	dispatching bool
	closed      bool
}

// New returns a controller with nothing selected.
func New() *Controller {
	return &Controller{}
}

// Select makes id the current note.
func (c *Controller) Select(id string) {
	c.write(change{id: id, ok: true}, nil)
}

// Clear drops the selection.
func (c *Controller) Clear() {
	c.write(change{}, nil)
}

// Forget clears the selection only if it currently points at id. The
// repository watcher calls it when a note is deleted.
func (c *Controller) Forget(id string) {
	c.write(change{}, func(cur change) bool { return cur.ok && cur.id == id })
}

// Current returns the selected note id.
func (c *Controller) Current() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id, c.ok
}

// Subscribe registers fn and returns a func that removes it. After the
// returned func runs, fn is never called again.
func (c *Controller) Subscribe(fn Listener) (unsubscribe func()) {
	s := &subscriber{fn: fn}
	s.active.Store(true)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return func() {}
	}
	c.subs = append(c.subs, s)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.active.Store(false)
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, cur := range c.subs {
				if cur == s {
					c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
					break
				}
			}
		})
	}
}

// Listeners returns the number of registered listeners.
func (c *Controller) Listeners() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Close drops every listener and ignores further writes. Used on teardown
// and for test isolation.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.subs {
		s.active.Store(false)
	}
	c.subs = nil
	c.pending = nil
	c.closed = true
}

// write applies ch when cond accepts the current value. The value changes
// under the lock; only the notification may be deferred to a running round.
func (c *Controller) write(ch change, cond func(cur change) bool) {
	c.mu.Lock()
	cur := change{id: c.id, ok: c.ok}
	if c.closed || ch == cur || (cond != nil && !cond(cur)) {
		c.mu.Unlock()
		return
	}
	c.id, c.ok = ch.id, ch.ok
	c.pending = append(c.pending, ch)
	if c.dispatching {
		c.mu.Unlock()
		return
	}
	c.dispatching = true

	for len(c.pending) > 0 && !c.closed {
		next := c.pending[0]
		c.pending = c.pending[1:]
		subs := append([]*subscriber(nil), c.subs...)

		c.mu.Unlock()
		for _, s := range subs {
			if s.active.Load() {
				s.fn(next.id, next.ok)
			}
		}
		c.mu.Lock()
	}

	c.dispatching = false
	c.mu.Unlock()
}
