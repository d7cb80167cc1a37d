// Package palette implements the command palette: a Closed/Open state
// machine that searches notes while the user types and writes the chosen
// note to the shared selection.
//
// Every query change bumps a generation counter. A search response is
// applied only if it carries the current generation, so the last issued
// query always wins regardless of the order responses arrive in.
package palette

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/cleaan/internal/apperr"
	"github.com/starford/cleaan/internal/hotkey"
	"github.com/starford/cleaan/internal/models"
	"github.com/starford/cleaan/internal/query"
	"github.com/starford/cleaan/internal/selection"
)

// Searcher answers palette queries.
type Searcher interface {
	Search(ctx context.Context, rawQuery string) ([]models.Note, error)
}

// Options configures a Controller.
type Options struct {
	// Hotkey is the global chord that toggles the palette.
	Hotkey string
	// ExitDelay is how long the close animation runs before the query is
	// reset. Zero leaves the reset to an explicit FinishExit call.
	ExitDelay time.Duration
	Logger    *slog.Logger
}

// State is a snapshot of the palette.
type State struct {
	Open        bool              `json:"open"`
	RawQuery    string            `json:"raw_query"`
	Interpreted query.Interpreted `json:"interpreted"`
	Results     []models.Note     `json:"results"`
	Generation  uint64            `json:"generation"`
	Pending     bool              `json:"pending"`
	Highlight   int               `json:"highlight"`
	Err         error             `json:"-"`
	// Version increases with every change.
	Version uint64 `json:"version"`
}

// Listener is notified with a fresh snapshot after every state change.
type Listener func(State)

type subscriber struct {
	fn Listener
}

// Controller owns one palette instance.
type Controller struct {
	search Searcher
	sel    *selection.Controller
	keys   *hotkey.Registry
	chord  string
	km     keyMap
	delay  time.Duration
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	mounted    bool
	base       context.Context
	stopBase   context.CancelFunc
	cancel     context.CancelFunc
	deregister func()
	exitTimer  *time.Timer
	exitEpoch  uint64
	subs       []*subscriber
	inflight   sync.WaitGroup

	// deliverMu keeps notifications in the order the changes were made.
	deliverMu sync.Mutex
}

// New creates an unmounted palette.
func New(search Searcher, sel *selection.Controller, keys *hotkey.Registry, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		search: search,
		sel:    sel,
		keys:   keys,
		chord:  opts.Hotkey,
		km:     newKeyMap(),
		delay:  opts.ExitDelay,
		logger: logger.With(slog.String("component", "palette")),
		state:  State{Results: []models.Note{}},
	}
}

// Mount attaches the global hotkey and enables state updates. Mounting an
// already mounted palette does nothing.
func (c *Controller) Mount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mounted {
		return
	}
	c.mounted = true
	c.base, c.stopBase = context.WithCancel(context.Background())
	c.deregister = c.keys.Register(toggleBinding(c.chord), c.Toggle)
}

// Unmount detaches the hotkey, cancels any outstanding search and the
// pending exit reset, and leaves the palette closed with an empty query. No
// notification happens afterwards until the next Mount.
func (c *Controller) Unmount() {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	c.mounted = false
	dereg := c.deregister
	c.deregister = nil
	c.stopBase()
	c.cancel = nil
	c.stopExitTimerLocked()
	c.resetLocked()
	c.mu.Unlock()

	dereg()
}

// Mounted reports whether the palette is live.
func (c *Controller) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted
}

// Wait blocks until every search goroutine started so far has returned.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// Subscribe registers fn for change notifications. Notifications are
// delivered one at a time in change order, so fn must not call back into
// the controller on the delivering goroutine.
func (c *Controller) Subscribe(fn Listener) (unsubscribe func()) {
	s := &subscriber{fn: fn}
	c.mu.Lock()
	c.subs = append(c.subs, s)
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, cur := range c.subs {
			if cur == s {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Toggle flips between Open and Closed. The global hotkey calls it.
func (c *Controller) Toggle() {
	c.mu.Lock()
	open := c.state.Open
	c.mu.Unlock()
	if open {
		c.Close()
	} else {
		c.Open()
	}
}

// Open shows the palette. A re-open before the exit reset ran keeps the
// previous query and cancels the reset.
func (c *Controller) Open() {
	c.mu.Lock()
	if !c.mounted || c.state.Open {
		c.mu.Unlock()
		return
	}
	c.state.Open = true
	c.stopExitTimerLocked()
	c.commit()
}

// Close hides the palette. Escape, an outside click and choosing a note all
// end here. The query survives until the exit animation finishes.
func (c *Controller) Close() {
	c.mu.Lock()
	if !c.mounted || !c.state.Open {
		c.mu.Unlock()
		return
	}
	c.state.Open = false
	c.stopExitTimerLocked()
	if c.delay > 0 {
		epoch := c.exitEpoch
		c.exitTimer = time.AfterFunc(c.delay, func() { c.finishExit(epoch) })
	}
	c.commit()
}

// FinishExit is called once the close animation completed. It clears the
// query and results if the palette is still closed.
func (c *Controller) FinishExit() {
	c.mu.Lock()
	c.finishExitLocked()
}

func (c *Controller) finishExit(epoch uint64) {
	c.mu.Lock()
	if epoch != c.exitEpoch {
		c.mu.Unlock()
		return
	}
	c.finishExitLocked()
}

func (c *Controller) finishExitLocked() {
	if !c.mounted || c.state.Open {
		c.mu.Unlock()
		return
	}
	c.stopExitTimerLocked()
	if c.state.RawQuery == "" && len(c.state.Results) == 0 && !c.state.Pending {
		c.mu.Unlock()
		return
	}
	c.issueLocked("", query.Interpret(""))
	c.commit()
}

// resetLocked returns the palette to Closed with an empty query. The
// generation moves on so that no earlier response can land.
func (c *Controller) resetLocked() {
	c.state = State{
		Generation:  c.state.Generation + 1,
		Interpreted: query.Interpret(""),
		Results:     []models.Note{},
		Version:     c.state.Version + 1,
	}
}

func (c *Controller) stopExitTimerLocked() {
	c.exitEpoch++
	if c.exitTimer != nil {
		c.exitTimer.Stop()
		c.exitTimer = nil
	}
}

// SetQuery replaces the raw query while the palette is open.
func (c *Controller) SetQuery(raw string) {
	c.mu.Lock()
	if !c.mounted || !c.state.Open {
		c.mu.Unlock()
		return
	}
	c.issueLocked(raw, query.Interpret(raw))
	c.commit()
}

// ActivateTool re-issues the current query as an explicit search, the
// "<query> - Search" entry under Tools.
func (c *Controller) ActivateTool() {
	c.mu.Lock()
	if !c.mounted || !c.state.Open || c.state.RawQuery == "" {
		c.mu.Unlock()
		return
	}
	raw := c.state.RawQuery
	in := query.Interpret(raw)
	in.Mode = query.ModeToolInvocation
	in.Term = query.Normalize(raw)
	c.issueLocked(raw, in)
	c.commit()
}

// SelectNote writes id to the shared selection and closes the palette.
func (c *Controller) SelectNote(id string) {
	if !c.Mounted() {
		return
	}
	c.sel.Select(id)
	c.Close()
}

// SelectHighlighted activates the highlighted option: a result is
// selected, the tool entry is run.
func (c *Controller) SelectHighlighted() {
	c.mu.Lock()
	if !c.mounted || !c.state.Open {
		c.mu.Unlock()
		return
	}
	opts := optionsFor(c.state)
	if len(opts) == 0 {
		c.mu.Unlock()
		return
	}
	opt := opts[clamp(c.state.Highlight, len(opts))]
	c.mu.Unlock()

	switch opt.Kind {
	case OptionNote:
		c.SelectNote(opt.Note.ID)
	case OptionTool:
		c.ActivateTool()
	}
}

// Move shifts the highlight by delta options, wrapping around.
func (c *Controller) Move(delta int) {
	c.mu.Lock()
	if !c.mounted || !c.state.Open {
		c.mu.Unlock()
		return
	}
	n := len(optionsFor(c.state))
	if n == 0 {
		c.mu.Unlock()
		return
	}
	c.state.Highlight = ((clamp(c.state.Highlight, n)+delta)%n + n) % n
	c.commit()
}

// HandleKey routes a key press while the palette is open and reports
// whether it was consumed. The toggle hotkey itself goes through the
// hotkey registry.
func (c *Controller) HandleKey(k string) bool {
	c.mu.Lock()
	open := c.mounted && c.state.Open
	c.mu.Unlock()
	if !open {
		return false
	}
	switch {
	case hotkey.Matches(k, c.km.close):
		c.Close()
	case hotkey.Matches(k, c.km.activate):
		c.SelectHighlighted()
	case hotkey.Matches(k, c.km.next):
		c.Move(1)
	case hotkey.Matches(k, c.km.prev):
		c.Move(-1)
	default:
		return false
	}
	return true
}

// issueLocked records a new query and, for a searchable term, starts the
// search tagged with the new generation.
func (c *Controller) issueLocked(raw string, in query.Interpreted) {
	c.state.Generation++
	gen := c.state.Generation
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state.RawQuery = raw
	c.state.Interpreted = in
	c.state.Highlight = 0

	searchable := in.Mode == query.ModeSearch || in.Mode == query.ModeToolInvocation
	if !searchable || in.Term == "" {
		c.state.Results = []models.Note{}
		c.state.Pending = false
		c.state.Err = nil
		return
	}

	ctx, cancel := context.WithCancel(c.base)
	c.cancel = cancel
	c.state.Pending = true
	c.inflight.Add(1)
	go c.run(ctx, cancel, gen, raw)
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, gen uint64, raw string) {
	defer c.inflight.Done()
	defer cancel()

	notes, err := c.search.Search(ctx, raw)

	c.mu.Lock()
	if !c.mounted || gen != c.state.Generation || apperr.IsCancelled(err) {
		c.mu.Unlock()
		return
	}
	c.cancel = nil
	c.state.Pending = false
	c.state.Highlight = 0
	c.state.Err = err
	if err != nil {
		notes = []models.Note{}
	}
	c.state.Results = notes
	c.commit()

	if err != nil {
		c.logger.Warn("search failed", slog.String("query", raw), slog.String("error", err.Error()))
	}
}

// commit snapshots the state, releases the lock and notifies listeners.
func (c *Controller) commit() {
	c.state.Version++
	snap := c.snapshotLocked()
	subs := append([]*subscriber(nil), c.subs...)
	c.deliverMu.Lock()
	c.mu.Unlock()
	defer c.deliverMu.Unlock()
	for _, s := range subs {
		s.fn(snap)
	}
}

func (c *Controller) snapshotLocked() State {
	s := c.state
	s.Results = append([]models.Note(nil), c.state.Results...)
	if s.Results == nil {
		s.Results = []models.Note{}
	}
	return s
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
