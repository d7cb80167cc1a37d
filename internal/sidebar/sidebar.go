// Package sidebar lists the repository's notes and highlights the one held
// by the shared selection.
package sidebar

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/starford/cleaan/internal/apperr"
	"github.com/starford/cleaan/internal/models"
	"github.com/starford/cleaan/internal/selection"
)

// Fallback texts for notes without a title or body.
const (
	UntitledTitle = "New Note"
	EmptyPreview  = "No content"
)

// Repository is the bulk fetch the sidebar depends on.
type Repository interface {
	FetchNotes(ctx context.Context) ([]models.Note, error)
}

// Row is one rendered sidebar entry. Tags are only filled for the selected
// row; the note itself always carries them.
type Row struct {
	Note     models.Note  `json:"note"`
	Selected bool         `json:"selected"`
	Title    string       `json:"title"`
	Preview  string       `json:"preview"`
	Tags     []models.Tag `json:"tags"`
}

// State is a snapshot of the sidebar.
type State struct {
	Notes    []models.Note `json:"notes"`
	Selected string        `json:"selected,omitempty"`
	Loading  bool          `json:"loading"`
	Err      error         `json:"-"`
	Version  uint64        `json:"version"`
}

// Controller drives one sidebar instance.
type Controller struct {
	repo   Repository
	sel    *selection.Controller
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	mounted  bool
	base     context.Context
	stopBase context.CancelFunc
	cancel   context.CancelFunc
	gen      uint64
	unsub    func()
	subs     []*subscriber
	inflight sync.WaitGroup

	deliverMu sync.Mutex
}

type subscriber struct {
	fn func(State)
}

// New creates an unmounted sidebar.
func New(repo Repository, sel *selection.Controller, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		repo:   repo,
		sel:    sel,
		logger: logger.With(slog.String("component", "sidebar")),
		state:  State{Notes: []models.Note{}},
	}
}

// Mount subscribes to the selection and starts the bulk fetch. The fetch
// is cancelled when ctx ends or on Unmount.
func (c *Controller) Mount(ctx context.Context) {
	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		return
	}
	c.mounted = true
	c.base, c.stopBase = context.WithCancel(ctx)
	c.mu.Unlock()

	// Subscribe before reading the current value so no write falls between.
	unsub := c.sel.Subscribe(c.onSelect)

	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		unsub()
		return
	}
	c.unsub = unsub
	if id, ok := c.sel.Current(); ok {
		c.state.Selected = id
	} else {
		c.state.Selected = ""
	}
	c.fetchLocked()
	c.commit()
}

// Unmount cancels the outstanding fetch and drops the selection listener.
// Results arriving afterwards are discarded.
func (c *Controller) Unmount() {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	c.mounted = false
	c.stopBase()
	c.cancel = nil
	c.state.Loading = false
	unsub := c.unsub
	c.unsub = nil
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Reload re-fetches the note list. The watcher calls it when the vault
// changes.
func (c *Controller) Reload() {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	c.fetchLocked()
	c.commit()
}

// Activate selects the note behind a row.
func (c *Controller) Activate(id string) {
	c.mu.Lock()
	mounted := c.mounted
	c.mu.Unlock()
	if mounted {
		c.sel.Select(id)
	}
}

// Wait blocks until every fetch started so far has returned.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// Subscribe registers fn for change notifications. Delivery is serialized,
// so fn must not call back into the controller on the same goroutine.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
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

// Rows renders the current state.
func (c *Controller) Rows() []Row {
	return RowsOf(c.State())
}

// RowsOf renders a snapshot.
func RowsOf(s State) []Row {
	return lo.Map(s.Notes, func(n models.Note, _ int) Row {
		selected := s.Selected != "" && n.ID == s.Selected
		r := Row{
			Note:     n,
			Selected: selected,
			Title:    n.Title,
			Preview:  firstLine(n.Content),
			Tags:     []models.Tag{},
		}
		if r.Title == "" {
			r.Title = UntitledTitle
		}
		if r.Preview == "" {
			r.Preview = EmptyPreview
		}
		if selected {
			r.Tags = append(r.Tags, n.Tags...)
		}
		return r
	})
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func (c *Controller) onSelect(id string, ok bool) {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	if !ok {
		id = ""
	}
	if c.state.Selected == id {
		c.mu.Unlock()
		return
	}
	c.state.Selected = id
	c.commit()
}

func (c *Controller) fetchLocked() {
	c.gen++
	gen := c.gen
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(c.base)
	c.cancel = cancel
	c.state.Loading = true
	c.inflight.Add(1)
	go c.fetch(ctx, cancel, gen)
}

func (c *Controller) fetch(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	defer c.inflight.Done()
	defer cancel()

	notes, err := c.repo.FetchNotes(ctx)
	if err == nil {
		err = ctx.Err()
	}

	c.mu.Lock()
	if !c.mounted || gen != c.gen || apperr.IsCancelled(err) {
		c.mu.Unlock()
		return
	}
	c.cancel = nil
	c.state.Loading = false
	if err != nil {
		err = fmt.Errorf("sidebar: fetch notes: %w: %w", apperr.ErrFetchFailure, err)
		notes = []models.Note{}
	}
	c.state.Err = err
	c.state.Notes = notes
	c.commit()

	if err != nil {
		c.logger.Warn("fetch notes failed", slog.String("error", err.Error()))
	}
}

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
	s.Notes = append([]models.Note{}, c.state.Notes...)
	return s
}
