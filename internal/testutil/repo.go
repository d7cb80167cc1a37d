package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/starford/cleaan/internal/apperr"
	"github.com/starford/cleaan/internal/index"
	"github.com/starford/cleaan/internal/models"
)

// Repo is an in-memory note repository. Calls can be held open with Hold
// and HoldFetch; a held call returns once released or once its context is
// cancelled.
type Repo struct {
	mu        sync.Mutex
	notes     []models.Note
	err       error
	gates     map[string]chan struct{}
	fetchGate chan struct{}
	calls     []string
	fetches   int
}

// NewRepo returns a repository holding notes in the given order.
func NewRepo(notes ...models.Note) *Repo {
	return &Repo{notes: notes, gates: make(map[string]chan struct{})}
}

// SetNotes replaces the note set.
func (r *Repo) SetNotes(notes ...models.Note) {
	r.mu.Lock()
	r.notes = notes
	r.mu.Unlock()
}

// SetError makes every subsequent call fail with err (nil clears it).
func (r *Repo) SetError(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// Hold blocks SearchNotes calls for rawQuery until the returned func runs.
func (r *Repo) Hold(rawQuery string) (release func()) {
	gate := make(chan struct{})
	r.mu.Lock()
	r.gates[rawQuery] = gate
	r.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// HoldFetch blocks FetchNotes until the returned func runs.
func (r *Repo) HoldFetch() (release func()) {
	gate := make(chan struct{})
	r.mu.Lock()
	r.fetchGate = gate
	r.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Calls returns the raw queries SearchNotes received, in order.
func (r *Repo) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Fetches returns how many times FetchNotes was called.
func (r *Repo) Fetches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetches
}

func (r *Repo) wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FetchNotes returns every note.
func (r *Repo) FetchNotes(ctx context.Context) ([]models.Note, error) {
	r.mu.Lock()
	r.fetches++
	gate := r.fetchGate
	r.mu.Unlock()

	if err := r.wait(ctx, gate); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return append([]models.Note{}, r.notes...), nil
}

// SearchNotes normalizes rawQuery the way the SQLite repository does and
// returns matching notes in insertion order.
func (r *Repo) SearchNotes(ctx context.Context, rawQuery string) ([]models.Note, error) {
	r.mu.Lock()
	r.calls = append(r.calls, rawQuery)
	gate := r.gates[rawQuery]
	r.mu.Unlock()

	if err := r.wait(ctx, gate); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	term := strings.ToLower(rawQuery)
	if strings.HasPrefix(term, "#") || strings.HasPrefix(term, ">") {
		term = term[1:]
	}
	out := []models.Note{}
	for _, n := range r.notes {
		if strings.Contains(strings.ToLower(n.Title), term) || strings.Contains(strings.ToLower(n.Content), term) {
			out = append(out, n)
		}
	}
	return out, nil
}

// GetNote returns the note with the given id.
func (r *Repo) GetNote(_ context.Context, id string) (models.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return models.Note{}, r.err
	}
	for _, n := range r.notes {
		if n.ID == id {
			return n, nil
		}
	}
	return models.Note{}, apperr.ErrNotFound
}

var _ index.Repository = (*Repo)(nil)
