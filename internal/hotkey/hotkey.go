// Package hotkey dispatches global key chords to registered handlers.
package hotkey

import (
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/key"
)

// Handler runs when its binding matches a dispatched key.
type Handler func()

type entry struct {
	binding key.Binding
	fn      Handler
}

// Registry holds the process-wide key listeners. A listener is attached
// while its owner is mounted and must be detached on unmount.
type Registry struct {
	mu      sync.Mutex
	entries []*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Binding builds a key binding for a chord such as "ctrl+k".
func Binding(chord, desc string) key.Binding {
	chord = strings.ToLower(strings.TrimSpace(chord))
	return key.NewBinding(key.WithKeys(chord), key.WithHelp(chord, desc))
}

// Register attaches fn to b. The returned func detaches it and is safe to
// call more than once.
func (r *Registry) Register(b key.Binding, fn Handler) (deregister func()) {
	e := &entry{binding: b, fn: fn}
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for i, cur := range r.entries {
				if cur == e {
					r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
					return
				}
			}
		})
	}
}

// Chord is a key press rendered the way bubbletea names keys ("ctrl+k",
// "shift+tab", "enter").
type Chord string

func (c Chord) String() string { return string(c) }

// Matches reports whether the key press k triggers any of the bindings.
func Matches(k string, bs ...key.Binding) bool {
	return key.Matches(Chord(strings.ToLower(strings.TrimSpace(k))), bs...)
}

// Dispatch runs every handler whose binding matches k and reports whether
// any did. Handlers run outside the registry lock.
func (r *Registry) Dispatch(k string) bool {
	r.mu.Lock()
	var hit []Handler
	for _, e := range r.entries {
		if Matches(k, e.binding) {
			hit = append(hit, e.fn)
		}
	}
	r.mu.Unlock()

	for _, fn := range hit {
		fn()
	}
	return len(hit) > 0
}

// Count returns the number of attached listeners.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Help lists the help text of every attached binding.
func (r *Registry) Help() []key.Help {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]key.Help, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.binding.Help())
	}
	return out
}
