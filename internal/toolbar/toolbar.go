// Package toolbar describes the formatting buttons shown above the editor.
// The editing surface is a collaborator; the toolbar only asks it to toggle
// marks and whether a mark is active at the cursor.
package toolbar

import "sync"

// Mark names understood by the editor.
const (
	MarkBold   = "bold"
	MarkItalic = "italic"
	MarkStrike = "strike"
)

// Editor is the rich-text surface the toolbar drives.
type Editor interface {
	ToggleBold()
	ToggleItalic()
	ToggleStrike()
	IsActive(mark string) bool
}

// Item is one toolbar button.
type Item struct {
	Icon     string      `json:"icon"`
	Title    string      `json:"title"`
	Mark     string      `json:"mark"`
	Action   func()      `json:"-"`
	IsActive func() bool `json:"-"`
}

// Items returns the Bold, Italic and Strike buttons bound to e.
func Items(e Editor) []Item {
	return []Item{
		{
			Icon:     "bold",
			Title:    "Bold",
			Mark:     MarkBold,
			Action:   e.ToggleBold,
			IsActive: func() bool { return e.IsActive(MarkBold) },
		},
		{
			Icon:     "italic",
			Title:    "Italic",
			Mark:     MarkItalic,
			Action:   e.ToggleItalic,
			IsActive: func() bool { return e.IsActive(MarkItalic) },
		},
		{
			Icon:     "strikethrough",
			Title:    "Strike",
			Mark:     MarkStrike,
			Action:   e.ToggleStrike,
			IsActive: func() bool { return e.IsActive(MarkStrike) },
		},
	}
}

// Find returns the item for mark.
func Find(items []Item, mark string) (Item, bool) {
	for _, it := range items {
		if it.Mark == mark {
			return it, true
		}
	}
	return Item{}, false
}

// Marks is a minimal Editor that only tracks which marks are toggled on.
// Hosts without a rich-text surface, such as the HTTP API, use it to keep
// toolbar state for the focused note.
type Marks struct {
	mu     sync.Mutex
	active map[string]bool
}

// NewMarks returns an editor with no active marks.
func NewMarks() *Marks {
	return &Marks{active: make(map[string]bool)}
}

func (m *Marks) ToggleBold()   { m.toggle(MarkBold) }
func (m *Marks) ToggleItalic() { m.toggle(MarkItalic) }
func (m *Marks) ToggleStrike() { m.toggle(MarkStrike) }

func (m *Marks) IsActive(mark string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[mark]
}

func (m *Marks) toggle(mark string) {
	m.mu.Lock()
	m.active[mark] = !m.active[mark]
	m.mu.Unlock()
}
