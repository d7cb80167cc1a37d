package palette

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/starford/cleaan/internal/hotkey"
)

// DefaultHotkey toggles the palette when no chord is configured.
const DefaultHotkey = "ctrl+k"

type keyMap struct {
	close    key.Binding
	activate key.Binding
	next     key.Binding
	prev     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		close: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close"),
		),
		activate: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("↵", "Open"),
		),
		next: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("TAB", "Suggestions"),
		),
		prev: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "previous"),
		),
	}
}

// footer lists the hints shown along the bottom edge of the palette.
func (k keyMap) footer() []key.Help {
	return []key.Help{k.next.Help(), k.activate.Help()}
}

func toggleBinding(chord string) key.Binding {
	if chord == "" {
		chord = DefaultHotkey
	}
	return hotkey.Binding(chord, "command palette")
}
