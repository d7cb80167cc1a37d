package sse

import (
	"github.com/starford/cleaan/internal/palette"
	"github.com/starford/cleaan/internal/selection"
	"github.com/starford/cleaan/internal/sidebar"
)

// SelectionPayload is the data of a selection.changed event.
type SelectionPayload struct {
	ID       string `json:"id,omitempty"`
	Selected bool   `json:"selected"`
}

// SidebarPayload is the data of a sidebar.changed event.
type SidebarPayload struct {
	Rows    []sidebar.Row `json:"rows"`
	Loading bool          `json:"loading"`
	Error   string        `json:"error,omitempty"`
}

// Bridge forwards controller changes to connected clients. Any controller
// may be nil. The returned func detaches every listener.
func (b *Broker) Bridge(sel *selection.Controller, pal *palette.Controller, side *sidebar.Controller) (stop func()) {
	var stops []func()
	if sel != nil {
		stops = append(stops, sel.Subscribe(func(id string, ok bool) {
			b.Publish(Event{Type: TypeSelectionChanged, Data: SelectionPayload{ID: id, Selected: ok}})
		}))
	}
	if pal != nil {
		stops = append(stops, pal.Subscribe(func(s palette.State) {
			b.PublishLatest(Event{Type: TypePaletteChanged, Data: pal.ViewOf(s)})
		}))
	}
	if side != nil {
		stops = append(stops, side.Subscribe(func(s sidebar.State) {
			p := SidebarPayload{Rows: sidebar.RowsOf(s), Loading: s.Loading}
			if s.Err != nil {
				p.Error = s.Err.Error()
			}
			b.PublishLatest(Event{Type: TypeSidebarChanged, Data: p})
		}))
	}
	return func() {
		for _, fn := range stops {
			fn()
		}
	}
}
