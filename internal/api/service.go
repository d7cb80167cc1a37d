package api

import (
	"github.com/starford/cleaan/internal/hotkey"
	"github.com/starford/cleaan/internal/noteservice"
	"github.com/starford/cleaan/internal/palette"
	"github.com/starford/cleaan/internal/search"
	"github.com/starford/cleaan/internal/selection"
	"github.com/starford/cleaan/internal/sidebar"
	"github.com/starford/cleaan/internal/toolbar"
)

// Service bundles the controllers a host renderer drives over HTTP. All of
// them share one selection controller.
type Service struct {
	Notes     *noteservice.Service
	Search    *search.Service
	Selection *selection.Controller
	Palette   *palette.Controller
	Sidebar   *sidebar.Controller
	Keys      *hotkey.Registry
	Marks     *toolbar.Marks
}

// Validate reports a missing dependency.
func (s *Service) Validate() error {
	switch {
	case s.Notes == nil:
		return errMissing("notes")
	case s.Search == nil:
		return errMissing("search")
	case s.Selection == nil:
		return errMissing("selection")
	case s.Palette == nil:
		return errMissing("palette")
	case s.Sidebar == nil:
		return errMissing("sidebar")
	case s.Keys == nil:
		return errMissing("keys")
	}
	if s.Marks == nil {
		s.Marks = toolbar.NewMarks()
	}
	return nil
}
