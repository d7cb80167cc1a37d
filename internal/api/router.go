package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *Service, authEnabled bool, token string, sseHandler http.Handler) (chi.Router, error) {
	if err := svc.Validate(); err != nil {
		return nil, err
	}
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/*", h.GetNote)
	r.Put("/notes/*", h.UpdateNote)
	r.Delete("/notes/*", h.DeleteNote)

	// Search.
	r.Get("/search", h.Search)

	// Shared selection.
	r.Get("/selection", h.GetSelection)
	r.Put("/selection", h.PutSelection)
	r.Delete("/selection", h.DeleteSelection)

	// Sidebar.
	r.Get("/sidebar", h.GetSidebar)
	r.Post("/sidebar/activate", h.ActivateSidebarRow)

	// Command palette.
	r.Route("/palette", func(r chi.Router) {
		r.Get("/", h.GetPalette)
		r.Post("/toggle", h.TogglePalette)
		r.Post("/open", h.OpenPalette)
		r.Post("/close", h.ClosePalette)
		r.Post("/exit", h.FinishPaletteExit)
		r.Post("/tool", h.ActivatePaletteTool)
		r.Post("/select", h.SelectPaletteOption)
		r.Put("/query", h.SetPaletteQuery)
	})

	// Keyboard.
	r.Post("/keys", h.PressKey)

	// Toolbar.
	r.Get("/toolbar", h.GetToolbar)
	r.Post("/toolbar/{mark}", h.ToggleMark)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r, nil
}
