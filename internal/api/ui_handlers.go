package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/cleaan/internal/sidebar"
	"github.com/starford/cleaan/internal/toolbar"
)

// GetSelection handles GET /api/selection.
//
//	@Summary		Get the shared selection
//	@Tags			selection
//	@Produce		json
//	@Success		200		{object}	SelectionResponse
//	@Security		BearerAuth
//	@Router			/selection [get]
func (h *Handler) GetSelection(w http.ResponseWriter, _ *http.Request) {
	id, ok := h.svc.Selection.Current()
	writeJSON(w, http.StatusOK, SelectionResponse{ID: id, Selected: ok})
}

// PutSelection handles PUT /api/selection. The id is not checked against
// the repository.
//
//	@Summary		Select a note
//	@Tags			selection
//	@Accept			json
//	@Produce		json
//	@Param			body	body		IDRequest	true	"Note to select"
//	@Success		200		{object}	SelectionResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/selection [put]
func (h *Handler) PutSelection(w http.ResponseWriter, r *http.Request) {
	var req IDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.svc.Selection.Select(req.ID)
	h.GetSelection(w, r)
}

// DeleteSelection handles DELETE /api/selection.
//
//	@Summary		Clear the shared selection
//	@Tags			selection
//	@Produce		json
//	@Success		200		{object}	SelectionResponse
//	@Security		BearerAuth
//	@Router			/selection [delete]
func (h *Handler) DeleteSelection(w http.ResponseWriter, r *http.Request) {
	h.svc.Selection.Clear()
	h.GetSelection(w, r)
}

// GetSidebar handles GET /api/sidebar.
//
//	@Summary		List sidebar rows in natural order
//	@Tags			sidebar
//	@Produce		json
//	@Success		200		{object}	SidebarResponse
//	@Security		BearerAuth
//	@Router			/sidebar [get]
func (h *Handler) GetSidebar(w http.ResponseWriter, _ *http.Request) {
	s := h.svc.Sidebar.State()
	resp := SidebarResponse{Rows: sidebar.RowsOf(s), Loading: s.Loading}
	if s.Err != nil {
		resp.Error = s.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ActivateSidebarRow handles POST /api/sidebar/activate.
//
//	@Summary		Select the note behind a sidebar row
//	@Tags			sidebar
//	@Accept			json
//	@Produce		json
//	@Param			body	body		IDRequest	true	"Row note id"
//	@Success		200		{object}	SidebarResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sidebar/activate [post]
func (h *Handler) ActivateSidebarRow(w http.ResponseWriter, r *http.Request) {
	var req IDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.svc.Sidebar.Activate(req.ID)
	h.GetSidebar(w, r)
}

// GetPalette handles GET /api/palette.
//
//	@Summary		Get the palette view
//	@Tags			palette
//	@Produce		json
//	@Success		200		{object}	palette.View
//	@Security		BearerAuth
//	@Router			/palette [get]
func (h *Handler) GetPalette(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Palette.View())
}

// TogglePalette handles POST /api/palette/toggle.
//
//	@Summary		Open a closed palette or close an open one
//	@Tags			palette
//	@Produce		json
//	@Success		200		{object}	palette.View
//	@Security		BearerAuth
//	@Router			/palette/toggle [post]
func (h *Handler) TogglePalette(w http.ResponseWriter, r *http.Request) {
	h.svc.Palette.Toggle()
	h.GetPalette(w, r)
}

// OpenPalette handles POST /api/palette/open.
//
//	@Summary		Open the palette
//	@Tags			palette
//	@Produce		json
//	@Success		200		{object}	palette.View
//	@Security		BearerAuth
//	@Router			/palette/open [post]
func (h *Handler) OpenPalette(w http.ResponseWriter, r *http.Request) {
	h.svc.Palette.Open()
	h.GetPalette(w, r)
}

// ClosePalette handles POST /api/palette/close. The query survives until
// the exit completes.
//
//	@Summary		Close the palette
//	@Tags			palette
//	@Produce		json
//	@Success		200		{object}	palette.View
//	@Security		BearerAuth
//	@Router			/palette/close [post]
func (h *Handler) ClosePalette(w http.ResponseWriter, r *http.Request) {
	h.svc.Palette.Close()
	h.GetPalette(w, r)
}

// FinishPaletteExit handles POST /api/palette/exit.
//
//	@Summary		Report the close animation finished and reset the query
//	@Tags			palette
//	@Produce		json
//	@Success		200		{object}	palette.View
//	@Security		BearerAuth
//	@Router			/palette/exit [post]
func (h *Handler) FinishPaletteExit(w http.ResponseWriter, r *http.Request) {
	h.svc.Palette.FinishExit()
	h.GetPalette(w, r)
}

// ActivatePaletteTool handles POST /api/palette/tool.
//
//	@Summary		Run the current query as a Search tool invocation
//	@Tags			palette
//	@Produce		json
//	@Success		200		{object}	palette.View
//	@Security		BearerAuth
//	@Router			/palette/tool [post]
func (h *Handler) ActivatePaletteTool(w http.ResponseWriter, r *http.Request) {
	h.svc.Palette.ActivateTool()
	h.GetPalette(w, r)
}

// SetPaletteQuery handles PUT /api/palette/query. Results arrive later as
// palette.changed events.
//
//	@Summary		Replace the palette query
//	@Tags			palette
//	@Accept			json
//	@Produce		json
//	@Param			body	body		QueryRequest	true	"Raw query"
//	@Success		200		{object}	palette.View
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/palette/query [put]
func (h *Handler) SetPaletteQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.svc.Palette.SetQuery(req.Query)
	h.GetPalette(w, r)
}

// SelectPaletteOption handles POST /api/palette/select. Without an id the
// highlighted option is activated.
//
//	@Summary		Choose a palette option
//	@Tags			palette
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OptionalIDRequest	false	"Note id, empty for the highlighted option"
//	@Success		200		{object}	palette.View
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/palette/select [post]
func (h *Handler) SelectPaletteOption(w http.ResponseWriter, r *http.Request) {
	var req OptionalIDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ID == "" {
		h.svc.Palette.SelectHighlighted()
	} else {
		h.svc.Palette.SelectNote(req.ID)
	}
	h.GetPalette(w, r)
}

// PressKey handles POST /api/keys. Global hotkeys go first, then the open
// palette.
//
//	@Summary		Deliver a key press
//	@Tags			keys
//	@Accept			json
//	@Produce		json
//	@Param			body	body		KeyRequest	true	"Key in bubbletea notation, e.g. ctrl+k"
//	@Success		200		{object}	KeyResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/keys [post]
func (h *Handler) PressKey(w http.ResponseWriter, r *http.Request) {
	var req KeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	handled := h.svc.Keys.Dispatch(req.Key)
	if !handled {
		handled = h.svc.Palette.HandleKey(req.Key)
	}
	writeJSON(w, http.StatusOK, KeyResponse{Handled: handled})
}

// GetToolbar handles GET /api/toolbar.
//
//	@Summary		List the formatting toolbar items
//	@Tags			toolbar
//	@Produce		json
//	@Success		200		{array}		ToolbarItem
//	@Security		BearerAuth
//	@Router			/toolbar [get]
func (h *Handler) GetToolbar(w http.ResponseWriter, _ *http.Request) {
	items := toolbar.Items(h.svc.Marks)
	out := make([]ToolbarItem, len(items))
	for i, it := range items {
		out[i] = ToolbarItem{Icon: it.Icon, Title: it.Title, Mark: it.Mark, Active: it.IsActive()}
	}
	writeJSON(w, http.StatusOK, out)
}

// ToggleMark handles POST /api/toolbar/{mark}.
//
//	@Summary		Toggle a formatting mark
//	@Tags			toolbar
//	@Produce		json
//	@Param			mark	path		string	true	"bold, italic or strike"
//	@Success		200		{array}		ToolbarItem
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/toolbar/{mark} [post]
func (h *Handler) ToggleMark(w http.ResponseWriter, r *http.Request) {
	item, ok := toolbar.Find(toolbar.Items(h.svc.Marks), chi.URLParam(r, "mark"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("unknown mark"))
		return
	}
	item.Action()
	h.GetToolbar(w, r)
}
