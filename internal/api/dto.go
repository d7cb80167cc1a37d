package api

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/cleaan/internal/models"
	"github.com/starford/cleaan/internal/noteservice"
	"github.com/starford/cleaan/internal/sidebar"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Path    string `json:"path" example:"notes/hello.md" validate:"required"`
	Content string `json:"content" example:"# Hello\nWorld" validate:"required"`
}

// Validate checks the request fields.
func (r *CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, validation.Required, validation.By(markdownPath)),
		validation.Field(&r.Content, validation.Required),
	)
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Content string `json:"content" example:"# Updated\nContent" validate:"required"`
}

// Validate checks the request fields.
func (r *UpdateNoteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Content, validation.Required),
	)
}

// IDRequest names a note by id.
type IDRequest struct {
	ID string `json:"id" example:"notes/hello.md" validate:"required"`
}

// Validate checks the request fields.
func (r *IDRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ID, validation.Required),
	)
}

// OptionalIDRequest names a note by id or, when empty, the highlighted one.
type OptionalIDRequest struct {
	ID string `json:"id,omitempty" example:"notes/hello.md"`
}

// Validate accepts every request.
func (r *OptionalIDRequest) Validate() error { return nil }

// QueryRequest replaces the palette query. An empty query is valid.
type QueryRequest struct {
	Query string `json:"query" example:"#milk"`
}

// Validate checks the request fields.
func (r *QueryRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Query, validation.Length(0, 512)),
	)
}

// KeyRequest is a key press forwarded from the host.
type KeyRequest struct {
	Key string `json:"key" example:"ctrl+k" validate:"required"`
}

// Validate checks the request fields.
func (r *KeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Key, validation.Required, validation.Length(1, 32)),
	)
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListResponse wraps note listings in natural order.
type NoteListResponse struct {
	Notes []models.Note `json:"notes" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []models.Note `json:"results" validate:"required"`
}

// SelectionResponse is the shared selection.
type SelectionResponse struct {
	ID       string `json:"id,omitempty" example:"notes/hello.md"`
	Selected bool   `json:"selected"`
}

// SidebarResponse is the rendered sidebar.
type SidebarResponse struct {
	Rows    []sidebar.Row `json:"rows" validate:"required"`
	Loading bool          `json:"loading"`
	Error   string        `json:"error,omitempty"`
}

// KeyResponse reports whether a key press was consumed.
type KeyResponse struct {
	Handled bool `json:"handled"`
}

// ToolbarItem is one formatting button with its current state.
type ToolbarItem struct {
	Icon   string `json:"icon" example:"bold"`
	Title  string `json:"title" example:"Bold"`
	Mark   string `json:"mark" example:"bold"`
	Active bool   `json:"active"`
}

func markdownPath(value interface{}) error {
	p, _ := value.(string)
	if !strings.HasSuffix(strings.ToLower(p), ".md") {
		return validation.NewError("validation_markdown_path", "must end in .md")
	}
	return nil
}
