package index

import (
	"context"

	"github.com/starford/cleaan/internal/models"
)

// Repository is the note source consumed by the search service and the sidebar.
// Implementations must stop delivering results once ctx is cancelled.
type Repository interface {
	// FetchNotes returns every note in natural order.
	FetchNotes(ctx context.Context) ([]models.Note, error)
	// SearchNotes receives the raw, un-normalized palette query.
	SearchNotes(ctx context.Context, rawQuery string) ([]models.Note, error)
	// GetNote returns apperr.ErrNotFound for unknown ids.
	GetNote(ctx context.Context, id string) (models.Note, error)
}

var _ Repository = (*DB)(nil)
