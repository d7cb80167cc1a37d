// Package storage defines the Markdown vault abstraction behind the note repository.
package storage

import (
	"context"

	"github.com/starford/cleaan/internal/models"
)

// Provider is the interface for vault file operations.
// Paths are relative to the vault root.
type Provider interface {
	// List returns metadata for every .md file under dir. It stops early
	// with ctx.Err() when ctx is cancelled.
	List(ctx context.Context, dir string) ([]models.NoteMetadata, error)
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path.
	Write(path string, content []byte) error
	Delete(path string) error
}
