// Package noteservice coordinates vault storage, the SQLite index and the
// shared selection for note writes.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/starford/cleaan/internal/apperr"
	"github.com/starford/cleaan/internal/checksum"
	"github.com/starford/cleaan/internal/index"
	"github.com/starford/cleaan/internal/models"
	"github.com/starford/cleaan/internal/parser"
	"github.com/starford/cleaan/internal/selection"
	"github.com/starford/cleaan/internal/storage"
)

// ErrChecksumMismatch rejects an update whose If-Match names an older
// version of the file.
var ErrChecksumMismatch = fmt.Errorf("checksum mismatch: %w", apperr.ErrConflict)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	models.Note
	Path        string         `json:"path"`
	Checksum    string         `json:"checksum"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
}

// Service coordinates storage and index operations.
type Service struct {
	store storage.Provider
	db    *index.DB
	sel   *selection.Controller
}

// NewService creates a new note service. sel may be nil.
func NewService(store storage.Provider, db *index.DB, sel *selection.Controller) *Service {
	return &Service{store: store, db: db, sel: sel}
}

// ListNotes returns every note in natural order.
func (s *Service) ListNotes(ctx context.Context) ([]models.Note, error) {
	return s.db.FetchNotes(ctx)
}

// GetNote reads a note by id from storage and parses it.
func (s *Service) GetNote(ctx context.Context, id string) (*NoteDetail, error) {
	path, err := s.db.PathForID(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	return s.buildNoteDetail(ctx, path, data)
}

// CreateNote writes a new note and indexes it.
func (s *Service) CreateNote(ctx context.Context, path string, content []byte) (*NoteDetail, error) {
	if _, err := s.store.Read(path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if _, err := index.IndexFile(s.db, path, content, time.Now()); err != nil {
		// A rejected file must not reach the vault, or the next sync trips
		// over it again.
		_ = s.store.Delete(path)
		return nil, fmt.Errorf("noteservice: index %s: %w", path, err)
	}
	return s.buildNoteDetail(ctx, path, content)
}

// UpdateNote replaces the content of note id. A non-empty ifMatch must equal
// the checksum of the stored file.
func (s *Service) UpdateNote(ctx context.Context, id string, content []byte, ifMatch string) (*NoteDetail, error) {
	path, err := s.db.PathForID(ctx, id)
	if err != nil {
		return nil, err
	}
	existing, err := s.read(path)
	if err != nil {
		return nil, err
	}
	if !checksum.Matches(existing, ifMatch) {
		return nil, ErrChecksumMismatch
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	newID, err := index.IndexFile(s.db, path, content, time.Now())
	if err != nil {
		_ = s.store.Write(path, existing)
		return nil, fmt.Errorf("noteservice: index %s: %w", path, err)
	}
	if newID != id && s.sel != nil {
		s.sel.Forget(id)
	}
	return s.buildNoteDetail(ctx, path, content)
}

// DeleteNote removes a note from storage and index and drops it from the
// selection if it was selected.
func (s *Service) DeleteNote(ctx context.Context, id string) error {
	path, err := s.db.PathForID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if _, err := s.db.DeleteNote(path); err != nil {
		return err
	}
	if s.sel != nil {
		s.sel.Forget(id)
	}
	return nil
}

func (s *Service) read(path string) ([]byte, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// buildNoteDetail constructs a NoteDetail from raw data without re-reading the file.
func (s *Service) buildNoteDetail(ctx context.Context, path string, data []byte) (*NoteDetail, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	id := res.ID
	if id == "" {
		id = path
	}
	note, err := s.db.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	return &NoteDetail{
		Note:        note,
		Path:        path,
		Checksum:    checksum.Sum(data),
		Frontmatter: res.Frontmatter,
	}, nil
}
