package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/cleaan/internal/apperr"
	"github.com/starford/cleaan/internal/models"
	"github.com/starford/cleaan/internal/query"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Path      string
	ID        string
	Title     string
	Content   string
	Tags      []models.Tag
	Checksum  string
	UpdatedAt time.Time
}

const noteColumns = `id, title, content, tags, updated_at`

// UpsertNote inserts or replaces a note keyed by path. Existing rows keep
// their position in the natural order. An id already held by a note at
// another path fails with apperr.ErrConflict.
func (db *DB) UpsertNote(n NoteRow) error {
	tags := n.Tags
	if tags == nil {
		tags = []models.Tag{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("index: encode tags: %w", err)
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now()
	}

	_, err = db.conn.Exec(`
		INSERT INTO notes (path, id, title, content, title_fold, content_fold, tags, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			id           = excluded.id,
			title        = excluded.title,
			content      = excluded.content,
			title_fold   = excluded.title_fold,
			content_fold = excluded.content_fold,
			tags         = excluded.tags,
			checksum     = excluded.checksum,
			updated_at   = excluded.updated_at
	`, n.Path, n.ID, n.Title, n.Content, strings.ToLower(n.Title), strings.ToLower(n.Content),
		string(tagsJSON), n.Checksum, n.UpdatedAt)
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("index: upsert %s: id %q already used by another note: %w", n.Path, n.ID, apperr.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}
	return nil
}

// DeleteNote removes the note stored at path and returns its id, or "" if
// nothing was indexed there.
func (db *DB) DeleteNote(path string) (string, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return "", fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var id string
	err = tx.QueryRow(`SELECT id FROM notes WHERE path = ?`, path).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: lookup %s: %w", path, err)
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE path = ?`, path); err != nil {
		return "", fmt.Errorf("index: delete %s: %w", path, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("index: commit: %w", err)
	}
	return id, nil
}

// IDForPath returns the id indexed at path, or "" if nothing is.
func (db *DB) IDForPath(path string) (string, error) {
	var id string
	err := db.conn.QueryRow(`SELECT id FROM notes WHERE path = ?`, path).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: id for %s: %w", path, err)
	}
	return id, nil
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum %s: %w", path, err)
	}
	return cs, nil
}

// AllChecksums maps every indexed path to its checksum.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// PathForID returns the vault path of a note id.
func (db *DB) PathForID(ctx context.Context, id string) (string, error) {
	var p string
	err := db.conn.QueryRowContext(ctx, `SELECT path FROM notes WHERE id = ?`, id).Scan(&p)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("index: path for %s: %w", id, err)
	}
	return p, nil
}

// FetchNotes returns every note in natural order.
func (db *DB) FetchNotes(ctx context.Context) ([]models.Note, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+noteColumns+` FROM notes ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("index: fetch notes: %w", err)
	}
	return scanNotes(rows)
}

// SearchNotes normalizes rawQuery and returns notes whose title or content
// contains the term, case-insensitively, in natural order.
func (db *DB) SearchNotes(ctx context.Context, rawQuery string) ([]models.Note, error) {
	term := query.Normalize(rawQuery)
	if term == "" {
		return []models.Note{}, nil
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+noteColumns+`
		FROM notes
		WHERE instr(title_fold, ?) > 0 OR instr(content_fold, ?) > 0
		ORDER BY rowid
	`, term, term)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanNotes(rows)
}

// GetNote returns the note with the given id.
func (db *DB) GetNote(ctx context.Context, id string) (models.Note, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	if err != nil {
		return models.Note{}, fmt.Errorf("index: get note: %w", err)
	}
	notes, err := scanNotes(rows)
	if err != nil {
		return models.Note{}, err
	}
	if len(notes) == 0 {
		return models.Note{}, apperr.ErrNotFound
	}
	return notes[0], nil
}

func scanNotes(rows *sql.Rows) ([]models.Note, error) {
	defer rows.Close()
	out := []models.Note{}
	for rows.Next() {
		var (
			n    models.Note
			tags string
		)
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &tags, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("index: scan note: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil {
			return nil, fmt.Errorf("index: decode tags for %s: %w", n.ID, err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: rows: %w", err)
	}
	return out, nil
}
