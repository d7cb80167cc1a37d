package index

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/cleaan/internal/checksum"
	"github.com/starford/cleaan/internal/parser"
	"github.com/starford/cleaan/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
func Sync(ctx context.Context, db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List(ctx, "")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if _, err := IndexFile(db, m.Path, data, m.UpdatedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if _, err := db.DeleteNote(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("path", p))
		}
	}

	return nil
}

// ReindexFile indexes path like IndexFile and also returns the id that was
// indexed there before, "" for a new path. A differing previous id means
// the note's frontmatter id changed and the old id no longer exists.
func ReindexFile(db *DB, path string, data []byte, updatedAt time.Time) (id, previous string, err error) {
	previous, err = db.IDForPath(path)
	if err != nil {
		return "", "", err
	}
	id, err = IndexFile(db, path, data, updatedAt)
	if err != nil {
		return "", "", err
	}
	return id, previous, nil
}

// IndexFile parses data, upserts it and returns the note id. The id comes
// from frontmatter "id" and falls back to the vault path.
func IndexFile(db *DB, path string, data []byte, updatedAt time.Time) (string, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return "", err
	}
	id := res.ID
	if id == "" {
		id = path
	}
	err = db.UpsertNote(NoteRow{
		Path:      path,
		ID:        id,
		Title:     res.Title,
		Content:   res.Body,
		Tags:      res.Tags,
		Checksum:  checksum.Sum(data),
		UpdatedAt: updatedAt,
	})
	return id, err
}
