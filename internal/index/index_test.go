package index

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/cleaan/internal/apperr"
	"github.com/starford/cleaan/internal/models"
	"github.com/starford/cleaan/internal/storage"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "cleaan-test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seed(t *testing.T, db *DB) {
	t.Helper()
	rows := []NoteRow{
		{Path: "1.md", ID: "1", Title: "Shopping list", Content: "milk, eggs", Tags: []models.Tag{{ID: "home", Name: "home"}}, Checksum: "a"},
		{Path: "2.md", ID: "2", Title: "Project plan", Content: "milestones", Checksum: "b"},
	}
	for _, r := range rows {
		if err := db.UpsertNote(r); err != nil {
			t.Fatalf("UpsertNote: %v", err)
		}
	}
}

func ids(notes []models.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.ID
	}
	return out
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&count); err != nil {
		t.Fatalf("notes table missing: %v", err)
	}
}

func TestFetchNotes_NaturalOrder(t *testing.T) {
	db := testDB(t)
	seed(t, db)

	// Updating the first note must not move it to the end.
	_ = db.UpsertNote(NoteRow{Path: "1.md", ID: "1", Title: "Shopping list", Content: "milk, eggs, bread", Checksum: "c"})

	notes, err := db.FetchNotes(context.Background())
	if err != nil {
		t.Fatalf("FetchNotes: %v", err)
	}
	got := ids(notes)
	if len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("order = %v, want [1 2]", got)
	}
	if notes[0].Content != "milk, eggs, bread" {
		t.Errorf("content not updated: %q", notes[0].Content)
	}
}

func TestFetchNotes_Tags(t *testing.T) {
	db := testDB(t)
	seed(t, db)
	notes, _ := db.FetchNotes(context.Background())
	if len(notes[0].Tags) != 1 || notes[0].Tags[0].Name != "home" {
		t.Errorf("tags = %+v", notes[0].Tags)
	}
	if notes[1].Tags == nil || len(notes[1].Tags) != 0 {
		t.Errorf("expected empty non-nil tags, got %#v", notes[1].Tags)
	}
}

func TestSearchNotes(t *testing.T) {
	db := testDB(t)
	seed(t, db)
	ctx := context.Background()

	cases := map[string][]string{
		"milk":  {"1"},
		"plan":  {"2"},
		"#PLAN": {"2"},
		"mil":   {"1", "2"},
		"zzz":   {},
		"":      {},
	}
	for raw, want := range cases {
		notes, err := db.SearchNotes(ctx, raw)
		if err != nil {
			t.Fatalf("SearchNotes(%q): %v", raw, err)
		}
		got := ids(notes)
		if len(got) != len(want) {
			t.Errorf("SearchNotes(%q) = %v, want %v", raw, got, want)
			continue
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("SearchNotes(%q) = %v, want %v", raw, got, want)
			}
		}
	}
}

func TestSearchNotes_UnicodeCaseFold(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "u.md", ID: "u", Title: "ÜBER Notes", Checksum: "u"})
	notes, err := db.SearchNotes(context.Background(), "über")
	if err != nil {
		t.Fatalf("SearchNotes: %v", err)
	}
	if len(notes) != 1 {
		t.Errorf("expected unicode case-insensitive match, got %v", ids(notes))
	}
}

func TestSearchNotes_LiteralPercent(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "p.md", ID: "p", Title: "Budget", Content: "50% done", Checksum: "p"})
	_ = db.UpsertNote(NoteRow{Path: "q.md", ID: "q", Title: "Other", Content: "nothing", Checksum: "q"})
	notes, _ := db.SearchNotes(context.Background(), "%")
	if got := ids(notes); len(got) != 1 || got[0] != "p" {
		t.Errorf("SearchNotes(%%) = %v, want [p]", got)
	}
}

func TestSearchNotes_Cancelled(t *testing.T) {
	db := testDB(t)
	seed(t, db)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := db.SearchNotes(ctx, "milk"); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestGetNote(t *testing.T) {
	db := testDB(t)
	seed(t, db)
	n, err := db.GetNote(context.Background(), "2")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if n.Title != "Project plan" {
		t.Errorf("title = %q", n.Title)
	}
	if _, err := db.GetNote(context.Background(), "404"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetNote(404) = %v, want ErrNotFound", err)
	}
}

func TestDeleteNote(t *testing.T) {
	db := testDB(t)
	seed(t, db)

	id, err := db.DeleteNote("1.md")
	if err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if id != "1" {
		t.Errorf("deleted id = %q, want 1", id)
	}
	cs, _ := db.GetChecksum("1.md")
	if cs != "" {
		t.Errorf("deleted note still has checksum %q", cs)
	}
	id, err = db.DeleteNote("missing.md")
	if err != nil || id != "" {
		t.Errorf("DeleteNote(missing) = %q, %v", id, err)
	}
}

func TestPathForID(t *testing.T) {
	db := testDB(t)
	seed(t, db)
	p, err := db.PathForID(context.Background(), "2")
	if err != nil || p != "2.md" {
		t.Errorf("PathForID = %q, %v", p, err)
	}
	if _, err := db.PathForID(context.Background(), "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("PathForID(x) = %v, want ErrNotFound", err)
	}
}

func TestSync(t *testing.T) {
	db := testDB(t)
	vault := t.TempDir()
	store, err := storage.NewFS(vault)
	if err != nil {
		t.Fatal(err)
	}
	_ = store.Write("a.md", []byte("---\nid: 1\ntitle: Shopping list\n---\nmilk, eggs"))
	_ = store.Write("b.md", []byte("# Project plan\nmilestones #work"))
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	if err := Sync(context.Background(), db, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	notes, _ := db.FetchNotes(context.Background())
	if got := ids(notes); len(got) != 2 || got[0] != "1" || got[1] != "b.md" {
		t.Fatalf("ids = %v, want [1 b.md]", got)
	}
	if notes[1].Title != "Project plan" || len(notes[1].Tags) != 1 || notes[1].Tags[0].ID != "work" {
		t.Errorf("b.md parsed wrong: %+v", notes[1])
	}

	_ = store.Delete("a.md")
	if err := Sync(context.Background(), db, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	notes, _ = db.FetchNotes(context.Background())
	if got := ids(notes); len(got) != 1 || got[0] != "b.md" {
		t.Errorf("ids after delete = %v, want [b.md]", got)
	}
}

func TestUpsertDefaultsUpdatedAt(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "t.md", ID: "t", Checksum: "t"})
	n, err := db.GetNote(context.Background(), "t")
	if err != nil {
		t.Fatal(err)
	}
	if time.Since(n.UpdatedAt) > time.Minute {
		t.Errorf("updated_at = %v, want recent", n.UpdatedAt)
	}
}

func TestIndexFile_DuplicateIDConflicts(t *testing.T) {
	db := testDB(t)
	data := []byte("---\nid: shared\n---\n# One")
	if _, err := IndexFile(db, "one.md", data, time.Time{}); err != nil {
		t.Fatal(err)
	}
	_, err := IndexFile(db, "two.md", []byte("---\nid: shared\n---\n# Two"), time.Time{})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if p, _ := db.PathForID(context.Background(), "shared"); p != "one.md" {
		t.Errorf("shared id moved to %q", p)
	}
	// Re-indexing the owner is not a conflict.
	if _, err := IndexFile(db, "one.md", []byte("---\nid: shared\n---\n# One again"), time.Time{}); err != nil {
		t.Errorf("re-index of owner: %v", err)
	}
}

func TestReindexFile_ReportsPreviousID(t *testing.T) {
	db := testDB(t)
	id, prev, err := ReindexFile(db, "n.md", []byte("---\nid: a\n---\nx"), time.Time{})
	if err != nil || id != "a" || prev != "" {
		t.Fatalf("first index = %q, %q, %v", id, prev, err)
	}
	id, prev, err = ReindexFile(db, "n.md", []byte("---\nid: b\n---\nx"), time.Time{})
	if err != nil || id != "b" || prev != "a" {
		t.Fatalf("re-index = %q, %q, %v", id, prev, err)
	}
}
