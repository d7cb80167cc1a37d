// Package models defines the domain types for cleaan.
package models

import "time"

// Tag is a label attached to a note.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Note is an immutable snapshot of a note owned by the repository.
// Controllers hold notes by value and never mutate them.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []Tag     `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteMetadata is a lightweight representation returned by vault listings.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
