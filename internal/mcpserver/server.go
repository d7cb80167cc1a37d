// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes note search and selection tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/lo"

	"github.com/starford/cleaan/internal/apperr"
	"github.com/starford/cleaan/internal/models"
	"github.com/starford/cleaan/internal/noteservice"
	"github.com/starford/cleaan/internal/search"
	"github.com/starford/cleaan/internal/selection"
)

const contractURI = "cleaan://note-format"

// Server wraps the MCP server with note tools.
type Server struct {
	mcp    *server.MCPServer
	notes  *noteservice.Service
	search *search.Service
	sel    *selection.Controller
}

// New creates a new MCP server with all tools registered.
func New(notes *noteservice.Service, searcher *search.Service, sel *selection.Controller) *Server {
	s := &Server{notes: notes, search: searcher, sel: sel}

	s.mcp = server.NewMCPServer(
		"cleaan",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Case-insensitive substring search over note titles and bodies. "+
			"Results keep the vault's insertion order. A leading # or > is ignored."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Raw search query")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List every note (id and title) in insertion order."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note by id, including its body, tags and checksum."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id (the vault path unless frontmatter sets one)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new Markdown note. Read the note format via "+
			"get_note_contract or the "+contractURI+" resource first."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the new note (must end with .md)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("select_note",
		mcp.WithDescription("Make a note the current selection."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id to select")),
	), s.selectNote)

	s.mcp.AddTool(mcp.NewTool("current_selection",
		mcp.WithDescription("Return the id of the selected note, if any."),
	), s.currentSelection)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the note format understood by the index."),
	), s.getNoteContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Note Format",
			mcp.WithResourceDescription("Markdown note format understood by the index."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type noteSummary struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

func summarize(notes []models.Note) []noteSummary {
	return lo.Map(notes, func(n models.Note, _ int) noteSummary {
		return noteSummary{
			ID:    n.ID,
			Title: n.Title,
			Tags:  lo.Map(n.Tags, func(t models.Tag, _ int) string { return t.Name }),
		}
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.search.Search(ctx, q)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(summarize(results))
}

func (s *Server) listNotes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := s.notes.ListNotes(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(summarize(notes))
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.notes.GetNote(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note)
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.notes.CreateNote(ctx, path, []byte(content))
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return mcp.NewToolResultError(fmt.Sprintf("note already exists: %s", path)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", note.ID)), nil
}

func (s *Server) selectNote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.sel.Select(id)
	return mcp.NewToolResultText(fmt.Sprintf("selected: %s", id)), nil
}

func (s *Server) currentSelection(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := s.sel.Current()
	if !ok {
		return mcp.NewToolResultText("no note selected"), nil
	}
	return mcp.NewToolResultText(id), nil
}

func (s *Server) getNoteContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
