package palette

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/starford/cleaan/internal/models"
	"github.com/starford/cleaan/internal/query"
)

// Texts of the informational states.
const (
	Placeholder    = "Search..."
	ResultsHeading = "Results"
	ToolsHeading   = "Tools"
	ToolSuffix     = "Search"
	HelpTitle      = "Help with searching"
	HelpBody       = "Type to search note titles and contents. Prefix the query with # or > to use a search modifier."
	NoResultsTitle = "No results found"
	NoResultsBody  = "We couldn't find anything with that term. Please try again."
)

// OptionKind distinguishes the two option groups.
type OptionKind int

const (
	OptionNote OptionKind = iota
	OptionTool
)

func (k OptionKind) String() string {
	if k == OptionTool {
		return "tool"
	}
	return "note"
}

// MarshalText renders the kind by name in JSON payloads.
func (k OptionKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText parses a kind name.
func (k *OptionKind) UnmarshalText(b []byte) error {
	if string(b) == "tool" {
		*k = OptionTool
	} else {
		*k = OptionNote
	}
	return nil
}

// Option is one activatable row: a search result or the tool entry.
type Option struct {
	Kind  OptionKind   `json:"kind"`
	Note  *models.Note `json:"note,omitempty"`
	Label string       `json:"label"`
	Hint  string       `json:"hint,omitempty"`
}

// View is what a renderer needs to draw the palette.
type View struct {
	Open          bool       `json:"open"`
	Query         string     `json:"query"`
	Mode          query.Mode `json:"mode"`
	Options       []Option   `json:"options"`
	Highlight     int        `json:"highlight"`
	Pending       bool       `json:"pending"`
	ShowResults   bool       `json:"show_results"`
	ShowTools     bool       `json:"show_tools"`
	ShowHelp      bool       `json:"show_help"`
	ShowNoResults bool       `json:"show_no_results"`
	Error         string     `json:"error,omitempty"`
	Footer        []key.Help `json:"footer"`
}

// View derives the render flags from the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	s := c.snapshotLocked()
	c.mu.Unlock()
	return c.viewOf(s)
}

// ViewOf derives the render flags from a snapshot, as delivered to listeners.
func (c *Controller) ViewOf(s State) View {
	return c.viewOf(s)
}

func (c *Controller) viewOf(s State) View {
	opts := optionsFor(s)
	help := s.RawQuery == query.HelpQuery
	v := View{
		Open:        s.Open,
		Query:       s.RawQuery,
		Mode:        s.Interpreted.Mode,
		Options:     opts,
		Pending:     s.Pending,
		ShowResults: len(s.Results) > 0 && !help,
		ShowTools:   s.RawQuery != "",
		ShowHelp:    help,
		ShowNoResults: query.Normalize(s.RawQuery) != "" &&
			!help && len(s.Results) == 0 && !s.Pending,
		Footer: c.km.footer(),
	}
	if len(opts) > 0 {
		v.Highlight = clamp(s.Highlight, len(opts))
	}
	if s.Err != nil {
		v.Error = s.Err.Error()
	}
	return v
}

// optionsFor lists results first, then the tool entry for a non-empty query.
func optionsFor(s State) []Option {
	opts := make([]Option, 0, len(s.Results)+1)
	if s.RawQuery != query.HelpQuery {
		for i := range s.Results {
			n := s.Results[i]
			opts = append(opts, Option{Kind: OptionNote, Note: &n, Label: n.Title})
		}
	}
	if s.RawQuery != "" {
		opts = append(opts, Option{Kind: OptionTool, Label: s.RawQuery, Hint: ToolSuffix})
	}
	return opts
}
