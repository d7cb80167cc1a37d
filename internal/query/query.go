// Package query classifies raw palette input into a mode and a search term.
package query

import "strings"

// Mode is the interpreted intent of a query string.
type Mode int

const (
	ModeIdle Mode = iota
	ModeSearch
	// ModeToolInvocation is never produced by Interpret. The palette assigns
	// it when the user activates the search tool entry explicitly.
	ModeToolInvocation
	ModeHelp
)

func (m Mode) String() string {
	switch m {
	case ModeSearch:
		return "search"
	case ModeToolInvocation:
		return "tool"
	case ModeHelp:
		return "help"
	default:
		return "idle"
	}
}

// MarshalText renders the mode by name in JSON payloads.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText parses a mode name. Unknown names decode as idle.
func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "search":
		*m = ModeSearch
	case "tool":
		*m = ModeToolInvocation
	case "help":
		*m = ModeHelp
	default:
		*m = ModeIdle
	}
	return nil
}

// Modifier records which prefix character, if any, was stripped.
// Hash and Gt currently route to the same plain search.
type Modifier int

const (
	ModifierNone Modifier = iota
	ModifierHash
	ModifierGt
)

func (m Modifier) String() string {
	switch m {
	case ModifierHash:
		return "#"
	case ModifierGt:
		return ">"
	default:
		return ""
	}
}

// MarshalText renders the modifier as its prefix character.
func (m Modifier) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText parses a prefix character.
func (m *Modifier) UnmarshalText(b []byte) error {
	switch string(b) {
	case "#":
		*m = ModifierHash
	case ">":
		*m = ModifierGt
	default:
		*m = ModifierNone
	}
	return nil
}

// HelpQuery is the literal input that switches the palette to help.
const HelpQuery = "?"

// Interpreted is the result of Interpret.
type Interpreted struct {
	Mode     Mode     `json:"mode"`
	Modifier Modifier `json:"modifier"`
	Term     string   `json:"term"`
}

// Interpret is pure and total. The help check looks at the raw string, the
// term is the lower-cased input with one leading '#' or '>' removed.
func Interpret(raw string) Interpreted {
	term, mod := split(raw)
	switch {
	case raw == HelpQuery:
		return Interpreted{Mode: ModeHelp, Modifier: mod}
	case term == "":
		return Interpreted{Mode: ModeIdle, Modifier: mod}
	default:
		return Interpreted{Mode: ModeSearch, Modifier: mod, Term: term}
	}
}

// Normalize returns only the term extraction of Interpret. Repositories call
// it on the raw query they receive.
func Normalize(raw string) string {
	term, _ := split(raw)
	return term
}

func split(raw string) (string, Modifier) {
	s := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(s, "#"):
		return s[1:], ModifierHash
	case strings.HasPrefix(s, ">"):
		return s[1:], ModifierGt
	}
	return s, ModifierNone
}
