// Package tui hosts the sidebar and command palette in a terminal using
// bubbletea. It is a thin renderer: all state lives in the controllers.
package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/starford/cleaan/internal/hotkey"
	"github.com/starford/cleaan/internal/palette"
	"github.com/starford/cleaan/internal/sidebar"
)

// changedMsg tells the model that a controller changed.
type changedMsg struct{}

// Model is the bubbletea model of the terminal host.
type Model struct {
	pal  *palette.Controller
	side *sidebar.Controller
	keys *hotkey.Registry

	input   textinput.Model
	cursor  int
	width   int
	height  int
	changes chan struct{}
	stops   []func()
}

// New creates the terminal model. The controllers must already be mounted.
func New(pal *palette.Controller, side *sidebar.Controller, keys *hotkey.Registry) *Model {
	ti := textinput.New()
	ti.Placeholder = palette.Placeholder
	ti.Prompt = "> "
	ti.CharLimit = 256

	m := &Model{
		pal:     pal,
		side:    side,
		keys:    keys,
		input:   ti,
		changes: make(chan struct{}, 1),
	}
	m.stops = append(m.stops,
		pal.Subscribe(func(palette.State) { m.notify() }),
		side.Subscribe(func(sidebar.State) { m.notify() }),
	)
	return m
}

// Close detaches the model from the controllers.
func (m *Model) Close() {
	for _, stop := range m.stops {
		stop()
	}
	m.stops = nil
}

// notify never blocks: one pending signal is enough to re-render.
func (m *Model) notify() {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}

func (m *Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		<-m.changes
		return changedMsg{}
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForChange())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case changedMsg:
		m.syncInput()
		return m, m.waitForChange()

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	k := msg.String()
	if k == "ctrl+c" {
		return tea.Quit
	}
	if m.keys.Dispatch(k) {
		m.afterPaletteKey()
		return nil
	}

	if m.pal.State().Open {
		if m.pal.HandleKey(k) {
			m.afterPaletteKey()
			return nil
		}
		before := m.input.Value()
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if v := m.input.Value(); v != before {
			m.pal.SetQuery(v)
		}
		return cmd
	}

	rows := m.side.Rows()
	switch k {
	case "q":
		return tea.Quit
	case "up", "k", "shift+tab":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j", "tab":
		if m.cursor < len(rows)-1 {
			m.cursor++
		}
	case "enter", " ":
		if m.cursor < len(rows) {
			m.side.Activate(rows[m.cursor].Note.ID)
		}
	case "ctrl+r":
		m.side.Reload()
	}
	return nil
}

// afterPaletteKey resets a closed palette right away; the terminal has no
// exit animation to wait for.
func (m *Model) afterPaletteKey() {
	if !m.pal.State().Open {
		m.pal.FinishExit()
	}
	m.syncInput()
}

// syncInput focuses the query field while the palette is open and mirrors
// the query after the exit reset.
func (m *Model) syncInput() {
	s := m.pal.State()
	if s.Open {
		if !m.input.Focused() {
			m.input.Focus()
		}
	} else if m.input.Focused() {
		m.input.Blur()
	}
	if m.input.Value() != s.RawQuery {
		m.input.SetValue(s.RawQuery)
		m.input.CursorEnd()
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	left := sidebarStyle.Render(m.renderSidebar())
	if !m.pal.State().Open {
		status := statusLineStyle.Render("ctrl+k search  ↑/↓ move  ↵ open  q quit")
		return lipgloss.JoinVertical(lipgloss.Left, left, status)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", m.renderPalette())
}

func (m *Model) renderSidebar() string {
	s := m.side.State()
	rows := sidebar.RowsOf(s)
	if len(rows) == 0 {
		if s.Loading {
			return previewStyle.Render("Loading…")
		}
		return previewStyle.Render(sidebar.EmptyPreview)
	}
	if m.cursor >= len(rows) {
		m.cursor = len(rows) - 1
	}

	var b strings.Builder
	for i, r := range rows {
		title := titleStyle.Render(r.Title)
		if r.Selected {
			title = selectedTitle.Render(r.Title)
		}
		lines := []string{title, previewStyle.Render(truncate(r.Preview, 32))}
		if len(r.Tags) > 0 {
			var tags []string
			for _, t := range r.Tags {
				tags = append(tags, tagStyle.Render(t.Name))
			}
			lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, tags...))
		}
		block := lipgloss.JoinVertical(lipgloss.Left, lines...)
		switch {
		case i == m.cursor:
			block = cursorRowStyle.Render(block)
		case r.Selected:
			block = selectedRowStyle.Render(block)
		default:
			block = rowStyle.Render(block)
		}
		b.WriteString(block)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderPalette() string {
	v := m.pal.View()
	parts := []string{m.input.View()}

	idx := 0
	option := func(label string) string {
		defer func() { idx++ }()
		if idx == v.Highlight {
			return activeOption.Render(label)
		}
		return optionStyle.Render(label)
	}

	if v.ShowResults {
		parts = append(parts, headingStyle.Render(palette.ResultsHeading))
		for _, o := range v.Options {
			if o.Kind != palette.OptionNote {
				continue
			}
			label := o.Label
			if label == "" {
				label = sidebar.UntitledTitle
			}
			parts = append(parts, option(label))
		}
	}
	if v.ShowTools {
		parts = append(parts, headingStyle.Render(palette.ToolsHeading))
		for _, o := range v.Options {
			if o.Kind == palette.OptionTool {
				parts = append(parts, option(o.Label+hintStyle.Render(" - "+o.Hint)))
			}
		}
	}
	if v.ShowHelp {
		parts = append(parts,
			infoTitleStyle.Render(palette.HelpTitle),
			infoBodyStyle.Render(palette.HelpBody))
	}
	if v.ShowNoResults {
		parts = append(parts,
			infoTitleStyle.Render(palette.NoResultsTitle),
			infoBodyStyle.Render(palette.NoResultsBody))
	}

	var hints []string
	for _, h := range v.Footer {
		hints = append(hints, hintStyle.Render(h.Desc)+" "+kbdStyle.Render(h.Key))
	}
	parts = append(parts, statusLineStyle.Render(strings.Join(hints, "   ")))

	return paletteStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Run starts the terminal program and blocks until the user quits or ctx
// ends.
func Run(ctx context.Context, pal *palette.Controller, side *sidebar.Controller, keys *hotkey.Registry) error {
	m := New(pal, side, keys)
	defer m.Close()
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
