package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/starford/cleaan/internal/hotkey"
	"github.com/starford/cleaan/internal/palette"
	"github.com/starford/cleaan/internal/search"
	"github.com/starford/cleaan/internal/selection"
	"github.com/starford/cleaan/internal/sidebar"
	"github.com/starford/cleaan/internal/testutil"
)

const waitFor = 2 * time.Second

type env struct {
	m    *Model
	pal  *palette.Controller
	side *sidebar.Controller
	sel  *selection.Controller
	keys *hotkey.Registry
}

func newEnv(t *testing.T) *env {
	t.Helper()
	repo := testutil.NewRepo(testutil.ShoppingNotes()...)
	sel := selection.New()
	keys := hotkey.NewRegistry()
	pal := palette.New(search.NewService(repo, 0), sel, keys, palette.Options{Logger: testutil.Logger()})
	side := sidebar.New(repo, sel, testutil.Logger())
	pal.Mount()
	side.Mount(t.Context())
	t.Cleanup(func() {
		pal.Unmount()
		side.Unmount()
		pal.Wait()
		side.Wait()
	})
	testutil.Eventually(t, waitFor, 5*time.Millisecond, func() bool {
		return len(side.Rows()) == 2
	}, "sidebar never loaded")

	m := New(pal, side, keys)
	t.Cleanup(m.Close)
	return &env{m: m, pal: pal, side: side, sel: sel, keys: keys}
}

func (e *env) press(msgs ...tea.KeyMsg) {
	for _, msg := range msgs {
		e.m.Update(msg)
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeText(s string) []tea.KeyMsg {
	var out []tea.KeyMsg
	for _, r := range s {
		out = append(out, runes(string(r)))
	}
	return out
}

func TestModel_SidebarRendersRows(t *testing.T) {
	e := newEnv(t)
	out := e.m.View()
	for _, want := range []string{"Shopping list", "milk, eggs", "Project plan", "milestones"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if strings.Contains(out, palette.Placeholder) {
		t.Error("closed palette rendered")
	}
}

func TestModel_SidebarNavigationSelects(t *testing.T) {
	e := newEnv(t)
	e.press(tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyEnter})

	if id, ok := e.sel.Current(); !ok || id != "2" {
		t.Fatalf("selection = %q,%v, want 2", id, ok)
	}
	testutil.Eventually(t, waitFor, 5*time.Millisecond, func() bool {
		return strings.Contains(e.m.View(), "work")
	}, "selected row tags not rendered")
}

func TestModel_HotkeyOpensPaletteAndSearches(t *testing.T) {
	e := newEnv(t)
	e.press(tea.KeyMsg{Type: tea.KeyCtrlK})
	if !e.pal.State().Open {
		t.Fatal("ctrl+k did not open the palette")
	}
	if !e.m.input.Focused() {
		t.Error("query field not focused")
	}

	e.press(typeText("milk")...)
	if got := e.pal.State().RawQuery; got != "milk" {
		t.Fatalf("query = %q, want milk", got)
	}
	testutil.Eventually(t, waitFor, 5*time.Millisecond, func() bool {
		s := e.pal.State()
		return !s.Pending && len(s.Results) == 1
	}, "search never settled")

	out := e.m.View()
	for _, want := range []string{palette.ResultsHeading, "Shopping list", palette.ToolsHeading, "milk"} {
		if !strings.Contains(out, want) {
			t.Errorf("palette view missing %q", want)
		}
	}
}

func TestModel_EnterSelectsAndResets(t *testing.T) {
	e := newEnv(t)
	e.press(tea.KeyMsg{Type: tea.KeyCtrlK})
	e.press(typeText("plan")...)
	testutil.Eventually(t, waitFor, 5*time.Millisecond, func() bool {
		s := e.pal.State()
		return !s.Pending && len(s.Results) == 1
	}, "search never settled")

	e.press(tea.KeyMsg{Type: tea.KeyEnter})

	if id, ok := e.sel.Current(); !ok || id != "2" {
		t.Fatalf("selection = %q,%v, want 2", id, ok)
	}
	s := e.pal.State()
	if s.Open || s.RawQuery != "" {
		t.Errorf("palette state after enter = open:%v query:%q", s.Open, s.RawQuery)
	}
	if e.m.input.Value() != "" || e.m.input.Focused() {
		t.Errorf("input = %q focused:%v, want reset", e.m.input.Value(), e.m.input.Focused())
	}
}

func TestModel_HelpAndNoResults(t *testing.T) {
	e := newEnv(t)
	e.press(tea.KeyMsg{Type: tea.KeyCtrlK}, runes("?"))
	if out := e.m.View(); !strings.Contains(out, palette.HelpTitle) {
		t.Error("help not rendered for ?")
	}

	e.press(tea.KeyMsg{Type: tea.KeyBackspace})
	e.press(typeText("zzz")...)
	testutil.Eventually(t, waitFor, 5*time.Millisecond, func() bool {
		return strings.Contains(e.m.View(), palette.NoResultsTitle)
	}, "no-results state not rendered")
}

func TestModel_EscapeClosesPalette(t *testing.T) {
	e := newEnv(t)
	e.press(tea.KeyMsg{Type: tea.KeyCtrlK})
	e.press(typeText("mi")...)
	e.press(tea.KeyMsg{Type: tea.KeyEsc})

	if e.pal.State().Open {
		t.Fatal("escape did not close the palette")
	}
	if e.m.input.Value() != "" {
		t.Errorf("input = %q after close", e.m.input.Value())
	}
	// q quits only while the palette is closed.
	if _, cmd := e.m.Update(runes("q")); cmd == nil {
		t.Error("q did not quit")
	}
}

func TestModel_ChangesWakeTheProgram(t *testing.T) {
	e := newEnv(t)
	cmd := e.m.waitForChange()

	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	e.side.Reload()

	select {
	case msg := <-done:
		if _, ok := msg.(changedMsg); !ok {
			t.Errorf("msg = %T, want changedMsg", msg)
		}
	case <-time.After(waitFor):
		t.Fatal("controller change never reached the program")
	}
}

func TestModel_CloseDetaches(t *testing.T) {
	e := newEnv(t)
	e.m.Close()
	// drain any signal queued before Close
	select {
	case <-e.m.changes:
	default:
	}
	e.side.Reload()
	e.side.Wait()

	select {
	case <-e.m.changes:
		t.Error("detached model still notified")
	case <-time.After(50 * time.Millisecond):
	}
}
