package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/cleaan/internal/hotkey"
	"github.com/starford/cleaan/internal/noteservice"
	"github.com/starford/cleaan/internal/palette"
	"github.com/starford/cleaan/internal/query"
	"github.com/starford/cleaan/internal/search"
	"github.com/starford/cleaan/internal/selection"
	"github.com/starford/cleaan/internal/sidebar"
	"github.com/starford/cleaan/internal/testutil"
)

type testEnv struct {
	svc    *Service
	router http.Handler
}

// newTestEnv sets up a temp vault, SQLite DB, mounted controllers and the
// router. An empty token means auth is disabled.
func newTestEnv(t *testing.T, token string, sseHandler http.Handler) *testEnv {
	t.Helper()

	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	logger := testutil.Logger()

	sel := selection.New()
	keys := hotkey.NewRegistry()
	searcher := search.NewService(db, 0)
	pal := palette.New(searcher, sel, keys, palette.Options{Logger: logger})
	side := sidebar.New(db, sel, logger)
	pal.Mount()
	side.Mount(context.Background())
	t.Cleanup(func() {
		pal.Unmount()
		side.Unmount()
		pal.Wait()
		side.Wait()
		sel.Close()
	})

	svc := &Service{
		Notes:     noteservice.NewService(store, db, sel),
		Search:    searcher,
		Selection: sel,
		Palette:   pal,
		Sidebar:   side,
		Keys:      keys,
	}
	router, err := NewRouter(svc, token != "", token, sseHandler)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return &testEnv{svc: svc, router: router}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func (e *testEnv) seedShopping(t *testing.T) {
	t.Helper()
	for _, n := range []CreateNoteRequest{
		{Path: "shopping.md", Content: "---\nid: \"1\"\ntags: [home]\n---\n# Shopping list\nmilk, eggs\n"},
		{Path: "plan.md", Content: "---\nid: \"2\"\ntags: [work]\n---\n# Project plan\nmilestones\n"},
	} {
		if w := e.do(t, http.MethodPost, "/notes", n); w.Code != http.StatusCreated {
			t.Fatalf("create %s = %d, body = %s", n.Path, w.Code, w.Body.String())
		}
	}
}

func TestCreateAndGetNote(t *testing.T) {
	e := newTestEnv(t, "", nil)

	w := e.do(t, http.MethodPost, "/notes", CreateNoteRequest{Path: "hello.md", Content: "# Hello\nWorld"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodGet, "/notes/hello.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	note := decode[NoteDetail](t, w)
	if note.Path != "hello.md" || note.ID != "hello.md" {
		t.Errorf("path = %q, id = %q", note.Path, note.ID)
	}
	if note.Title != "Hello" {
		t.Errorf("title = %q, want Hello", note.Title)
	}
}

func TestCreateValidation(t *testing.T) {
	e := newTestEnv(t, "", nil)
	for _, req := range []CreateNoteRequest{
		{Path: "", Content: "x"},
		{Path: "a.md", Content: ""},
		{Path: "a.txt", Content: "x"},
	} {
		if w := e.do(t, http.MethodPost, "/notes", req); w.Code != http.StatusBadRequest {
			t.Errorf("create %+v = %d, want 400", req, w.Code)
		}
	}
}

func TestCreateDuplicate(t *testing.T) {
	e := newTestEnv(t, "", nil)
	body := CreateNoteRequest{Path: "dup.md", Content: "a"}
	if w := e.do(t, http.MethodPost, "/notes", body); w.Code != http.StatusCreated {
		t.Fatalf("first create = %d", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/notes", body); w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestCreateDuplicateID(t *testing.T) {
	e := newTestEnv(t, "", nil)
	body := "---\nid: shared\n---\n# One"
	if w := e.do(t, http.MethodPost, "/notes", CreateNoteRequest{Path: "one.md", Content: body}); w.Code != http.StatusCreated {
		t.Fatalf("first create = %d", w.Code)
	}
	w := e.do(t, http.MethodPost, "/notes", CreateNoteRequest{Path: "two.md", Content: body})
	if w.Code != http.StatusConflict {
		t.Errorf("create with taken id = %d, want 409", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	e := newTestEnv(t, "", nil)
	w := e.do(t, http.MethodPost, "/notes", CreateNoteRequest{Path: "lock.md", Content: "v1"})
	created := decode[NoteDetail](t, w)

	req := httptest.NewRequest(http.MethodPut, "/notes/lock.md", bytes.NewReader([]byte(`{"content":"v2"}`)))
	req.Header.Set("If-Match", `"wrong"`)
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("stale If-Match = %d, want 409", w.Code)
	}

	req = httptest.NewRequest(http.MethodPut, "/notes/lock.md", bytes.NewReader([]byte(`{"content":"v2"}`)))
	req.Header.Set("If-Match", `"`+created.Checksum+`"`)
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("matching If-Match = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode[NoteDetail](t, w); got.Content != "v2" {
		t.Errorf("content = %q", got.Content)
	}

	if w := e.do(t, http.MethodPut, "/notes/missing.md", UpdateNoteRequest{Content: "x"}); w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", w.Code)
	}
}

func TestDeleteNoteClearsSelection(t *testing.T) {
	e := newTestEnv(t, "", nil)
	e.seedShopping(t)

	e.do(t, http.MethodPut, "/selection", IDRequest{ID: "2"})
	if w := e.do(t, http.MethodDelete, "/notes/2", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d, body = %s", w.Code, w.Body.String())
	}
	sel := decode[SelectionResponse](t, e.do(t, http.MethodGet, "/selection", nil))
	if sel.Selected {
		t.Errorf("selection survived delete: %+v", sel)
	}
	if w := e.do(t, http.MethodDelete, "/notes/2", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/notes/2", nil); w.Code != http.StatusNotFound {
		t.Errorf("get deleted = %d, want 404", w.Code)
	}
}

func TestListNotesNaturalOrder(t *testing.T) {
	e := newTestEnv(t, "", nil)
	e.seedShopping(t)

	resp := decode[NoteListResponse](t, e.do(t, http.MethodGet, "/notes", nil))
	if resp.Total != 2 || resp.Notes[0].ID != "1" || resp.Notes[1].ID != "2" {
		t.Errorf("list = %+v", resp)
	}
}

func TestSearchEndpoint(t *testing.T) {
	e := newTestEnv(t, "", nil)
	e.seedShopping(t)

	cases := map[string]int{"milk": 1, "%23plan": 1, "i": 2, "absent": 0, "": 0}
	for q, want := range cases {
		w := e.do(t, http.MethodGet, "/search?q="+q, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("search %q = %d", q, w.Code)
		}
		if got := decode[SearchResponse](t, w); len(got.Results) != want {
			t.Errorf("search %q: %d results, want %d", q, len(got.Results), want)
		}
	}
}

func TestSelectionEndpoints(t *testing.T) {
	e := newTestEnv(t, "", nil)

	if got := decode[SelectionResponse](t, e.do(t, http.MethodGet, "/selection", nil)); got.Selected {
		t.Errorf("initial selection = %+v", got)
	}
	if w := e.do(t, http.MethodPut, "/selection", IDRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty id = %d, want 400", w.Code)
	}
	// No existence check at the selection boundary.
	got := decode[SelectionResponse](t, e.do(t, http.MethodPut, "/selection", IDRequest{ID: "ghost"}))
	if !got.Selected || got.ID != "ghost" {
		t.Errorf("put selection = %+v", got)
	}
	got = decode[SelectionResponse](t, e.do(t, http.MethodDelete, "/selection", nil))
	if got.Selected {
		t.Errorf("delete selection = %+v", got)
	}
}

func TestSidebarEndpoints(t *testing.T) {
	e := newTestEnv(t, "", nil)
	e.seedShopping(t)
	e.svc.Sidebar.Wait()

	resp := decode[SidebarResponse](t, e.do(t, http.MethodGet, "/sidebar", nil))
	if len(resp.Rows) != 2 || resp.Rows[0].Title != "Shopping list" {
		t.Fatalf("sidebar = %+v", resp)
	}

	resp = decode[SidebarResponse](t, e.do(t, http.MethodPost, "/sidebar/activate", IDRequest{ID: "1"}))
	if !resp.Rows[0].Selected || len(resp.Rows[0].Tags) != 1 || len(resp.Rows[1].Tags) != 0 {
		t.Errorf("after activate = %+v", resp.Rows)
	}
}

func TestPaletteScenario(t *testing.T) {
	e := newTestEnv(t, "", nil)
	e.seedShopping(t)

	v := decode[palette.View](t, e.do(t, http.MethodPost, "/palette/open", nil))
	if !v.Open {
		t.Fatal("palette did not open")
	}

	e.do(t, http.MethodPut, "/palette/query", QueryRequest{Query: "plan"})
	e.svc.Palette.Wait()
	v = decode[palette.View](t, e.do(t, http.MethodGet, "/palette", nil))
	if !v.ShowResults || len(v.Options) != 2 || v.Options[0].Note.ID != "2" {
		t.Fatalf("palette view = %+v", v)
	}

	v = decode[palette.View](t, e.do(t, http.MethodPost, "/palette/select", OptionalIDRequest{}))
	if v.Open {
		t.Error("palette should close after selecting")
	}
	if id, _ := e.svc.Selection.Current(); id != "2" {
		t.Errorf("selection = %q, want 2", id)
	}

	v = decode[palette.View](t, e.do(t, http.MethodPost, "/palette/exit", nil))
	if v.Query != "" || len(v.Options) != 0 {
		t.Errorf("after exit = %+v", v)
	}
}

func TestPaletteTransitionRoutes(t *testing.T) {
	e := newTestEnv(t, "", nil)
	e.seedShopping(t)

	if v := decode[palette.View](t, e.do(t, http.MethodPost, "/palette/toggle", nil)); !v.Open {
		t.Fatal("toggle did not open")
	}
	e.do(t, http.MethodPut, "/palette/query", QueryRequest{Query: "#milk"})
	v := decode[palette.View](t, e.do(t, http.MethodPost, "/palette/tool", nil))
	if v.Mode != query.ModeToolInvocation {
		t.Errorf("tool: mode = %v, want tool invocation", v.Mode)
	}
	if v := decode[palette.View](t, e.do(t, http.MethodPost, "/palette/close", nil)); v.Open || v.Query != "#milk" {
		t.Errorf("close: view = %+v, want closed with query kept", v)
	}
	if v := decode[palette.View](t, e.do(t, http.MethodPost, "/palette/exit", nil)); v.Query != "" {
		t.Errorf("exit: query = %q, want empty", v.Query)
	}
	if v := decode[palette.View](t, e.do(t, http.MethodPost, "/palette/open", nil)); !v.Open {
		t.Error("open did not open")
	}
	if v := decode[palette.View](t, e.do(t, http.MethodPost, "/palette/toggle", nil)); v.Open {
		t.Error("toggle did not close")
	}
}

func TestPaletteHelp(t *testing.T) {
	e := newTestEnv(t, "", nil)
	e.do(t, http.MethodPost, "/palette/toggle", nil)
	v := decode[palette.View](t, e.do(t, http.MethodPut, "/palette/query", QueryRequest{Query: "?"}))
	if !v.ShowHelp || v.ShowNoResults {
		t.Errorf("help view = %+v", v)
	}
}

func TestKeys(t *testing.T) {
	e := newTestEnv(t, "", nil)

	if got := decode[KeyResponse](t, e.do(t, http.MethodPost, "/keys", KeyRequest{Key: "ctrl+k"})); !got.Handled {
		t.Error("ctrl+k not handled")
	}
	if !e.svc.Palette.State().Open {
		t.Fatal("ctrl+k should open the palette")
	}
	if got := decode[KeyResponse](t, e.do(t, http.MethodPost, "/keys", KeyRequest{Key: "esc"})); !got.Handled {
		t.Error("esc not handled while open")
	}
	if e.svc.Palette.State().Open {
		t.Error("esc should close the palette")
	}
	if got := decode[KeyResponse](t, e.do(t, http.MethodPost, "/keys", KeyRequest{Key: "esc"})); got.Handled {
		t.Error("esc handled while closed")
	}
	if w := e.do(t, http.MethodPost, "/keys", KeyRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty key = %d, want 400", w.Code)
	}
}

func TestToolbar(t *testing.T) {
	e := newTestEnv(t, "", nil)

	items := decode[[]ToolbarItem](t, e.do(t, http.MethodGet, "/toolbar", nil))
	if len(items) != 3 || items[0].Title != "Bold" || items[2].Icon != "strikethrough" {
		t.Fatalf("toolbar = %+v", items)
	}
	items = decode[[]ToolbarItem](t, e.do(t, http.MethodPost, "/toolbar/italic", nil))
	if items[0].Active || !items[1].Active {
		t.Errorf("after toggle italic = %+v", items)
	}
	if w := e.do(t, http.MethodPost, "/toolbar/underline", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown mark = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	e := newTestEnv(t, "secret", nil)

	cases := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer wrong", http.StatusUnauthorized},
		{"secret", http.StatusUnauthorized},
		{"Bearer secret", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/selection", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		e.router.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Errorf("Authorization %q = %d, want %d", tc.header, w.Code, tc.want)
		}
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	e := newTestEnv(t, "", nil)
	if w := e.do(t, http.MethodGet, "/selection", nil); w.Code != http.StatusOK {
		t.Errorf("disabled auth = %d, want 200", w.Code)
	}
}

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	e := newTestEnv(t, "secret", blockingSSE)
	if w := e.do(t, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	e := newTestEnv(t, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}

func TestNewRouter_MissingDependency(t *testing.T) {
	if _, err := NewRouter(&Service{}, false, "", nil); err == nil {
		t.Error("expected an error for an empty service")
	}
}
