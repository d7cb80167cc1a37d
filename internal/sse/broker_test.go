package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/cleaan/internal/hotkey"
	"github.com/starford/cleaan/internal/palette"
	"github.com/starford/cleaan/internal/search"
	"github.com/starford/cleaan/internal/selection"
	"github.com/starford/cleaan/internal/sidebar"
	"github.com/starford/cleaan/internal/testutil"
)

func drain(ch chan []byte, settle time.Duration) []string {
	time.Sleep(settle)
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func countType(msgs []string, typ string) int {
	n := 0
	for _, m := range msgs {
		if strings.HasPrefix(m, "event: "+typ+"\n") {
			n++
		}
	}
	return n
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypeSelectionChanged, Data: SelectionPayload{ID: "2", Selected: true}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: selection.changed") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"id":"2"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishNoteEvent(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent("created", "shopping", "shopping.md")
	b.PublishNoteEvent("deleted", "plan", "plan.md")
	b.PublishNoteEvent("renamed", "x", "x.md")

	msgs := drain(ch, 50*time.Millisecond)
	if len(msgs) != 2 {
		t.Fatalf("got %d events: %q", len(msgs), msgs)
	}
	if countType(msgs, TypeNoteCreated) != 1 || countType(msgs, TypeNoteDeleted) != 1 {
		t.Errorf("events = %q", msgs)
	}
	if !strings.Contains(msgs[0], `"id":"shopping"`) || !strings.Contains(msgs[0], `"path":"shopping.md"`) {
		t.Errorf("payload = %q", msgs[0])
	}
}

func TestPublishLatest_Coalesces(t *testing.T) {
	b := NewBroker(200 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for _, q := range []string{"m", "mi", "mil", "milk"} {
		b.PublishLatest(Event{Type: TypePaletteChanged, Data: map[string]string{"query": q}})
	}
	b.PublishLatest(Event{Type: TypeSidebarChanged, Data: map[string]int{"rows": 2}})

	first := drain(ch, 50*time.Millisecond)
	if countType(first, TypePaletteChanged) != 1 || !strings.Contains(first[0], `"query":"m"`) {
		t.Fatalf("leading edge = %q", first)
	}
	if countType(first, TypeSidebarChanged) != 1 {
		t.Errorf("throttle must be per type: %q", first)
	}

	trailing := drain(ch, 300*time.Millisecond)
	if len(trailing) != 1 || !strings.Contains(trailing[0], `"query":"milk"`) {
		t.Errorf("trailing edge = %q, want only the newest snapshot", trailing)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	testutil.Eventually(t, time.Second, 5*time.Millisecond, func() bool {
		return b.ClientCount() == 1
	}, "handler never subscribed")

	b.PublishNoteEvent("updated", "x", "x.md")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if body := w.Body.String(); !strings.Contains(body, "event: note.updated") {
		t.Errorf("handler output missing event: %q", body)
	}
	testutil.Eventually(t, time.Second, 5*time.Millisecond, func() bool {
		return b.ClientCount() == 0
	}, "client not cleaned up after disconnect")
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: TypeNoteUpdated, Data: map[string]string{"path": "x.md"}})
	b.PublishLatest(Event{Type: TypePaletteChanged})
	b.PublishNoteEvent("updated", "x", "x.md")
}

func TestBridge(t *testing.T) {
	b := NewBroker(10 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	repo := testutil.NewRepo(testutil.ShoppingNotes()...)
	sel := selection.New()
	defer sel.Close()
	pal := palette.New(search.NewService(repo, 0), sel, hotkey.NewRegistry(), palette.Options{Logger: testutil.Logger()})
	side := sidebar.New(repo, sel, testutil.Logger())

	stop := b.Bridge(sel, pal, side)
	pal.Mount()
	defer pal.Unmount()
	side.Mount(context.Background())
	defer side.Unmount()
	side.Wait()

	pal.Open()
	pal.SetQuery("plan")
	pal.Wait()
	pal.SelectNote("2")

	msgs := drain(ch, 100*time.Millisecond)
	if countType(msgs, TypeSelectionChanged) != 1 {
		t.Errorf("selection events = %d in %q", countType(msgs, TypeSelectionChanged), msgs)
	}
	if countType(msgs, TypePaletteChanged) == 0 || countType(msgs, TypeSidebarChanged) == 0 {
		t.Errorf("missing snapshot events in %q", msgs)
	}
	last := msgs[len(msgs)-1]
	for i := len(msgs) - 1; i >= 0; i-- {
		if strings.HasPrefix(msgs[i], "event: "+TypeSidebarChanged) {
			last = msgs[i]
			break
		}
	}
	if !strings.Contains(last, `"selected":true`) {
		t.Errorf("last sidebar snapshot does not mark the selection: %q", last)
	}

	stop()
	sel.Select("1")
	if msgs := drain(ch, 50*time.Millisecond); countType(msgs, TypeSelectionChanged) != 0 {
		t.Errorf("events after stop: %q", msgs)
	}
}
