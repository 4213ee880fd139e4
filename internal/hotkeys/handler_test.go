package hotkeys

import (
	"errors"
	"io"
	"testing"

	"github.com/1broseidon/shellbridge/internal/platform"
	"github.com/1broseidon/shellbridge/internal/policy"
	"github.com/1broseidon/shellbridge/internal/shellstate"
	"pkt.systems/pslog"
)

type fakeActive struct {
	id  platform.WindowID
	err error
}

func (f fakeActive) ActiveWindow() (platform.WindowID, error) { return f.id, f.err }

type sinkFunc func(policy.Notice)

func (f sinkFunc) Publish(n policy.Notice) { f(n) }

func newTestHandler(active activeWindower, sink policy.Sink) (*Handler, map[string]func()) {
	grabs := make(map[string]func())
	h := &Handler{
		backend: active,
		sink:    sink,
		log:     pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured, NoColor: true}),
		grab: func(keys string, fn func()) error {
			if keys == "bad" {
				return errors.New("no such key")
			}
			grabs[keys] = fn
			return nil
		},
	}
	return h, grabs
}

func TestParseBindings(t *testing.T) {
	got, err := ParseBindings(map[string]string{
		"left":      "Mod4-Left",
		"right+top": "Mod4-KP_9",
		"bottom":    "",
	})
	if err != nil {
		t.Fatalf("ParseBindings: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected disabled entry skipped, got %+v", got)
	}
	if got[0].Keys != "Mod4-KP_9" || got[0].Split != shellstate.SplitRight|shellstate.SplitTop {
		t.Fatalf("unexpected first binding %+v", got[0])
	}
	if _, err := ParseBindings(map[string]string{"centre": "Mod4-c"}); err == nil {
		t.Fatal("expected error for unknown region")
	}
}

func TestHotkeyPublishesSplitForActiveWindow(t *testing.T) {
	var notices []policy.Notice
	h, grabs := newTestHandler(fakeActive{id: 0x2a00007}, sinkFunc(func(n policy.Notice) { notices = append(notices, n) }))

	if err := h.Register(Binding{Keys: "Mod4-Left", Split: shellstate.SplitLeft}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := h.Register(Binding{Keys: "bad", Split: shellstate.SplitLeft}); err == nil {
		t.Fatal("expected grab error")
	}
	grabs["Mod4-Left"]()

	if len(notices) != 1 {
		t.Fatalf("expected one notice, got %+v", notices)
	}
	n := notices[0]
	if n.Kind != policy.KindSplitWindowRequest || n.ID != "44040199" || n.SplitType != shellstate.SplitLeft {
		t.Fatalf("unexpected notice %+v", n)
	}
}

func TestHotkeyWithoutActiveWindowDoesNothing(t *testing.T) {
	for _, active := range []fakeActive{{id: 0}, {err: errors.New("no ewmh")}} {
		called := false
		h, grabs := newTestHandler(active, sinkFunc(func(policy.Notice) { called = true }))
		if err := h.Register(Binding{Keys: "Mod4-Up", Split: shellstate.SplitTop}); err != nil {
			t.Fatalf("Register: %v", err)
		}
		grabs["Mod4-Up"]()
		if called {
			t.Fatalf("unexpected notice for %+v", active)
		}
	}
}
