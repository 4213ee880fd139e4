package tui

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/1broseidon/shellbridge/internal/shellstate"
	"github.com/1broseidon/shellbridge/internal/windowdir"
)

type fakeSession struct {
	windows    []windowdir.Snapshot
	windowsErr error
	captureErr error
	captured   []int32
	splits     map[int32]shellstate.SplitType
}

func (f *fakeSession) Windows(context.Context) ([]windowdir.Snapshot, error) {
	return f.windows, f.windowsErr
}

func (f *fakeSession) Capture(_ context.Context, id int32) (*image.RGBA, error) {
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	f.captured = append(f.captured, id)
	return image.NewRGBA(image.Rect(0, 0, 4, 3)), nil
}

func (f *fakeSession) Split(_ context.Context, id int32, t shellstate.SplitType) error {
	if f.splits == nil {
		f.splits = make(map[int32]shellstate.SplitType)
	}
	f.splits[id] = t
	return nil
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// step feeds msg to m and, when the update returns a command, runs it and
// feeds its result back once.
func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd != nil {
		if out := cmd(); out != nil {
			next, _ = m.Update(out)
			m = next.(Model)
		}
	}
	return m
}

func loaded(t *testing.T, s *fakeSession, opts Options) Model {
	t.Helper()
	m := New(context.Background(), s, opts)
	m = step(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	next, _ := m.Update(m.fetch()())
	return next.(Model)
}

func TestModel_ListsWindows(t *testing.T) {
	s := &fakeSession{windows: []windowdir.Snapshot{
		{PID: 10, WindowID: 7, Name: "term", Active: true},
		{PID: 11, WindowID: 8, Name: "editor"},
	}}
	m := loaded(t, s, Options{})

	if !m.connected || m.count != 2 {
		t.Fatalf("expected two windows, got connected=%v count=%d", m.connected, m.count)
	}
	item, ok := m.selected()
	if !ok || item.snap.WindowID != 7 {
		t.Fatalf("expected first window selected, got %+v", item)
	}
	view := m.View()
	if !strings.Contains(view, "2 windows") || !strings.Contains(view, "term") {
		t.Fatalf("unexpected view:\n%s", view)
	}
}

func TestModel_SplitKeysFollowKeypad(t *testing.T) {
	s := &fakeSession{windows: []windowdir.Snapshot{{WindowID: 7, Name: "term"}}}
	m := loaded(t, s, Options{})

	m = step(t, m, key("9"))
	if got := s.splits[7]; got != shellstate.SplitRight|shellstate.SplitTop {
		t.Fatalf("expected right+top split, got %v", got)
	}
	if m.statusErr || m.status != "split 7 right+top" {
		t.Fatalf("unexpected status %q", m.status)
	}

	m = step(t, m, key("4"))
	if got := s.splits[7]; got != shellstate.SplitLeft {
		t.Fatalf("expected left split, got %v", got)
	}
}

func TestModel_CaptureSaves(t *testing.T) {
	s := &fakeSession{windows: []windowdir.Snapshot{{WindowID: 7, Name: "term"}}}
	var saved int32
	m := loaded(t, s, Options{Save: func(id int32, img *image.RGBA) (string, error) {
		saved = id
		return "/tmp/window-7.png", nil
	}})

	m = step(t, m, key("c"))
	if len(s.captured) != 1 || saved != 7 {
		t.Fatalf("expected capture and save of window 7, got %v / %d", s.captured, saved)
	}
	if m.status != "captured 7 (4x3) to /tmp/window-7.png" {
		t.Fatalf("unexpected status %q", m.status)
	}

	s.captureErr = errors.New("capture failed")
	m = step(t, m, key("c"))
	if !m.statusErr || m.status != "capture failed" {
		t.Fatalf("expected error status, got %q", m.status)
	}
}

func TestModel_WindowsErrorShowsStatus(t *testing.T) {
	s := &fakeSession{windowsErr: errors.New("no window list received")}
	m := loaded(t, s, Options{})
	if m.connected || !m.statusErr {
		t.Fatalf("expected disconnected error state, got %+v", m.status)
	}
	if !strings.Contains(m.View(), "no window list") {
		t.Fatal("expected status bar to report the missing list")
	}
	// Keys without a selection do nothing.
	if _, cmd := m.Update(key("6")); cmd != nil {
		t.Fatal("expected no command without a selected window")
	}
}

func TestModel_FilterSwallowsActionKeys(t *testing.T) {
	s := &fakeSession{windows: []windowdir.Snapshot{{WindowID: 7, Name: "term"}}}
	m := loaded(t, s, Options{})

	next, _ := m.Update(key("/"))
	m = next.(Model)
	if m.list.FilterState() != list.Filtering {
		t.Fatalf("expected filtering state, got %v", m.list.FilterState())
	}
	next, _ = m.Update(key("q"))
	m = next.(Model)
	if m.list.FilterState() != list.Filtering {
		t.Fatal("q should type into the filter, not quit")
	}
}
