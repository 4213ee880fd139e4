//go:build linux

package platform

import (
	"testing"

	"github.com/1broseidon/shellbridge/internal/x11"
)

func TestWindowFromInfo(t *testing.T) {
	info := x11.WindowInfo{
		ID:      42,
		PID:     100,
		Title:   "term",
		Width:   800,
		Height:  600,
		Desktop: -1,
		States:  []string{x11.StateHidden, x11.StateMaxHorz, x11.StateMaxVert},
		Allowed: []string{"_NET_WM_ACTION_MOVE", "_NET_WM_ACTION_CLOSE"},
	}

	w := windowFromInfo(info, true)
	if w.ID != 42 || w.PID != 100 || w.Title != "term" || w.Bounds.Width != 800 {
		t.Fatalf("unexpected identity %+v", w)
	}
	if !w.Active || !w.Minimized || !w.Maximized || !w.OnAllDesktops {
		t.Fatalf("state not mapped: %+v", w)
	}
	if w.Fullscreen || w.KeepAbove {
		t.Fatalf("unexpected state bits: %+v", w)
	}
	if !w.Movable || !w.Closeable || w.Resizable || w.Fullscreenable {
		t.Fatalf("allowed actions not mapped: %+v", w)
	}
}
