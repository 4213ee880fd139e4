package x11

import "testing"

func TestBGRXToRGBA(t *testing.T) {
	src := []byte{
		10, 20, 30, 0, // blue, green, red, unused
		1, 2, 3, 128,
	}

	img := bgrxToRGBA(src, 2, 1, false)
	if got := img.Pix[:4]; got[0] != 30 || got[1] != 20 || got[2] != 10 || got[3] != 0xFF {
		t.Fatalf("depth 24 pixel = %v", got)
	}

	img = bgrxToRGBA(src, 2, 1, true)
	if got := img.Pix[4:8]; got[0] != 3 || got[1] != 2 || got[2] != 1 || got[3] != 128 {
		t.Fatalf("depth 32 pixel = %v", got)
	}
}

func TestWindowInfoStates(t *testing.T) {
	info := WindowInfo{States: []string{StateHidden, StateAbove}}
	if !info.HasState(StateHidden) || info.HasState(StateFullscreen) {
		t.Fatalf("HasState mismatch for %v", info.States)
	}
	if !info.Allows("_NET_WM_ACTION_CLOSE") {
		t.Fatal("window without allowed actions must allow everything")
	}
	info.Allowed = []string{"_NET_WM_ACTION_MOVE"}
	if info.Allows("_NET_WM_ACTION_CLOSE") || !info.Allows("_NET_WM_ACTION_MOVE") {
		t.Fatalf("Allows mismatch for %v", info.Allowed)
	}
}
