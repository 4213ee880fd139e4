package platform

import (
	"fmt"
	"image"
)

// WindowID is a platform-neutral window identifier.
type WindowID uint32

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Display describes a physical display and its usable work area.
type Display struct {
	ID     int
	Name   string
	Bounds Rect
	Usable Rect
}

// Window contains metadata, geometry and window manager state for a
// top-level window.
type Window struct {
	ID     WindowID
	PID    int
	Title  string
	Bounds Rect

	Active        bool
	Minimized     bool
	Maximized     bool
	Fullscreen    bool
	KeepAbove     bool
	KeepBelow     bool
	OnAllDesktops bool
	Modal         bool

	Closeable      bool
	Minimizeable   bool
	Maximizeable   bool
	Fullscreenable bool
	Movable        bool
	Resizable      bool
}

// State is a window manager state a policy may toggle.
type State int

const (
	StateMaximized State = iota
	StateFullscreen
	StateKeepAbove
	StateKeepBelow
	StateOnAllDesktops
)

func (s State) String() string {
	switch s {
	case StateMaximized:
		return "maximized"
	case StateFullscreen:
		return "fullscreen"
	case StateKeepAbove:
		return "keep_above"
	case StateKeepBelow:
		return "keep_below"
	case StateOnAllDesktops:
		return "on_all_desktops"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Backend abstracts window-system operations across platforms.
type Backend interface {
	Displays() ([]Display, error)
	// DisplayFor returns the display holding the window's center.
	DisplayFor(windowID WindowID) (Display, error)
	ActiveWindow() (WindowID, error)
	Windows() ([]Window, error)
	Window(windowID WindowID) (Window, error)
	MoveResize(windowID WindowID, bounds Rect) error
	Activate(windowID WindowID) error
	Minimize(windowID WindowID) error
	SetState(windowID WindowID, state State, enable bool) error
	Capture(windowID WindowID) (*image.RGBA, error)
}

// ContainsPoint reports whether (x, y) lies inside r.
func ContainsPoint(r Rect, x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// DisplayAt picks the display holding the center of bounds, falling back
// to the first display.
func DisplayAt(displays []Display, bounds Rect) (Display, error) {
	if len(displays) == 0 {
		return Display{}, fmt.Errorf("no displays found")
	}
	cx, cy := bounds.X+bounds.Width/2, bounds.Y+bounds.Height/2
	for _, d := range displays {
		if ContainsPoint(d.Bounds, cx, cy) {
			return d, nil
		}
	}
	return displays[0], nil
}
