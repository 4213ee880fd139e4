package x11

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// EWMH state atoms used by the shell flags.
const (
	StateHidden     = "_NET_WM_STATE_HIDDEN"
	StateFullscreen = "_NET_WM_STATE_FULLSCREEN"
	StateMaxHorz    = "_NET_WM_STATE_MAXIMIZED_HORZ"
	StateMaxVert    = "_NET_WM_STATE_MAXIMIZED_VERT"
	StateAbove      = "_NET_WM_STATE_ABOVE"
	StateBelow      = "_NET_WM_STATE_BELOW"
	StateSticky     = "_NET_WM_STATE_STICKY"
	StateModal      = "_NET_WM_STATE_MODAL"
)

const (
	stateRemove = 0
	stateAdd    = 1

	sourcePager = 2
	allDesktops = 0xFFFFFFFF
)

// WindowInfo is what the window manager publishes about a client window.
type WindowInfo struct {
	ID      xproto.Window
	PID     int
	Title   string
	X       int
	Y       int
	Width   int
	Height  int
	States  []string
	Desktop int // -1 when shown on all desktops
	Allowed []string
}

// HasState reports whether the window carries the EWMH state atom.
func (w WindowInfo) HasState(state string) bool {
	for _, s := range w.States {
		if s == state {
			return true
		}
	}
	return false
}

// Allows reports whether _NET_WM_ALLOWED_ACTIONS lists action. Windows
// without the property allow everything.
func (w WindowInfo) Allows(action string) bool {
	if len(w.Allowed) == 0 {
		return true
	}
	for _, a := range w.Allowed {
		if a == action {
			return true
		}
	}
	return false
}

// ClientWindows returns the managed normal windows in stacking list order.
func (c *Connection) ClientWindows() ([]xproto.Window, error) {
	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return nil, fmt.Errorf("failed to get client list: %w", err)
	}
	out := clients[:0]
	for _, win := range clients {
		if c.IsNormalWindow(win) {
			out = append(out, win)
		}
	}
	return out, nil
}

// Window collects metadata and root-relative geometry for windowID.
func (c *Connection) Window(windowID xproto.Window) (WindowInfo, error) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(windowID)).Reply()
	if err != nil {
		return WindowInfo{}, fmt.Errorf("failed to get geometry of window %d: %w", windowID, err)
	}
	translate, err := xproto.TranslateCoordinates(c.XUtil.Conn(), windowID, c.Root, 0, 0).Reply()
	if err != nil {
		return WindowInfo{}, fmt.Errorf("failed to translate window %d: %w", windowID, err)
	}

	info := WindowInfo{
		ID:      windowID,
		Title:   c.windowTitle(windowID),
		X:       int(translate.DstX),
		Y:       int(translate.DstY),
		Width:   int(geom.Width),
		Height:  int(geom.Height),
		Desktop: 0,
	}
	if pid, err := ewmh.WmPidGet(c.XUtil, windowID); err == nil {
		info.PID = int(pid)
	}
	if states, err := ewmh.WmStateGet(c.XUtil, windowID); err == nil {
		info.States = states
	}
	if desktop, err := ewmh.WmDesktopGet(c.XUtil, windowID); err == nil {
		if desktop == allDesktops {
			info.Desktop = -1
		} else {
			info.Desktop = int(desktop)
		}
	}
	if actions, err := ewmh.WmAllowedActionsGet(c.XUtil, windowID); err == nil {
		info.Allowed = actions
	}
	return info, nil
}

func (c *Connection) windowTitle(windowID xproto.Window) string {
	if title, err := ewmh.WmNameGet(c.XUtil, windowID); err == nil {
		if title = strings.TrimSpace(title); title != "" {
			return title
		}
	}
	if title, err := icccm.WmNameGet(c.XUtil, windowID); err == nil {
		return strings.TrimSpace(title)
	}
	return ""
}

// MoveResizeWindow moves and resizes a window, dropping any maximized
// state first so the window manager honours the request.
func (c *Connection) MoveResizeWindow(windowID xproto.Window, x, y, width, height int) error {
	if states, err := ewmh.WmStateGet(c.XUtil, windowID); err == nil {
		var drop []string
		for _, s := range states {
			if s == StateMaxHorz || s == StateMaxVert {
				drop = append(drop, s)
			}
		}
		if len(drop) > 0 {
			// Not every WM supports this; the move below still applies.
			_ = c.ChangeState(windowID, false, drop...)
		}
	}

	if err := ewmh.MoveresizeWindow(c.XUtil, windowID, x, y, width, height); err != nil {
		// Fallback to direct window manipulation
		xwindow.New(c.XUtil, windowID).MoveResize(x, y, width, height)
	}
	return nil
}

// FocusWindow activates and raises a window using _NET_ACTIVE_WINDOW.
func (c *Connection) FocusWindow(windowID xproto.Window) error {
	return c.sendRootMessage(windowID, "_NET_ACTIVE_WINDOW", sourcePager)
}

// Iconify asks the window manager to minimize windowID via WM_CHANGE_STATE.
func (c *Connection) Iconify(windowID xproto.Window) error {
	const iconicState = 3
	return c.sendRootMessage(windowID, "WM_CHANGE_STATE", iconicState)
}

// ChangeState adds or removes up to two _NET_WM_STATE atoms at once.
func (c *Connection) ChangeState(windowID xproto.Window, add bool, states ...string) error {
	if len(states) == 0 || len(states) > 2 {
		return fmt.Errorf("change state takes one or two atoms, got %d", len(states))
	}
	action := uint32(stateRemove)
	if add {
		action = stateAdd
	}
	props := make([]uint32, 2)
	for i, s := range states {
		a, err := c.atom(s)
		if err != nil {
			return err
		}
		props[i] = uint32(a)
	}
	return c.sendRootMessage(windowID, "_NET_WM_STATE", action, props[0], props[1], sourcePager)
}

// SetWindowDesktop moves a window to desktop, or to all desktops when
// desktop is negative.
func (c *Connection) SetWindowDesktop(windowID xproto.Window, desktop int) error {
	value := uint32(allDesktops)
	if desktop >= 0 {
		value = uint32(desktop)
	}
	return c.sendRootMessage(windowID, "_NET_WM_DESKTOP", value, sourcePager)
}

// CurrentDesktop returns the active virtual desktop.
func (c *Connection) CurrentDesktop() (int, error) {
	desktop, err := ewmh.CurrentDesktopGet(c.XUtil)
	if err != nil {
		return 0, fmt.Errorf("failed to get current desktop: %w", err)
	}
	return int(desktop), nil
}

// IsNormalWindow checks if a window is a normal application window
func (c *Connection) IsNormalWindow(windowID xproto.Window) bool {
	types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
	if err != nil {
		// If we can't determine type, assume it's normal
		return true
	}
	for _, t := range types {
		switch t {
		case "_NET_WM_WINDOW_TYPE_NORMAL", "_NET_WM_WINDOW_TYPE_DIALOG":
			return true
		case "_NET_WM_WINDOW_TYPE_DESKTOP", "_NET_WM_WINDOW_TYPE_DOCK",
			"_NET_WM_WINDOW_TYPE_SPLASH", "_NET_WM_WINDOW_TYPE_NOTIFICATION":
			return false
		}
	}
	return len(types) == 0
}

func (c *Connection) GetActiveWindow() (xproto.Window, error) {
	return ewmh.ActiveWindowGet(c.XUtil)
}
