//go:build linux

package platform

import (
	"fmt"
	"image"
	"sort"

	"github.com/1broseidon/shellbridge/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

// LinuxBackend wraps an existing X11 connection behind the platform Backend interface.
type LinuxBackend struct {
	conn *x11.Connection
}

var _ Backend = (*LinuxBackend)(nil)

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection) *LinuxBackend {
	return &LinuxBackend{conn: conn}
}

// NewLinuxBackendFromDisplay creates a new Linux backend by opening a fresh X11 connection.
func NewLinuxBackendFromDisplay() (*LinuxBackend, error) {
	conn, err := x11.NewConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return &LinuxBackend{conn: conn}, nil
}

// Disconnect closes the underlying X11 connection.
func (b *LinuxBackend) Disconnect() {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
}

// EventLoop runs the X11 event loop (blocking) until StopEventLoop.
func (b *LinuxBackend) EventLoop() {
	if b != nil && b.conn != nil {
		b.conn.EventLoop()
	}
}

func (b *LinuxBackend) StopEventLoop() {
	if b != nil && b.conn != nil {
		b.conn.QuitEventLoop()
	}
}

// XUtil returns the underlying xgbutil connection for X11-specific operations.
func (b *LinuxBackend) XUtil() *xgbutil.XUtil {
	if b == nil || b.conn == nil {
		return nil
	}
	return b.conn.XUtil
}

// RootWindow returns the X11 root window ID.
func (b *LinuxBackend) RootWindow() xproto.Window {
	if b == nil || b.conn == nil {
		return 0
	}
	return b.conn.Root
}

// Displays returns all active displays with their usable work areas.
func (b *LinuxBackend) Displays() ([]Display, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}
	monitors, err := conn.GetMonitors()
	if err != nil {
		return nil, err
	}

	displays := make([]Display, 0, len(monitors))
	for _, m := range monitors {
		displays = append(displays, Display{
			ID:     m.ID,
			Name:   m.Name,
			Bounds: rectFromMonitor(m),
			Usable: rectFromMonitor(conn.WorkArea(m)),
		})
	}
	sort.Slice(displays, func(i, j int) bool {
		return displays[i].ID < displays[j].ID
	})
	return displays, nil
}

func (b *LinuxBackend) DisplayFor(windowID WindowID) (Display, error) {
	w, err := b.Window(windowID)
	if err != nil {
		return Display{}, err
	}
	displays, err := b.Displays()
	if err != nil {
		return Display{}, err
	}
	return DisplayAt(displays, w.Bounds)
}

// ActiveWindow returns the currently active/focused window ID.
func (b *LinuxBackend) ActiveWindow() (WindowID, error) {
	conn, err := b.connection()
	if err != nil {
		return 0, err
	}
	wid, err := conn.GetActiveWindow()
	if err != nil {
		return 0, err
	}
	return WindowID(wid), nil
}

// Windows lists every managed normal window, ordered by id.
func (b *LinuxBackend) Windows() ([]Window, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}
	clients, err := conn.ClientWindows()
	if err != nil {
		return nil, err
	}
	active, _ := conn.GetActiveWindow()

	windows := make([]Window, 0, len(clients))
	for _, id := range clients {
		info, err := conn.Window(id)
		if err != nil {
			// Windows may disappear between listing and querying.
			continue
		}
		windows = append(windows, windowFromInfo(info, info.ID == active))
	}
	sort.Slice(windows, func(i, j int) bool {
		return windows[i].ID < windows[j].ID
	})
	return windows, nil
}

func (b *LinuxBackend) Window(windowID WindowID) (Window, error) {
	conn, err := b.connection()
	if err != nil {
		return Window{}, err
	}
	info, err := conn.Window(xproto.Window(windowID))
	if err != nil {
		return Window{}, err
	}
	active, _ := conn.GetActiveWindow()
	return windowFromInfo(info, info.ID == active), nil
}

// MoveResize moves and resizes a window to the specified bounds.
func (b *LinuxBackend) MoveResize(windowID WindowID, bounds Rect) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.MoveResizeWindow(xproto.Window(windowID), bounds.X, bounds.Y, bounds.Width, bounds.Height)
}

// Activate raises and focuses a window, restoring it when minimized.
func (b *LinuxBackend) Activate(windowID WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.FocusWindow(xproto.Window(windowID))
}

// Minimize minimizes a window via WM_CHANGE_STATE.
func (b *LinuxBackend) Minimize(windowID WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.Iconify(xproto.Window(windowID))
}

func (b *LinuxBackend) SetState(windowID WindowID, state State, enable bool) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	win := xproto.Window(windowID)
	switch state {
	case StateMaximized:
		return conn.ChangeState(win, enable, x11.StateMaxHorz, x11.StateMaxVert)
	case StateFullscreen:
		return conn.ChangeState(win, enable, x11.StateFullscreen)
	case StateKeepAbove:
		return conn.ChangeState(win, enable, x11.StateAbove)
	case StateKeepBelow:
		return conn.ChangeState(win, enable, x11.StateBelow)
	case StateOnAllDesktops:
		if enable {
			return conn.SetWindowDesktop(win, -1)
		}
		desktop, err := conn.CurrentDesktop()
		if err != nil {
			return err
		}
		return conn.SetWindowDesktop(win, desktop)
	default:
		return fmt.Errorf("unsupported window state %s", state)
	}
}

// Capture reads the window pixels.
func (b *LinuxBackend) Capture(windowID WindowID) (*image.RGBA, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}
	return conn.CaptureWindow(xproto.Window(windowID))
}

func (b *LinuxBackend) connection() (*x11.Connection, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("x11 backend connection is nil")
	}
	return b.conn, nil
}

func rectFromMonitor(m x11.Monitor) Rect {
	return Rect{X: m.X, Y: m.Y, Width: m.Width, Height: m.Height}
}

func windowFromInfo(info x11.WindowInfo, active bool) Window {
	return Window{
		ID:    WindowID(info.ID),
		PID:   info.PID,
		Title: info.Title,
		Bounds: Rect{
			X:      info.X,
			Y:      info.Y,
			Width:  info.Width,
			Height: info.Height,
		},
		Active:        active,
		Minimized:     info.HasState(x11.StateHidden),
		Maximized:     info.HasState(x11.StateMaxHorz) && info.HasState(x11.StateMaxVert),
		Fullscreen:    info.HasState(x11.StateFullscreen),
		KeepAbove:     info.HasState(x11.StateAbove),
		KeepBelow:     info.HasState(x11.StateBelow),
		OnAllDesktops: info.Desktop < 0 || info.HasState(x11.StateSticky),
		Modal:         info.HasState(x11.StateModal),

		Closeable:      info.Allows("_NET_WM_ACTION_CLOSE"),
		Minimizeable:   info.Allows("_NET_WM_ACTION_MINIMIZE"),
		Maximizeable:   info.Allows("_NET_WM_ACTION_MAXIMIZE_HORZ") && info.Allows("_NET_WM_ACTION_MAXIMIZE_VERT"),
		Fullscreenable: info.Allows("_NET_WM_ACTION_FULLSCREEN"),
		Movable:        info.Allows("_NET_WM_ACTION_MOVE"),
		Resizable:      info.Allows("_NET_WM_ACTION_RESIZE"),
	}
}
